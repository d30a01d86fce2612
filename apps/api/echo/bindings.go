package echoapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryBool parses an optional boolean query param.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewFieldError(name, "must be true or false")
	}
	return &b, nil
}

// queryTime parses an optional RFC 3339 timestamp or date (YYYY-MM-DD) query param.
func queryTime(ctx echo.Context, name string) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, val); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.NewFieldError(name, "must be an RFC 3339 timestamp or a YYYY-MM-DD date")
}

func queryInt(ctx echo.Context, name string) (int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return 0, core.NewFieldError(name, "must be a positive integer")
	}
	return i, nil
}

// queryIDs returns the repeated "id" query param (?id=a&id=b).
func queryIDs(ctx echo.Context) []string {
	return ctx.QueryParams()["id"]
}

// queryFormat reads the export format, csv by default.
func queryFormat(ctx echo.Context) (export.Format, error) {
	val := ctx.QueryParam("format")
	if val == "" {
		return export.FormatCSV, nil
	}
	return export.ParseFormat(val)
}

// sendFile sends an export as a download.
func sendFile(ctx echo.Context, f export.File) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+f.Filename+`"`)
	return ctx.Blob(http.StatusOK, f.ContentType, f.Body)
}

// bindAndValidate binds the request body into data and runs its Validate method.
func bindAndValidate(ctx echo.Context, data interface{ Validate() error }) error {
	if err := ctx.Bind(data); err != nil {
		return err
	}
	return data.Validate()
}
