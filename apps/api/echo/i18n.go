package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/i18n"
)

type i18nApi struct {
	svc i18n.Service
}

func registerI18nAPI(g, admin *echo.Group, svc i18n.Service) {
	api := i18nApi{svc: svc}

	// the frontend loads its strings before login
	g.GET("/i18n/languages", api.languages)
	g.GET("/i18n/bundles/:lang", api.bundle)

	// admin panel
	ag := admin.Group("/i18n")
	ag.GET("/translations", api.query)
	ag.PUT("/translations", api.upsert)
	ag.DELETE("/translations", api.destroy)
	ag.GET("/languages", api.languages)
	ag.GET("/missing/:lang", api.missing)
	ag.POST("/import/:lang", api.importValues)
	ag.POST("/fill/:lang", api.fillMissing)
	ag.GET("/export/:lang", api.export)
}

func (api *i18nApi) languages(ctx echo.Context) error {
	langs, err := api.svc.Languages(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing languages")
	}
	if langs == nil {
		langs = []string{}
	}
	return ctx.JSON(http.StatusOK, langs)
}

func (api *i18nApi) bundle(ctx echo.Context) error {
	b, err := api.svc.Bundle(ctx.Request().Context(), ctx.Param("lang"))
	if err != nil {
		return errors.Wrap(err, "building translation bundle")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *i18nApi) query(ctx echo.Context) error {
	filter := i18n.QueryFilter{
		Language:  ctx.QueryParam("language"),
		Namespace: ctx.QueryParam("namespace"),
		Search:    ctx.QueryParam("search"),
	}
	ts, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying translations")
	}
	if ts == nil {
		ts = []i18n.Translation{}
	}
	return ctx.JSON(http.StatusOK, ts)
}

func (api *i18nApi) upsert(ctx echo.Context) error {
	var data i18n.UpsertTranslation
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	t, err := api.svc.Upsert(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "upserting translation")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *i18nApi) destroy(ctx echo.Context) error {
	if ids := queryIDs(ctx); len(ids) > 0 {
		if err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
			return errors.Wrap(err, "deleting translations")
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *i18nApi) missing(ctx echo.Context) error {
	ts, err := api.svc.Missing(ctx.Request().Context(), ctx.Param("lang"))
	if err != nil {
		return errors.Wrap(err, "listing missing translations")
	}
	if ts == nil {
		ts = []i18n.Translation{}
	}
	return ctx.JSON(http.StatusOK, ts)
}

func (api *i18nApi) importValues(ctx echo.Context) error {
	var data ImportRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	n, err := api.svc.Import(ctx.Request().Context(), ctx.Param("lang"), data.Namespace, data.Values)
	if err != nil {
		return errors.Wrap(err, "importing translations")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *i18nApi) fillMissing(ctx echo.Context) error {
	n, err := api.svc.FillMissing(ctx.Request().Context(), ctx.Param("lang"))
	if err != nil {
		return errors.Wrap(err, "filling missing translations")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *i18nApi) export(ctx echo.Context) error {
	format, err := queryFormat(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.Export(ctx.Request().Context(), ctx.Param("lang"), format)
	if err != nil {
		return errors.Wrap(err, "exporting translations")
	}
	return sendFile(ctx, f)
}

type (
	// ImportRequest is a flat {key: value} map of one namespace.
	ImportRequest struct {
		Namespace string            `json:"namespace" validate:"omitempty,slug,max=50"`
		Values    map[string]string `json:"values" validate:"required,min=1"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)

func (ir *ImportRequest) Validate() error {
	ir.Namespace = core.CleanString(ir.Namespace, true /* lower */)
	return core.Validate.Struct(ir)
}
