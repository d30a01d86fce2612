// Package export renders tabular reports as CSV, JSON, Word-compatible DOC and printable HTML.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatDOC  Format = "doc"
	FormatHTML Format = "html"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	contentTypes = map[Format]string{
		FormatCSV:  "text/csv; charset=utf-8",
		FormatJSON: "application/json; charset=utf-8",
		FormatDOC:  "application/msword",
		FormatHTML: "text/html; charset=utf-8",
	}
)

// ParseFormat validates a user supplied format; an empty value means csv.
func ParseFormat(s string) (Format, error) {
	f := Format(core.CleanString(s, true /* lower */))
	if f == "" {
		return FormatCSV, nil
	}
	if _, ok := contentTypes[f]; !ok {
		return "", core.NewFieldError("format", fmt.Sprintf("%s: %q", ErrUnsupportedFormat, s))
	}
	return f, nil
}

// Table is the format independent shape of a report.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// File is a rendered report ready to be downloaded.
type File struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Render renders the table in the given format. JSON renders `records` instead of the rows
// so that API consumers get typed values.
func Render(t Table, format Format, name string, records interface{}) (File, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case FormatCSV:
		err = WriteCSV(&buf, t)
	case FormatJSON:
		err = WriteJSON(&buf, records)
	case FormatDOC:
		err = WriteDOC(&buf, t)
	case FormatHTML:
		err = WriteHTML(&buf, t)
	default:
		return File{}, ErrUnsupportedFormat
	}
	if err != nil {
		return File{}, errors.Wrapf(err, "rendering %s", format)
	}

	return File{
		Filename:    fmt.Sprintf("%s-%s.%s", name, core.NowFunc().Format("20060102"), format),
		ContentType: contentTypes[format],
		Body:        buf.Bytes(),
	}, nil
}

// WriteCSV writes a UTF-8 BOM, the header row and every row. Every field is quoted,
// quotes inside a field are doubled and rows end with CRLF.
func WriteCSV(w io.Writer, t Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	if err := writeCSVRow(w, t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := writeCSVRow(w, row); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVRow(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func WriteJSON(w io.Writer, records interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteDOC writes an HTML document that word processors open as a .doc file.
func WriteDOC(w io.Writer, t Table) error {
	return docTmpl.Execute(w, t)
}

// WriteHTML writes a print oriented HTML document.
func WriteHTML(w io.Writer, t Table) error {
	return printTmpl.Execute(w, struct {
		Table
		GeneratedAt string
	}{t, core.NowFunc().Format(time.RFC1123)})
}

var docTmpl = template.Must(template.New("doc").Parse(`<html xmlns:o="urn:schemas-microsoft-com:office:office" xmlns:w="urn:schemas-microsoft-com:office:word" xmlns="http://www.w3.org/TR/REC-html40">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<table border="1" cellspacing="0" cellpadding="4">
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
</tbody>
</table>
</body>
</html>
`))

var printTmpl = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 24px; color: #1f2933; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #cbd2d9; padding: 6px 8px; text-align: left; vertical-align: top; }
th { background: #f5f7fa; }
@media print {
  body { margin: 0; }
  thead { display: table-header-group; }
  tr { page-break-inside: avoid; }
}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Generated {{.GeneratedAt}}</p>
<table>
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
</tbody>
</table>
</body>
</html>
`))

// FormatTime renders an optional timestamp for a report cell.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
