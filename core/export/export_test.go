package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
)

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  string
	}{
		{
			name:  "header only",
			table: Table{Columns: []string{"id", "name"}},
			want:  "\ufeff\"id\",\"name\"\r\n",
		},
		{
			name: "quotes commas and newlines",
			table: Table{
				Columns: []string{"topic", "rating"},
				Rows: [][]string{
					{`say "hi"`, "5"},
					{"a, b", ""},
					{"line1\nline2", "3"},
				},
			},
			want: "\ufeff\"topic\",\"rating\"\r\n" +
				"\"say \"\"hi\"\"\",\"5\"\r\n" +
				"\"a, b\",\"\"\r\n" +
				"\"line1\nline2\",\"3\"\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, tt.table))
			assert.Equal(t, tt.want, buf.String())
			assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
		})
	}
}

func TestRender(t *testing.T) {
	defer func(orig func() time.Time) { core.NowFunc = orig }(core.NowFunc)
	core.NowFunc = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }

	table := Table{Title: "Sessions", Columns: []string{"user"}, Rows: [][]string{{"<Ada>"}}}
	records := []map[string]string{{"user": "<Ada>"}}

	tests := []struct {
		format      Format
		filename    string
		contentType string
		contains    []string
	}{
		{FormatCSV, "sessions-20240305.csv", "text/csv; charset=utf-8", []string{`"<Ada>"`}},
		{FormatDOC, "sessions-20240305.doc", "application/msword", []string{"urn:schemas-microsoft-com:office:word", "&lt;Ada&gt;"}},
		{FormatHTML, "sessions-20240305.html", "text/html; charset=utf-8", []string{"@media print", "<th>user</th>", "&lt;Ada&gt;"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f, err := Render(table, tt.format, "sessions", records)
			require.NoError(t, err)
			assert.Equal(t, tt.filename, f.Filename)
			assert.Equal(t, tt.contentType, f.ContentType)
			for _, s := range tt.contains {
				assert.Contains(t, string(f.Body), s)
			}
		})
	}

	t.Run("json", func(t *testing.T) {
		f, err := Render(table, FormatJSON, "sessions", records)
		require.NoError(t, err)
		var got []map[string]string
		require.NoError(t, json.Unmarshal(f.Body, &got))
		assert.Equal(t, records, got)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Render(table, Format("pdf"), "sessions", records)
		assert.Equal(t, ErrUnsupportedFormat, err)
	})
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" DOC ")
	require.NoError(t, err)
	assert.Equal(t, FormatDOC, f)

	_, err = ParseFormat("pdf")
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "format", vErr.Fields[0].Field)
}
