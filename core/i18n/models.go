package i18n

import (
	"time"

	"golang.org/x/text/language"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
)

const (
	DefaultLanguage  = "en"
	DefaultNamespace = "common"
)

type Translation struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Language  string    `json:"language"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullKey is the bundle key: "<namespace>.<key>".
func (t Translation) FullKey() string {
	return t.Namespace + "." + t.Key
}

type UpsertTranslation struct {
	Namespace string `json:"namespace" validate:"omitempty,slug,max=50"`
	Key       string `json:"key" validate:"required,max=200"`
	Language  string `json:"language" validate:"required"`
	Value     string `json:"value" validate:"max=10000"`
}

func (ut *UpsertTranslation) Validate() error {
	ut.Namespace = core.CleanString(ut.Namespace, true /* lower */)
	if ut.Namespace == "" {
		ut.Namespace = DefaultNamespace
	}
	ut.Key = core.CleanString(ut.Key)
	if err := core.Validate.Struct(ut); err != nil {
		return err
	}
	lang, err := CanonicalLanguage(ut.Language)
	if err != nil {
		return err
	}
	ut.Language = lang
	return nil
}

type QueryFilter struct {
	Language  string
	Namespace string
	Search    string
}

// CanonicalLanguage parses a BCP 47 tag and returns its canonical form ("pt_br" -> "pt-BR").
func CanonicalLanguage(s string) (string, error) {
	s = core.CleanString(s)
	if s == "" {
		return "", core.NewFieldError("language", "language is required")
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", core.NewFieldError("language", "invalid language tag: "+s)
	}
	return tag.String(), nil
}

// Bundle is a flat {namespace.key: value} map.
type Bundle map[string]string

func translationsTable(lang string, ts []Translation) export.Table {
	t := export.Table{
		Title:   "Translations (" + lang + ")",
		Columns: []string{"namespace", "key", "language", "value"},
		Rows:    make([][]string, 0, len(ts)),
	}
	for _, tr := range ts {
		t.Rows = append(t.Rows, []string{tr.Namespace, tr.Key, tr.Language, tr.Value})
	}
	return t
}
