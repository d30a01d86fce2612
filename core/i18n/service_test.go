package i18n_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
	"github.com/purelifecenter/portal/core/i18n"
	inmemdb "github.com/purelifecenter/portal/storage/database/inmem"
	testutil "github.com/purelifecenter/portal/tests"
)

func setup(t *testing.T) i18n.Service {
	t.Helper()
	svc := i18n.NewService(inmemdb.NewI18nRepository(inmemdb.Open()))

	n, err := svc.Import(context.Background(), "en", "", map[string]string{
		"nav.home":       "Home",
		"nav.training":   "Training",
		"greeting":       "Hello",
		"farewell":       "Goodbye",
		"":               "ignored",
		"  spaced.key  ": "Spaced",
	})
	require.NoError(t, err)
	require.Equal(t, 5, n)

	_, err = svc.Import(context.Background(), "pt_br", "", map[string]string{
		"nav.home": "Início",
		"greeting": "",
	})
	require.NoError(t, err)
	return svc
}

func TestCanonicalLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"en", "en", false},
		{" pt_br ", "pt-BR", false},
		{"ES-mx", "es-MX", false},
		{"", "", true},
		{"not a language", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := i18n.CanonicalLanguage(tc.in)
			if tc.wantErr {
				assert.Contains(t, core.ErrorFields(err), "language")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestService_Import(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	ts, err := svc.Query(ctx, i18n.QueryFilter{Language: "en", Namespace: "nav"})
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, "home", ts[0].Key)
	assert.Equal(t, "training", ts[1].Key)

	ts, err = svc.Query(ctx, i18n.QueryFilter{Language: "en", Namespace: i18n.DefaultNamespace})
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, "farewell", ts[0].Key)

	ts, err = svc.Query(ctx, i18n.QueryFilter{Language: "en", Search: "bye"})
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "Goodbye", ts[0].Value)

	// an explicit namespace keeps dotted keys intact
	_, err = svc.Import(ctx, "en", "Emails", map[string]string{"reset.subject": "Reset"})
	require.NoError(t, err)
	ts, err = svc.Query(ctx, i18n.QueryFilter{Namespace: "emails"})
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "reset.subject", ts[0].Key)

	langs, err := svc.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "pt-BR"}, langs)
}

func TestService_Upsert(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	testutil.FreezeTime(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	ut := i18n.UpsertTranslation{Namespace: " NAV ", Key: "home", Language: "pt_BR", Value: "Página inicial"}
	require.NoError(t, ut.Validate())
	assert.Equal(t, "nav", ut.Namespace)
	assert.Equal(t, "pt-BR", ut.Language)

	tr, err := svc.Upsert(ctx, ut)
	require.NoError(t, err)
	assert.Equal(t, "Página inicial", tr.Value)

	ts, err := svc.Query(ctx, i18n.QueryFilter{Language: "pt-BR", Namespace: "nav"})
	require.NoError(t, err)
	require.Len(t, ts, 1, "upsert updates the existing row")
	assert.Equal(t, tr.ID, ts[0].ID)
	assert.Equal(t, core.NowFunc(), ts[0].UpdatedAt)

	require.NoError(t, svc.Delete(ctx, tr.ID))
	ts, err = svc.Query(ctx, i18n.QueryFilter{Language: "pt-BR", Namespace: "nav"})
	require.NoError(t, err)
	assert.Empty(t, ts)

	bad := i18n.UpsertTranslation{Namespace: "bad ns", Key: "", Language: "en"}
	fields := core.ErrorFields(bad.Validate())
	assert.Contains(t, fields, "namespace")
	assert.Contains(t, fields, "key")
}

func TestService_Bundle(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	b, err := svc.Bundle(ctx, "pt-br")
	require.NoError(t, err)
	assert.Equal(t, i18n.Bundle{
		"nav.home":        "Início",
		"nav.training":    "Training",
		"common.greeting": "Hello",
		"common.farewell": "Goodbye",
		"spaced.key":      "Spaced",
	}, b)

	missing, err := svc.Missing(ctx, "pt-BR")
	require.NoError(t, err)
	keys := make([]string, 0, len(missing))
	for _, m := range missing {
		keys = append(keys, m.FullKey())
	}
	assert.Equal(t, []string{"common.farewell", "nav.training", "spaced.key"}, keys)

	missing, err = svc.Missing(ctx, "en")
	require.NoError(t, err)
	assert.Empty(t, missing)

	n, err := svc.FillMissing(ctx, "pt-BR")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	missing, err = svc.Missing(ctx, "pt-BR")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestService_Export(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	f, err := svc.Export(ctx, "en", export.FormatJSON)
	require.NoError(t, err)
	var b i18n.Bundle
	require.NoError(t, json.Unmarshal(f.Body, &b))
	assert.Equal(t, "Home", b["nav.home"])
	assert.Len(t, b, 5)

	f, err = svc.Export(ctx, "en", export.FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(f.Body), "\"common\",\"farewell\",\"en\",\"Goodbye\"\r\n")
	assert.Contains(t, f.Filename, "translations-en-")
}
