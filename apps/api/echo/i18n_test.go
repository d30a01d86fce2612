package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/apps/api/echo"
	"github.com/purelifecenter/portal/core/i18n"
)

func Test_i18nApi(t *testing.T) {
	env := setup(t)
	admin, _, member, _ := env.users(t)
	adminToken := getToken(t, env.conf, admin)

	importValues := func(lang, body string) int {
		var resp echoapi.CountResponse
		rec := env.do(t, http.MethodPost, "/v1/admin/i18n/import/"+lang, adminToken, []byte(body), &resp)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return resp.Count
	}
	assert.Equal(t, 3, importValues("en", `{"values":{"nav.home":"Home","nav.shop":"Shop","welcome":"Welcome"}}`))
	assert.Equal(t, 1, importValues("fr", `{"values":{"nav.home":"Accueil"}}`))
	assert.Equal(t, 1, importValues("fr", `{"namespace":"Training","values":{"next":"Suivant"}}`))

	tests := []httpTest{
		{name: "languages", path: "/v1/i18n/languages", wantData: marchallObj(t, []string{"en", "fr"})},
		{
			name: "french bundle falls back to english", path: "/v1/i18n/bundles/fr",
			wantData: marchallObj(t, i18n.Bundle{
				"nav.home": "Accueil", "nav.shop": "Shop", "common.welcome": "Welcome", "training.next": "Suivant",
			}),
		},
		{
			name: "invalid language", path: "/v1/i18n/bundles/not_a_lang!", wantCode: http.StatusBadRequest,
			wantData: []byte(`{"language":"invalid language tag: not_a_lang!"}`),
		},
		{
			name: "admin only", path: "/v1/admin/i18n/translations", token: getToken(t, env.conf, member),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "import requires values", method: http.MethodPost, path: "/v1/admin/i18n/import/fr", token: adminToken,
			body: []byte(`{"values":{}}`), wantCode: http.StatusBadRequest,
		},
	}
	env.run(t, tests)

	t.Run("missing and fill", func(t *testing.T) {
		var missing []i18n.Translation
		rec := env.do(t, http.MethodGet, "/v1/admin/i18n/missing/fr", adminToken, nil, &missing)
		require.Equal(t, http.StatusOK, rec.Code)
		keys := make([]string, 0, len(missing))
		for _, tr := range missing {
			keys = append(keys, tr.FullKey())
		}
		assert.ElementsMatch(t, []string{"nav.shop", "common.welcome"}, keys)

		var resp echoapi.CountResponse
		rec = env.do(t, http.MethodPost, "/v1/admin/i18n/fill/fr", adminToken, nil, &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, resp.Count)

		missing = nil
		env.do(t, http.MethodGet, "/v1/admin/i18n/missing/fr", adminToken, nil, &missing)
		assert.Empty(t, missing)
	})

	t.Run("upsert and query", func(t *testing.T) {
		var tr i18n.Translation
		body := []byte(`{"key":"shop","namespace":"nav","language":"FR","value":"Boutique"}`)
		rec := env.do(t, http.MethodPut, "/v1/admin/i18n/translations", adminToken, body, &tr)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "fr", tr.Language)

		var ts []i18n.Translation
		rec = env.do(t, http.MethodGet, "/v1/admin/i18n/translations?language=fr&search=bout", adminToken, nil, &ts)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ts, 1)
		assert.Equal(t, tr.ID, ts[0].ID)

		rec = env.do(t, http.MethodDelete, "/v1/admin/i18n/translations?id="+tr.ID, adminToken, nil, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("json export is an importable bundle", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/i18n/export/fr?format=json", adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "translations-fr")

		var bundle map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
		assert.Equal(t, "Accueil", bundle["nav.home"])
		assert.Equal(t, "Suivant", bundle["training.next"])
	})
}
