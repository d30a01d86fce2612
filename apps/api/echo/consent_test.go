package echoapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core/consent"
)

func Test_consentApi(t *testing.T) {
	env := setup(t)
	admin, _, member, _ := env.users(t)
	adminToken := getToken(t, env.conf, admin)

	create := func(body string) consent.Category {
		var c consent.Category
		rec := env.do(t, http.MethodPost, "/v1/admin/consent/categories", adminToken, []byte(body), &c)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return c
	}
	necessary := create(`{"key":"necessary","name":"Necessary","required":true,"sort_order":1}`)
	analytics := create(`{"key":"analytics","name":"Analytics","sort_order":2}`)
	marketing := create(`{"key":"marketing","name":"Marketing","enabled":false,"sort_order":3}`)

	tests := []httpTest{
		{name: "settings default", path: "/v1/consent/settings", wantData: nil},
		{name: "enabled categories", path: "/v1/consent/categories", wantData: marchallList(t, necessary, analytics)},
		{
			name: "all categories", path: "/v1/admin/consent/categories", token: adminToken,
			wantData: marchallList(t, necessary, analytics, marketing),
		},
		{
			name: "invalid key", method: http.MethodPost, path: "/v1/admin/consent/categories", token: adminToken,
			body: []byte(`{"key":"Not a slug!","name":"Bad"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "disabled category refused", method: http.MethodPost, path: "/v1/consent/records",
			body: []byte(`{"visitor_id":"v-1","categories":["marketing"]}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"categories":"unknown or disabled cookie category: marketing"}`),
		},
		{
			name: "visitor required", method: http.MethodPost, path: "/v1/consent/records",
			body: []byte(`{"categories":["analytics"]}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"visitor_id":"this field is required"}`),
		},
		{
			name: "unknown visitor", path: "/v1/consent/records/v-404", wantCode: http.StatusNotFound,
		},
	}
	env.run(t, tests)

	t.Run("anonymous record", func(t *testing.T) {
		var r consent.Record
		rec := env.do(t, http.MethodPost, "/v1/consent/records", "", []byte(`{"visitor_id":"v-1"}`), &r)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"necessary"}, r.Categories) // required ones are always granted
		assert.Empty(t, r.UserID)
	})

	t.Run("member record", func(t *testing.T) {
		var r consent.Record
		body := []byte(`{"visitor_id":"v-2","categories":["analytics"],"user_id":"spoofed"}`)
		rec := env.do(t, http.MethodPost, "/v1/consent/records", getToken(t, env.conf, member), body, &r)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"necessary", "analytics"}, r.Categories)
		assert.Equal(t, member.ID, r.UserID)

		var latest consent.Record
		rec = env.do(t, http.MethodGet, "/v1/consent/records/v-2", "", nil, &latest)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, r.ID, latest.ID)
	})

	t.Run("stats", func(t *testing.T) {
		var s consent.Stats
		rec := env.do(t, http.MethodGet, "/v1/admin/consent/stats", adminToken, nil, &s)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 2, s.TotalRecords)

		accepted := make(map[string]int)
		for _, c := range s.Categories {
			accepted[c.Key] = c.Accepted
		}
		assert.Equal(t, 2, accepted["necessary"])
		assert.Equal(t, 1, accepted["analytics"])
	})

	t.Run("export csv", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/consent/records/export", adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.Contains(t, rec.Body.String(), "v-2")
	})

	t.Run("export unknown format", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/consent/records/export?format=pdf", adminToken)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("required category cannot be deleted", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/v1/admin/consent/categories/"+necessary.ID, adminToken, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("update settings", func(t *testing.T) {
		var s consent.Settings
		rec := env.do(t, http.MethodPut, "/v1/admin/consent/settings", adminToken, []byte(`{"position":"top","title":"Cookies"}`), &s)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, consent.PositionTop, s.Position)
		assert.Equal(t, "Cookies", s.Title)

		rec = env.do(t, http.MethodPut, "/v1/admin/consent/settings", adminToken, []byte(`{"position":"left"}`), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
