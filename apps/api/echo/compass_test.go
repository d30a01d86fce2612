package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core/compass"
)

func Test_compassApi(t *testing.T) {
	env := setup(t)
	admin, leader, member, _ := env.users(t)
	adminToken := getToken(t, env.conf, admin)
	memberToken := getToken(t, env.conf, member)

	tests := []httpTest{
		{name: "auth required", path: "/v1/compass/settings", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "default settings", path: "/v1/compass/settings", token: memberToken, wantData: marchallObj(t, compass.DefaultSettings())},
		{
			name: "members cannot update", method: http.MethodPut, path: "/v1/admin/compass/settings", token: memberToken,
			body: []byte(`{"enabled":true}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "invalid settings", method: http.MethodPut, path: "/v1/admin/compass/settings", token: adminToken,
			body: []byte(`{"max_questions_per_day":5000}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "session topic required", method: http.MethodPost, path: "/v1/compass/sessions", token: memberToken,
			body: []byte(`{"question_count":2}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"topic":"this field is required"}`),
		},
		{
			name: "session ends before it starts", method: http.MethodPost, path: "/v1/compass/sessions", token: memberToken,
			body:     []byte(`{"topic":"Sleep","started_at":"2024-03-05T10:00:00Z","ended_at":"2024-03-05T09:00:00Z"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"ended_at":"ended_at must be after started_at"}`),
		},
		{
			name: "invalid from", path: "/v1/admin/compass/sessions?from=last-week", token: adminToken,
			wantCode: http.StatusBadRequest,
		},
	}
	env.run(t, tests)

	t.Run("update settings", func(t *testing.T) {
		var s compass.Settings
		rec := env.do(t, http.MethodPut, "/v1/admin/compass/settings", adminToken,
			[]byte(`{"enabled":true,"welcome_message":"Welcome back!"}`), &s)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, s.Enabled)
		assert.Equal(t, "Welcome back!", s.WelcomeMessage)
		assert.Equal(t, admin.ID, s.UpdatedBy)
		assert.Equal(t, compass.DefaultSettings().MaxQuestionsPerDay, s.MaxQuestionsPerDay)

		var got compass.Settings
		env.do(t, http.MethodGet, "/v1/compass/settings", memberToken, nil, &got)
		assert.True(t, got.Enabled)
	})

	t.Run("sessions", func(t *testing.T) {
		var s compass.Session
		body := []byte(`{"topic":"Nutrition","question_count":3,"rating":5,"started_at":"2024-03-05T10:00:00Z","ended_at":"2024-03-05T10:12:00Z"}`)
		rec := env.do(t, http.MethodPost, "/v1/compass/sessions", memberToken, body, &s)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, member.ID, s.UserID)
		assert.Equal(t, member.Name, s.UserName)

		rec = env.do(t, http.MethodPost, "/v1/compass/sessions", getToken(t, env.conf, leader),
			[]byte(`{"topic":"Sleep","started_at":"2024-04-01T08:00:00Z"}`), nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		var sessions []compass.Session
		rec = env.do(t, http.MethodGet, "/v1/admin/compass/sessions?user_id="+member.ID, adminToken, nil, &sessions)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, sessions, 1)
		assert.Equal(t, s.ID, sessions[0].ID)

		sessions = nil
		env.do(t, http.MethodGet, "/v1/admin/compass/sessions?from=2024-03-15T00:00:00Z", adminToken, nil, &sessions)
		require.Len(t, sessions, 1)
		assert.Equal(t, leader.ID, sessions[0].UserID)

		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/compass/sessions/export", adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "ai-compass-sessions")
		assert.Contains(t, rec.Body.String(), "Nutrition")
		assert.Contains(t, rec.Body.String(), "Sleep")
	})
}
