package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/apps/api/echo"
	"github.com/purelifecenter/portal/core/push"
)

func Test_pushApi(t *testing.T) {
	env := setup(t)
	admin, leader, member, _ := env.users(t)
	adminToken := getToken(t, env.conf, admin)
	memberToken := getToken(t, env.conf, member)

	subscription := []byte(`{"endpoint":"https://push.example.com/sub/1","keys":{"p256dh":"BPk","auth":"c2VjcmV0"}}`)
	send := []byte(`{"user_ids":["` + member.ID + `","` + leader.ID + `"],"notification":{"title":"Hello","body":"New training available"}}`)

	tests := []httpTest{
		{
			name: "disabled: no public key", path: "/v1/push/public-key", wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: push.ErrDisabled.Error()}),
		},
		{
			name: "disabled: send refused", method: http.MethodPost, path: "/v1/admin/push/send", token: adminToken, body: send,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: push.ErrDisabled.Error()}),
		},
		{
			name: "cannot enable without keys", method: http.MethodPut, path: "/v1/admin/push/config", token: adminToken,
			body: []byte(`{"enabled":true}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"enabled": push.ErrNoKeys.Error()}),
		},
		{
			name: "subscribe requires auth", method: http.MethodPost, path: "/v1/push/subscriptions", body: subscription,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "invalid subscription", method: http.MethodPost, path: "/v1/push/subscriptions", token: memberToken,
			body: []byte(`{"endpoint":"not a url"}`), wantCode: http.StatusBadRequest,
		},
		{name: "subscribe", method: http.MethodPost, path: "/v1/push/subscriptions", token: memberToken, body: subscription, wantCode: http.StatusCreated},
		{
			name: "send requires users", method: http.MethodPost, path: "/v1/admin/push/send", token: adminToken,
			body: []byte(`{"notification":{"title":"Hi"}}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"user_ids":"this field is required"}`),
		},
	}
	env.run(t, tests)

	t.Run("enable and send", func(t *testing.T) {
		var c push.Config
		rec := env.do(t, http.MethodPost, "/v1/admin/push/config/keys", adminToken, nil, &c)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotEmpty(t, c.VAPIDPublicKey)
		assert.NotContains(t, rec.Body.String(), "private")

		rec = env.do(t, http.MethodPut, "/v1/admin/push/config", adminToken, []byte(`{"enabled":true,"subject":"mailto:admin@test.cd"}`), &c)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, c.Enabled)

		var key echoapi.PublicKeyResponse
		rec = env.do(t, http.MethodGet, "/v1/push/public-key", "", nil, &key)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, c.VAPIDPublicKey, key.PublicKey)

		var res push.SendResult
		rec = env.do(t, http.MethodPost, "/v1/admin/push/send", adminToken, send, &res)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, push.SendResult{Sent: 1}, res) // only the member subscribed
		assert.Equal(t, 1, env.sender.sent)
	})

	t.Run("unsubscribe", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/v1/push/subscriptions", memberToken, nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodDelete, "/v1/push/subscriptions?endpoint=https://push.example.com/sub/1", memberToken, nil, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		var res push.SendResult
		rec = env.do(t, http.MethodPost, "/v1/admin/push/send", adminToken, send, &res)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, push.SendResult{}, res)
	})
}
