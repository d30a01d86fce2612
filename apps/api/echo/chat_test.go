package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/apps/api/echo"
	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/chat"
	"github.com/purelifecenter/portal/core/user"
	"github.com/purelifecenter/portal/tests"
)

func Test_chatApi_contactTypes(t *testing.T) {
	env := setup(t)
	admin, _, member, _ := env.users(t)
	adminToken := getToken(t, env.conf, admin)

	var orders chat.ContactType
	rec := env.do(t, http.MethodPost, "/v1/admin/chat/contact-types", adminToken, []byte(`{"key":"orders","name":"Order question"}`), &orders)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var support chat.ContactType
	rec = env.do(t, http.MethodPost, "/v1/admin/chat/contact-types", adminToken,
		[]byte(`{"key":"support","name":"Technical support","is_system":true,"sort_order":1}`), &support)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []httpTest{
		{
			name: "duplicate key", method: http.MethodPost, path: "/v1/admin/chat/contact-types", token: adminToken,
			body: []byte(`{"key":"orders","name":"Orders again"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"key": chat.ErrContactTypeExists.Error()}),
		},
		{
			name: "deactivate", method: http.MethodPut, path: "/v1/admin/chat/contact-types/" + orders.ID, token: adminToken,
			body: []byte(`{"active":false}`),
		},
		{name: "members only see active types", path: "/v1/chat/contact-types", token: getToken(t, env.conf, member), wantData: marchallList(t, support)},
		{
			name: "system types are kept", method: http.MethodDelete, path: "/v1/admin/chat/contact-types/" + support.ID, token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: chat.ErrSystemContactType.Error()}),
		},
		{name: "delete", method: http.MethodDelete, path: "/v1/admin/chat/contact-types/" + orders.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "deleted", path: "/v1/admin/chat/contact-types/" + orders.ID, token: adminToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "contact type not found"}),
		},
	}
	env.run(t, tests)
}

func Test_chatApi_threads(t *testing.T) {
	env := setup(t)
	_, leader, member, _ := env.users(t)
	outsider := testutil.CreateUser(t, env.usrRepo, "Outsider", "outsider", "out@test.cd", "", []string{user.RoleMember}, true)
	leaderToken := getToken(t, env.conf, leader)
	memberToken := getToken(t, env.conf, member)
	outsiderToken := getToken(t, env.conf, outsider)

	var thread chat.Thread
	body := []byte(`{"subject":"My first order","recipient_ids":["` + leader.ID + `"],"body":"Hi, how do I order?"}`)
	rec := env.do(t, http.MethodPost, "/v1/chat/threads", memberToken, body, &thread)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.ElementsMatch(t, []string{member.ID, leader.ID}, thread.ParticipantIDs)
	assert.Contains(t, env.events.Topics(), core.TopicChatMessageCreated)

	t.Run("same participants reuse the thread", func(t *testing.T) {
		var again chat.Thread
		rec := env.do(t, http.MethodPost, "/v1/chat/threads", memberToken, body, &again)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, thread.ID, again.ID)
	})

	t.Run("recipient required", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/chat/threads", memberToken, []byte(`{"subject":"Nobody"}`), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("leader sees unread messages", func(t *testing.T) {
		var threads []chat.Thread
		rec := env.do(t, http.MethodGet, "/v1/chat/threads", leaderToken, nil, &threads)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, threads, 1)
		assert.Equal(t, thread.ID, threads[0].ID)
		assert.Equal(t, 2, threads[0].UnreadCount)

		rec = env.do(t, http.MethodPost, "/v1/chat/threads/"+thread.ID+"/read", leaderToken, nil, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		threads = nil
		env.do(t, http.MethodGet, "/v1/chat/threads", leaderToken, nil, &threads)
		require.Len(t, threads, 1)
		assert.Zero(t, threads[0].UnreadCount)
	})

	t.Run("reply", func(t *testing.T) {
		var msg chat.Message
		rec := env.do(t, http.MethodPost, "/v1/chat/threads/"+thread.ID+"/messages", leaderToken, []byte(`{"body":"Use the shop page."}`), &msg)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, leader.ID, msg.SenderID)

		var msgs []chat.Message
		rec = env.do(t, http.MethodGet, "/v1/chat/threads/"+thread.ID+"/messages?limit=2", memberToken, nil, &msgs)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, msgs, 2)
		assert.Equal(t, msg.ID, msgs[1].ID) // oldest first
	})

	tests := []httpTest{
		{
			name: "outsiders cannot read", path: "/v1/chat/threads/" + thread.ID, token: outsiderToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "thread not found"}),
		},
		{
			name: "outsiders cannot post", method: http.MethodPost, path: "/v1/chat/threads/" + thread.ID + "/messages",
			token: outsiderToken, body: []byte(`{"body":"hello?"}`), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "outsiders see no threads", path: "/v1/chat/threads", token: outsiderToken, wantData: marchallList(t)},
		{
			name: "invalid before", path: "/v1/chat/threads/" + thread.ID + "/messages?before=yesterday", token: memberToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "empty message", method: http.MethodPost, path: "/v1/chat/threads/" + thread.ID + "/messages",
			token: memberToken, body: []byte(`{"body":"  "}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"body":"this field is required"}`),
		},
	}
	env.run(t, tests)
}

func Test_chatApi_broadcasts(t *testing.T) {
	env := setup(t)
	admin, leader, member, _ := env.users(t)
	leaderToken := getToken(t, env.conf, leader)
	memberToken := getToken(t, env.conf, member)

	tests := []httpTest{
		{
			name: "members cannot broadcast", method: http.MethodPost, path: "/v1/broadcasts", token: memberToken,
			body: []byte(`{"title":"Hi","body":"All"}`), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown channel", method: http.MethodPost, path: "/v1/broadcasts", token: leaderToken,
			body: []byte(`{"title":"Hi","body":"All","channels":["sms"]}`), wantCode: http.StatusBadRequest,
		},
		{name: "empty inbox", path: "/v1/inbox", token: memberToken, wantData: marchallList(t)},
	}
	env.run(t, tests)

	var b chat.Broadcast
	body := []byte(`{"title":"Team call","body":"Tomorrow at 8pm","channels":["email"]}`)
	rec := env.do(t, http.MethodPost, "/v1/broadcasts", leaderToken, body, &b)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, b.RecipientCount) // the leader's downline only
	assert.Equal(t, []string{chat.ChannelInbox, chat.ChannelEmail}, b.Channels)
	require.Len(t, env.mailSvc.SentMessages(), 1)
	assert.Contains(t, env.events.Topics(), core.TopicBroadcastSent)

	t.Run("sent list", func(t *testing.T) {
		var sent []chat.Broadcast
		rec := env.do(t, http.MethodGet, "/v1/broadcasts", leaderToken, nil, &sent)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, sent, 1)
		assert.Equal(t, b.ID, sent[0].ID)

		sent = nil
		env.do(t, http.MethodGet, "/v1/broadcasts", getToken(t, env.conf, admin), nil, &sent)
		assert.Len(t, sent, 1)
	})

	t.Run("inbox", func(t *testing.T) {
		var count echoapi.CountResponse
		rec := env.do(t, http.MethodGet, "/v1/inbox/unread-count", memberToken, nil, &count)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, count.Count)

		var items []chat.InboxItem
		env.do(t, http.MethodGet, "/v1/inbox?unread=true", memberToken, nil, &items)
		require.Len(t, items, 1)
		assert.Equal(t, "Team call", items[0].Title)
		assert.Equal(t, b.ID, items[0].SourceID)
		assert.Nil(t, items[0].ReadAt)

		rec = env.do(t, http.MethodPost, "/v1/inbox/read", memberToken, marchallObj(t, echoapi.IDsRequest{IDs: []string{items[0].ID}}), &count)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, count.Count)

		env.do(t, http.MethodGet, "/v1/inbox/unread-count", memberToken, nil, &count)
		assert.Zero(t, count.Count)

		rec = env.do(t, http.MethodPost, "/v1/inbox/read-all", memberToken, nil, &count)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, count.Count)

		items = nil
		env.do(t, http.MethodGet, "/v1/inbox?unread=true", memberToken, nil, &items)
		assert.Empty(t, items)
	})

	t.Run("leaders do not receive their own broadcast", func(t *testing.T) {
		var count echoapi.CountResponse
		env.do(t, http.MethodGet, "/v1/inbox/unread-count", leaderToken, nil, &count)
		assert.Zero(t, count.Count)
	})
}
