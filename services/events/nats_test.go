package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/services/events"
	testutil "github.com/purelifecenter/portal/tests"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := events.NewNATSPublisher(url, "plc", testutil.NewLogger())
	require.NoError(t, err)
	defer pub.Close()
	assert.Equal(t, "plc.broadcast.sent", pub.Subject(core.TopicBroadcastSent))

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("plc.>", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck
	require.NoError(t, nc.Flush())

	event := map[string]interface{}{"id": "b1", "recipient_count": 3}
	require.NoError(t, pub.Publish(context.Background(), core.TopicBroadcastSent, event))

	select {
	case msg := <-ch:
		assert.Equal(t, "plc.broadcast.sent", msg.Subject)
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "b1", got["id"])
		assert.EqualValues(t, 3, got["recipient_count"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_Errors(t *testing.T) {
	url := startTestNATS(t)
	pub, err := events.NewNATSPublisher(url, "", testutil.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "chat.message.created", pub.Subject(core.TopicChatMessageCreated))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, pub.Publish(ctx, core.TopicChatMessageCreated, struct{}{}))

	assert.Error(t, pub.Publish(context.Background(), core.TopicChatMessageCreated, make(chan int)),
		"unencodable events are rejected")

	require.NoError(t, pub.Close())
	assert.NoError(t, pub.Close(), "closing twice is harmless")

	_, err = events.NewNATSPublisher("nats://127.0.0.1:1", "plc", testutil.NewLogger())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	pub, err := events.New(conf, testutil.NewLogger())
	require.NoError(t, err)
	assert.IsType(t, core.NoopPublisher{}, pub)
}
