// Package push delivers Web Push messages signed with the portal's VAPID keys.
package push

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"

	corepush "github.com/purelifecenter/portal/core/push"
)

type WebPushSender struct {
	client *http.Client
}

var _ corepush.Sender = (*WebPushSender)(nil)

// NewWebPushSender uses a client with a 10s timeout when client is nil.
func NewWebPushSender(client *http.Client) *WebPushSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebPushSender{client: client}
}

func (s *WebPushSender) Send(ctx context.Context, conf corepush.Config, sub corepush.Subscription, payload []byte, ttl int) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      conf.Subject,
		VAPIDPublicKey:  conf.VAPIDPublicKey,
		VAPIDPrivateKey: conf.VAPIDPrivateKey,
		TTL:             ttl,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return 0, errors.Wrap(err, "sending web push")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(ioutil.Discard, resp.Body)
	return resp.StatusCode, nil
}
