package push

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
)

var (
	ErrConfigNotFound       = core.NewNotFoundError("push notification config")
	ErrSubscriptionNotFound = core.NewNotFoundError("push subscription")
	ErrDisabled             = errors.New("push notifications are disabled")
	ErrNoKeys               = errors.New("no VAPID keys configured")
)

type (
	Repository interface {
		GetConfig(ctx context.Context) (Config, error)
		SaveConfig(ctx context.Context, c Config) (Config, error)

		// UpsertSubscription inserts or updates the subscription matching Endpoint.
		UpsertSubscription(ctx context.Context, s Subscription) (Subscription, error)
		QuerySubscriptions(ctx context.Context, userIDs ...string) ([]Subscription, error)
		DeleteSubscription(ctx context.Context, userID, endpoint string) error
		DeleteSubscriptionsByEndpoint(ctx context.Context, endpoints ...string) (int, error)
	}

	// Sender delivers one signed Web Push message and returns the push service status code.
	Sender interface {
		Send(ctx context.Context, conf Config, sub Subscription, payload []byte, ttl int) (int, error)
	}

	Service interface {
		GetConfig(ctx context.Context) (Config, error)
		UpdateConfig(ctx context.Context, uc UpdateConfig) (Config, error)
		// GenerateKeys replaces the stored VAPID pair with a new one.
		GenerateKeys(ctx context.Context) (Config, error)
		PublicKey(ctx context.Context) (string, error)
		Subscribe(ctx context.Context, userID string, ns NewSubscription) (Subscription, error)
		Unsubscribe(ctx context.Context, userID, endpoint string) error
		// Send pushes n to every subscription of userIDs. Gone endpoints are removed.
		Send(ctx context.Context, userIDs []string, n Notification) (SendResult, error)
	}

	service struct {
		repo    Repository
		sender  Sender
		subject string
		log     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, sender Sender, conf *core.Config, log core.Logger) Service {
	return &service{repo: repo, sender: sender, subject: conf.Push.Subject, log: log}
}

func (svc *service) GetConfig(ctx context.Context) (Config, error) {
	c, err := svc.repo.GetConfig(ctx)
	if err != nil {
		if core.IsNotFound(err) {
			return Config{Subject: svc.subject, DefaultTTL: defaultTTL}, nil
		}
		return Config{}, errors.Wrap(err, "getting push config")
	}
	return c, nil
}

func (svc *service) UpdateConfig(ctx context.Context, uc UpdateConfig) (Config, error) {
	c, err := svc.GetConfig(ctx)
	if err != nil {
		return Config{}, err
	}
	c = uc.Apply(c)
	if c.Enabled && !c.HasKeys() {
		return Config{}, core.NewValidationError(ErrNoKeys, core.FieldError{Field: "enabled", Error: ErrNoKeys.Error()})
	}
	c.UpdatedAt = core.NowFunc()
	return svc.repo.SaveConfig(ctx, c)
}

func (svc *service) GenerateKeys(ctx context.Context) (Config, error) {
	c, err := svc.GetConfig(ctx)
	if err != nil {
		return Config{}, err
	}
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return Config{}, errors.Wrap(err, "generating VAPID keys")
	}
	c.VAPIDPublicKey = pub
	c.VAPIDPrivateKey = priv
	c.UpdatedAt = core.NowFunc()
	return svc.repo.SaveConfig(ctx, c)
}

func (svc *service) PublicKey(ctx context.Context) (string, error) {
	c, err := svc.GetConfig(ctx)
	if err != nil {
		return "", err
	}
	if !c.Enabled {
		return "", ErrDisabled
	}
	if c.VAPIDPublicKey == "" {
		return "", ErrNoKeys
	}
	return c.VAPIDPublicKey, nil
}

func (svc *service) Subscribe(ctx context.Context, userID string, ns NewSubscription) (Subscription, error) {
	now := core.NowFunc()
	return svc.repo.UpsertSubscription(ctx, Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		Endpoint:  ns.Endpoint,
		P256dh:    ns.Keys.P256dh,
		Auth:      ns.Keys.Auth,
		UserAgent: ns.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return svc.repo.DeleteSubscription(ctx, userID, core.CleanString(endpoint))
}

func (svc *service) Send(ctx context.Context, userIDs []string, n Notification) (SendResult, error) {
	var res SendResult

	c, err := svc.GetConfig(ctx)
	if err != nil {
		return res, err
	}
	if !c.Enabled {
		return res, ErrDisabled
	}
	if !c.HasKeys() {
		return res, ErrNoKeys
	}
	if len(userIDs) == 0 {
		return res, nil
	}

	if n.Icon == "" {
		n.Icon = c.DefaultIcon
	}
	ttl := n.TTL
	if ttl == 0 {
		ttl = c.DefaultTTL
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return res, errors.Wrap(err, "encoding notification")
	}

	subs, err := svc.repo.QuerySubscriptions(ctx, userIDs...)
	if err != nil {
		return res, errors.Wrap(err, "querying subscriptions")
	}

	var gone []string
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		status, err := svc.sender.Send(ctx, c, sub, payload, ttl)
		switch {
		case status == http.StatusNotFound || status == http.StatusGone:
			gone = append(gone, sub.Endpoint)
		case err != nil:
			svc.log.Warn("sending push notification", errors.Wrap(err, sub.Endpoint))
			res.Failed++
		case status >= http.StatusBadRequest:
			svc.log.Warn("push service rejected notification", map[string]interface{}{"status": status, "endpoint": sub.Endpoint})
			res.Failed++
		default:
			res.Sent++
		}
	}

	if len(gone) > 0 {
		removed, err := svc.repo.DeleteSubscriptionsByEndpoint(ctx, gone...)
		if err != nil {
			return res, errors.Wrap(err, "removing expired subscriptions")
		}
		res.Removed = removed
	}
	return res, nil
}
