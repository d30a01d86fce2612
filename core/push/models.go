package push

import (
	"time"

	"github.com/purelifecenter/portal/core"
)

const defaultTTL = 24 * 60 * 60 // seconds

// Config holds the VAPID key pair used to sign Web Push requests. There is a single row.
type Config struct {
	Enabled         bool      `json:"enabled"`
	VAPIDPublicKey  string    `json:"vapid_public_key"`
	VAPIDPrivateKey string    `json:"-"`
	Subject         string    `json:"subject"`
	DefaultTTL      int       `json:"default_ttl"`
	DefaultIcon     string    `json:"default_icon"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasKeys reports whether a VAPID pair has been generated.
func (c Config) HasKeys() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

type UpdateConfig struct {
	Enabled     *bool   `json:"enabled"`
	Subject     *string `json:"subject" validate:"omitempty,notblank,max=200"`
	DefaultTTL  *int    `json:"default_ttl" validate:"omitempty,min=0,max=2419200"`
	DefaultIcon *string `json:"default_icon" validate:"omitempty,max=1000"`
}

func (uc *UpdateConfig) Validate() error {
	if uc.Subject != nil {
		*uc.Subject = core.CleanString(*uc.Subject)
	}
	return core.Validate.Struct(uc)
}

func (uc UpdateConfig) Apply(c Config) Config {
	if uc.Enabled != nil {
		c.Enabled = *uc.Enabled
	}
	if uc.Subject != nil {
		c.Subject = *uc.Subject
	}
	if uc.DefaultTTL != nil {
		c.DefaultTTL = *uc.DefaultTTL
	}
	if uc.DefaultIcon != nil {
		c.DefaultIcon = *uc.DefaultIcon
	}
	return c
}

// Subscription is a browser push endpoint registered by a user.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSubscription mirrors the browser PushSubscription JSON.
type NewSubscription struct {
	Endpoint string `json:"endpoint" validate:"required,url,max=2000"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
	UserAgent string `json:"-"`
}

func (ns *NewSubscription) Validate() error {
	ns.Endpoint = core.CleanString(ns.Endpoint)
	return core.Validate.Struct(ns)
}

// Notification is the payload delivered to the service worker.
type Notification struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"max=2000"`
	URL   string `json:"url,omitempty" validate:"max=2000"`
	Icon  string `json:"icon,omitempty" validate:"max=1000"`
	Tag   string `json:"tag,omitempty" validate:"max=100"`
	TTL   int    `json:"-" validate:"min=0,max=2419200"`
}

type SendRequest struct {
	UserIDs      []string     `json:"user_ids" validate:"required,min=1,dive,required"`
	Notification Notification `json:"notification"`
}

func (sr *SendRequest) Validate() error {
	sr.UserIDs = core.CleanStrings(sr.UserIDs)
	sr.Notification.Title = core.CleanString(sr.Notification.Title)
	return core.Validate.Struct(sr)
}

type SendResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
}
