// Package events publishes domain events to NATS for realtime subscribers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
)

// NATSPublisher publishes JSON encoded events on "<prefix>.<topic>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	log    core.Logger
}

var _ core.EventPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url, prefix string, log core.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("plc-portal"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected from NATS", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("reconnected to NATS at " + c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to NATS at %s", url)
	}
	return &NATSPublisher{conn: nc, prefix: prefix, log: log}, nil
}

// Subject returns the NATS subject a topic is published on.
func (p *NATSPublisher) Subject(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + "." + topic
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshaling event")
	}
	return errors.Wrapf(p.conn.Publish(p.Subject(topic), data), "publishing %s", topic)
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.Drain()
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrConnectionDraining) {
		return nil
	}
	return err
}

// New returns a NATS publisher when an URL is configured, otherwise a no-op one.
func New(conf *core.Config, log core.Logger) (core.EventPublisher, error) {
	if conf.Events.NATSURL == "" {
		return core.NoopPublisher{}, nil
	}
	return NewNATSPublisher(conf.Events.NATSURL, conf.Events.Prefix, log)
}
