package core

import "context"

// Event topics
const (
	TopicChatMessageCreated = "chat.message.created"
	TopicBroadcastSent      = "broadcast.sent"
	TopicLessonCompleted    = "training.lesson.completed"
)

// EventPublisher fans domain events out to realtime subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event interface{}) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

var _ EventPublisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NoopPublisher) Close() error                                       { return nil }
