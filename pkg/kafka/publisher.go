package kafka

import "context"

// Publisher sends events to a topic. *Producer implements it against Kafka;
// NopPublisher is used when messaging is disabled.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, *Event) error { return nil }

func (NopPublisher) Close() error { return nil }
