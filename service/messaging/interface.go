package messaging

import (
	"context"
)

// Queue represents an abstract message queue for any payload type.  The
// suspension manager publishes audit events through a Queue so that decision
// front-ends can observe freezes and human decisions without polling.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue
	Consume(ctx context.Context) (Message[T], error)
}

// TryPublisher is an optional queue capability: a publish that never blocks,
// dropping the payload when the queue cannot accept it right away.  Producers
// on paths that must not stall, such as the suspension manager's audit
// fan-out, prefer it over Publish when the queue offers it.
type TryPublisher[T any] interface {
	TryPublish(ctx context.Context, t *T) bool
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}
