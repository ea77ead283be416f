// Package bus carries session lifecycle events between processes.
// The NATS implementation is used when several dashboard workers share a
// server; the in-memory bus serves single-process deployments and tests.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/odvcencio/geodash/pkg/config"
)

// ErrClosed is returned when operating on a closed bus or subscription.
var ErrClosed = errors.New("bus or subscription closed")

// MessageBus is the publish/subscribe surface used by the session registry.
// Implementations must be safe for concurrent use.
type MessageBus interface {
	// Publish sends a message to all subscribers of the given subject.
	// Returns immediately; does not wait for message delivery.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// Supports wildcards: "geodash.session.*" matches "geodash.session.created".
	Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error)

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(msg *Message)

// Message represents an incoming message from the bus.
type Message struct {
	Subject string
	Data    []byte
}

// Subscription represents an active subscription that can be cancelled.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}

// Subjects builds subject names under a common prefix.
type Subjects struct {
	Prefix string
}

func (s Subjects) SessionCreated() string { return s.join("session.created") }
func (s Subjects) SessionClosed() string  { return s.join("session.closed") }
func (s Subjects) Sessions() string       { return s.join("session.*") }

func (s Subjects) join(suffix string) string {
	if s.Prefix == "" {
		return suffix
	}
	return s.Prefix + "." + suffix
}

// Open returns the bus selected by cfg.
func Open(cfg config.BusConfig) (MessageBus, error) {
	switch cfg.Backend {
	case "", config.BusBackendMemory:
		return NewMemoryBus(), nil
	case config.BusBackendNATS:
		return NewNATSBus(NATSConfig{URL: cfg.URL, Name: "geodash", Timeout: 10 * time.Second})
	default:
		return nil, fmt.Errorf("unknown bus backend %q", cfg.Backend)
	}
}

// PublishJSON encodes v and publishes it on subject.
func PublishJSON(ctx context.Context, b MessageBus, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	return b.Publish(ctx, subject, data)
}
