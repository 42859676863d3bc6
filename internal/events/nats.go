package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"ontologycore/internal/observability"
)

// Publisher is the subset of *nats.Conn used by the forwarder.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Connect dials the NATS server at url under the ontologycore client name.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	opts = append([]nats.Option{nats.Name("ontologycore")}, opts...)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

// NATSForwarder publishes bus events as JSON on a subject. Failures are
// logged and never reach the publisher of the bus event.
type NATSForwarder[E any] struct {
	pub     Publisher
	subject string
	logger  observability.Logger
}

// NewNATSForwarder returns a forwarder writing to subject through pub.
func NewNATSForwarder[E any](pub Publisher, subject string, logger observability.Logger) *NATSForwarder[E] {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &NATSForwarder[E]{pub: pub, subject: subject, logger: logger}
}

// Attach subscribes the forwarder to bus.
func (f *NATSForwarder[E]) Attach(bus *Bus[E]) {
	bus.Subscribe(f.Forward)
}

// Forward encodes event and publishes it.
func (f *NATSForwarder[E]) Forward(_ context.Context, event E) {
	data, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("encode event", "subject", f.subject, "error", err)
		return
	}
	if err := f.pub.Publish(f.subject, data); err != nil {
		f.logger.Warn("forward event to nats", "subject", f.subject, "error", err)
	}
}
