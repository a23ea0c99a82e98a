package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrInvalidSubject reports an execution id that cannot form a subject token.
var ErrInvalidSubject = errors.New("invalid subject token")

// NATSPublisher publishes events as JSON over core NATS.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
}

// Connect dials url and returns a publisher that closes the connection on
// Close.
func Connect(url, prefix string, opts ...nats.Option) (*NATSPublisher, error) {
	opts = append([]nats.Option{
		nats.Name("brandflow"),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(-1),
	}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	p := NewNATSPublisher(nc, prefix)
	p.owned = true
	return p, nil
}

// NewNATSPublisher wraps an existing connection. Close does not close nc.
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: nc, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject returns the subject for e.
func (p *NATSPublisher) Subject(e Event) (string, error) {
	if e.ExecutionID == "" || strings.ContainsAny(e.ExecutionID, ".*> \t\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSubject, e.ExecutionID)
	}
	return fmt.Sprintf("%s.%s.%s", p.prefix, e.ExecutionID, e.Type), nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, err := p.Subject(e)
	if err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}

// Close drains the connection if the publisher created it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.conn.Drain()
}
