// Package events publishes workflow execution lifecycle events.
//
// Events go to NATS subjects of the form
//
//	{prefix}.{execution_id}.{type}
//
// where type is one of started, stage, completed or failed. Publishing is
// best effort: callers log failures and carry on.
package events

import (
	"context"
	"time"
)

// Type is the lifecycle event type.
type Type string

const (
	TypeStarted   Type = "started"
	TypeStage     Type = "stage"
	TypeCompleted Type = "completed"
	TypeFailed    Type = "failed"
)

// Event is one lifecycle notification.
type Event struct {
	Type        Type      `json:"type"`
	ExecutionID string    `json:"execution_id"`
	TraceID     string    `json:"trace_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	State       string    `json:"state,omitempty"`
	StageID     string    `json:"stage_id,omitempty"`
	StageKind   string    `json:"stage_kind,omitempty"`
	Value       string    `json:"value,omitempty"`
	Path        []string  `json:"path,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
