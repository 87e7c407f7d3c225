// Package audit defines the append-only action-log sink consumed by the
// provisioning and session layers. The core only writes entries; storage
// and retention belong to the sink implementation.
package audit

import (
	"context"
	"time"
)

// Entry is one append-only action-log record.
type Entry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	IP         string    `json:"ip,omitempty"`
	SystemID   string    `json:"system_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Logger appends entries to the action log.
type Logger interface {
	Append(ctx context.Context, entry *Entry) error
}

// Reader lists recent entries, newest first. Sinks that keep history
// implement it; the JSON-line logger does not.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Broadcaster fan-outs appended entries to live subscribers.
type Broadcaster interface {
	Publish(entry Entry)
}

type broadcastLogger struct {
	next Logger
	bus  Broadcaster
}

// WithBroadcast wraps a Logger so every successfully appended entry is also
// published to the broadcaster.
func WithBroadcast(next Logger, bus Broadcaster) Logger {
	if bus == nil {
		return next
	}
	return &broadcastLogger{next: next, bus: bus}
}

func (l *broadcastLogger) Append(ctx context.Context, entry *Entry) error {
	if err := l.next.Append(ctx, entry); err != nil {
		return err
	}
	l.bus.Publish(*entry)
	return nil
}
