package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"rosterd.org/internal/ids"
	"rosterd.org/internal/obs"
)

// Log writes action-log entries as JSON lines through the shared logger.
// It is the sink used when no database is configured.
type Log struct{}

// NewLog constructs a JSON-line action-log sink.
func NewLog() *Log { return &Log{} }

// Append emits one JSON line per entry. Missing id and timestamp are
// stamped here so callers only describe the action.
func (l *Log) Append(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("audit: nil entry")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit: action is required")
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	line := map[string]any{
		"ts":       entry.OccurredAt.Format(time.RFC3339Nano),
		"type":     "audit",
		"id":       entry.ID,
		"actor_id": entry.ActorID,
		"action":   entry.Action,
		"details":  entry.Details,
	}
	if entry.IP != "" {
		line["ip"] = entry.IP
	}
	if entry.SystemID != "" {
		line["system_id"] = entry.SystemID
	}
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
