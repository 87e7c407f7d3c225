package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"rosterd.org/internal/obs"
)

func TestLogAppend(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	sink := NewLog()
	entry := &Entry{
		ActorID:  "admin01",
		Action:   "create_user",
		Details:  "Created user jdoe01 (student)",
		IP:       "203.0.113.7",
		SystemID: "lab-terminal-3",
	}
	if err := sink.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("expected id to be stamped")
	}
	if entry.OccurredAt.IsZero() {
		t.Fatal("expected timestamp to be stamped")
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if decoded["type"] != "audit" {
		t.Fatalf("unexpected type: %v", decoded["type"])
	}
	if decoded["actor_id"] != "admin01" {
		t.Fatalf("unexpected actor: %v", decoded["actor_id"])
	}
	if decoded["action"] != "create_user" {
		t.Fatalf("unexpected action: %v", decoded["action"])
	}
	if decoded["ip"] != "203.0.113.7" {
		t.Fatalf("unexpected ip: %v", decoded["ip"])
	}
}

func TestLogAppendRejectsEmptyAction(t *testing.T) {
	sink := NewLog()
	if err := sink.Append(context.Background(), &Entry{ActorID: "x"}); err == nil {
		t.Fatal("expected error for empty action")
	}
}

type captureBus struct {
	entries []Entry
}

func (c *captureBus) Publish(entry Entry) { c.entries = append(c.entries, entry) }

func TestWithBroadcast(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	bus := &captureBus{}
	sink := WithBroadcast(NewLog(), bus)
	if err := sink.Append(context.Background(), &Entry{ActorID: "admin01", Action: "logout"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if len(bus.entries) != 1 {
		t.Fatalf("expected 1 published entry, got %d", len(bus.entries))
	}
	if bus.entries[0].Action != "logout" {
		t.Fatalf("unexpected action: %s", bus.entries[0].Action)
	}
}
