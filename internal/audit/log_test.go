package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"bureau.org/internal/auth"
	"bureau.org/internal/domain"
)

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer SetLogger(nil)

	original := domain.Actor{ID: "master-1", Role: domain.RoleSentinel, IsMaster: true, IsActive: true}
	active := domain.Actor{ID: "judge-7", Role: domain.RoleJudge, IsActive: true}

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.WithIdentity(ctx, auth.SessionIdentity{Active: active, Original: &original})

	if err := LogEvent(ctx, "assessment.updated", map[string]any{"target": "person/p1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" || entry["event"] != "assessment.updated" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["actor_id"] != "judge-7" || entry["original_actor_id"] != "master-1" {
		t.Fatalf("unexpected actor ids: %v / %v", entry["actor_id"], entry["original_actor_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["target"] != "person/p1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event")
	}
}
