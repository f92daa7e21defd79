package storage

import (
	"context"
	"testing"
	"time"

	"deskhand/command"
	"deskhand/conversation"
)

func newTestStore(t *testing.T) *TranscriptStore {
	t.Helper()
	store, err := NewTranscriptInMemory()
	if err != nil {
		t.Fatalf("failed to create in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleHistory() []conversation.Message {
	now := time.Now()
	return []conversation.Message{
		{Role: "user", Content: "open firefox", Timestamp: now},
		{Role: "assistant", Content: "Opening Firefox", Timestamp: now.Add(time.Second)},
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "session-1", sampleHistory()); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "session-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d messages, want 2", len(loaded))
	}
	if loaded[0].Role != "user" || loaded[0].Content != "open firefox" {
		t.Errorf("first message = %+v", loaded[0])
	}
	if loaded[1].Role != "assistant" {
		t.Errorf("second message role = %q", loaded[1].Role)
	}
}

func TestSaveReplacesHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "session-1", sampleHistory()); err != nil {
		t.Fatal(err)
	}
	replacement := []conversation.Message{
		{Role: "user", Content: "only message", Timestamp: time.Now()},
	}
	if err := store.Save(ctx, "session-1", replacement); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, "session-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].Content != "only message" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoadMissingSessionIsEmpty(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded = %+v, want empty", loaded)
	}
}

func TestListAndExistsAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "a", sampleHistory()); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "b", sampleHistory()); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Errorf("sessions = %v", sessions)
	}

	exists, err := store.Exists(ctx, "a")
	if err != nil || !exists {
		t.Errorf("exists(a) = %v, %v", exists, err)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	exists, err = store.Exists(ctx, "a")
	if err != nil || exists {
		t.Errorf("exists after delete = %v, %v", exists, err)
	}
}

func TestPlanAuditTrail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	plan := &command.Plan{
		Description:  "Opening firefox",
		Steps:        []command.Step{{Op: command.OpKey, Key: "super"}, {Op: command.OpType, Text: "firefox"}},
		FallbackMode: true,
	}
	if err := store.RecordPlan(ctx, "session-1", "req-123", "open firefox", plan); err != nil {
		t.Fatalf("record: %v", err)
	}
	answer := &command.Plan{Description: "The current time is 12:00", SystemQuery: true}
	if err := store.RecordPlan(ctx, "session-1", "req-124", "what time is it", answer); err != nil {
		t.Fatal(err)
	}

	records, err := store.RecentPlans(ctx, "session-1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	// Newest first.
	if records[0].RequestID != "req-124" || !records[0].SystemQuery {
		t.Errorf("newest record = %+v", records[0])
	}
	if records[1].StepCount != 2 || !records[1].FallbackMode {
		t.Errorf("oldest record = %+v", records[1])
	}
}
