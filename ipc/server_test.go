package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"deskhand/cache"
	"deskhand/command"
	"deskhand/conversation"
	"deskhand/pipeline"
	"deskhand/storage"
	"deskhand/sysquery"
)

// nopInjector satisfies command.Injector without touching a display.
type nopInjector struct{ typed []string }

func (n *nopInjector) Move(context.Context, int, int) error { return nil }
func (n *nopInjector) Click(context.Context, int, int, int, bool, bool) error {
	return nil
}
func (n *nopInjector) Type(_ context.Context, text string) error {
	n.typed = append(n.typed, text)
	return nil
}
func (n *nopInjector) Key(context.Context, string) error                    { return nil }
func (n *nopInjector) Drag(context.Context, int, int, int, int, float64) error { return nil }
func (n *nopInjector) Scroll(context.Context, int, int, int) error          { return nil }
func (n *nopInjector) Screenshot(context.Context, string) error             { return nil }
func (n *nopInjector) WaitForWindow(context.Context, string, time.Duration) error {
	return nil
}

func startTestServer(t *testing.T) (string, *nopInjector, *storage.TranscriptStore) {
	t.Helper()

	c := cache.New(50, time.Hour, zerolog.Nop())
	convo := conversation.New(zerolog.Nop())
	// No gateway: inference degrades to the rule-based planner, which is
	// deterministic and keeps the test offline.
	pipe := pipeline.New(c, sysquery.NewLocal(zerolog.Nop()), convo, nil, zerolog.Nop())

	inj := &nopInjector{}
	store, err := storage.NewTranscriptInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	socketPath := filepath.Join(t.TempDir(), "deskhand.sock")
	srv := NewServer(socketPath,
		pipe,
		command.NewValidator(zerolog.Nop()),
		command.NewExecutor(inj, zerolog.Nop()),
		store,
		zerolog.Nop(),
	)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	return socketPath, inj, store
}

func TestQueryReturnsPlan(t *testing.T) {
	socketPath, _, _ := startTestServer(t)

	var plan command.Plan
	if err := Request(context.Background(), socketPath, "open firefox", &plan); err != nil {
		t.Fatalf("request: %v", err)
	}
	if plan.IsError() {
		t.Fatalf("plan errored: %s", plan.Err)
	}
	if !plan.FallbackMode || len(plan.Steps) == 0 {
		t.Errorf("plan = %+v", plan)
	}
}

func TestCacheCheckMissAndHit(t *testing.T) {
	socketPath, _, _ := startTestServer(t)

	var miss map[string]any
	if err := Request(context.Background(), socketPath, "CACHE_CHECK:what time is it", &miss); err != nil {
		t.Fatal(err)
	}
	if cached, ok := miss["cached"].(bool); !ok || cached {
		t.Errorf("miss response = %v", miss)
	}

	// A full query populates the cache.
	var plan command.Plan
	if err := Request(context.Background(), socketPath, "what time is it", &plan); err != nil {
		t.Fatal(err)
	}

	var hit command.Plan
	if err := Request(context.Background(), socketPath, "CACHE_CHECK:what time is it", &hit); err != nil {
		t.Fatal(err)
	}
	if hit.Description == "" || !hit.SystemQuery {
		t.Errorf("hit = %+v", hit)
	}
}

func TestExecuteRunsValidatedPlan(t *testing.T) {
	socketPath, inj, _ := startTestServer(t)

	raw := `EXECUTE:{"plan": [{"action": "type", "text": "hello"}], "description": "typing"}`
	var result ExecuteResult
	if err := Request(context.Background(), socketPath, raw, &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Report == nil || result.Report.Executed != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(inj.typed) != 1 || inj.typed[0] != "hello" {
		t.Errorf("typed = %v", inj.typed)
	}
}

func TestExecuteRejectsUnsafePlan(t *testing.T) {
	socketPath, inj, _ := startTestServer(t)

	raw := `EXECUTE:{"plan": [{"action": "type", "text": "rm -rf /"}], "description": "nope"}`
	var result ExecuteResult
	if err := Request(context.Background(), socketPath, raw, &result); err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Error == "" {
		t.Errorf("result = %+v, want rejection", result)
	}
	if len(inj.typed) != 0 {
		t.Error("rejected plan must not reach the injector")
	}
}

func TestQueriesAudited(t *testing.T) {
	socketPath, _, store := startTestServer(t)

	var plan command.Plan
	if err := Request(context.Background(), socketPath, "open firefox", &plan); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.ListSessions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %v", sessions)
	}
	records, err := store.RecentPlans(context.Background(), sessions[0], 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Query != "open firefox" || !records[0].FallbackMode {
		t.Errorf("records = %+v", records)
	}
}
