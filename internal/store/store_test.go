package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/codemate/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "turns.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListTurns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	for i, req := range []string{"first", "second", "third"} {
		turn := &domain.Turn{
			SessionKey: "u1:tab",
			Route:      domain.RouteConversational,
			Request:    req,
			Response:   "ok",
			DurationMs: int64(i),
		}
		if err := s.RecordTurn(ctx, turn); err != nil {
			t.Fatalf("RecordTurn failed: %v", err)
		}
		if turn.ID == 0 || turn.CreatedAt.IsZero() {
			t.Fatalf("Expected ID and timestamp to be set, got %+v", turn)
		}
	}
	other := &domain.Turn{SessionKey: "u2:tab", Route: domain.RouteAgentic, TaskKind: "calculate", Request: "calculate 1+1", Response: "2"}
	if err := s.RecordTurn(ctx, other); err != nil {
		t.Fatalf("RecordTurn failed: %v", err)
	}

	turns, err := s.RecentTurns(ctx, "u1:tab", 2)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(turns) != 2 || turns[0].Request != "third" || turns[1].Request != "second" {
		t.Fatalf("Expected newest two turns, got %+v", turns)
	}

	turns, err = s.RecentTurns(ctx, "u2:tab", 0)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(turns) != 1 || turns[0].TaskKind != "calculate" || turns[0].Route != domain.RouteAgentic {
		t.Fatalf("Unexpected turns %+v", turns)
	}
}

func TestDeleteTurns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	old := &domain.Turn{SessionKey: "a", Route: domain.RouteConversational, Request: "old", Response: "x", CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &domain.Turn{SessionKey: "a", Route: domain.RouteConversational, Request: "fresh", Response: "x"}
	otherSession := &domain.Turn{SessionKey: "b", Route: domain.RouteConversational, Request: "b", Response: "x"}
	for _, turn := range []*domain.Turn{old, fresh, otherSession} {
		if err := s.RecordTurn(ctx, turn); err != nil {
			t.Fatalf("RecordTurn failed: %v", err)
		}
	}

	deleted, err := s.DeleteTurnsBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || deleted != 1 {
		t.Fatalf("DeleteTurnsBefore = %d, %v; want 1, nil", deleted, err)
	}

	deleted, err = s.DeleteSessionTurns(ctx, "a")
	if err != nil || deleted != 1 {
		t.Fatalf("DeleteSessionTurns = %d, %v; want 1, nil", deleted, err)
	}

	turns, _ := s.RecentTurns(ctx, "b", 10)
	if len(turns) != 1 {
		t.Fatalf("Expected other session untouched, got %d turns", len(turns))
	}
}

type flakyRepo struct {
	Repository
	mu       sync.Mutex
	failures []error
	calls    int
}

func (f *flakyRepo) DeleteTurnsBefore(context.Context, time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return 0, err
	}
	return 3, nil
}

func (f *flakyRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDeleteTurnsWithRetry(t *testing.T) {
	t.Parallel()

	repo := &flakyRepo{failures: []error{
		errors.New("SQLITE_BUSY: database busy"),
		errors.New("database is locked"),
	}}
	deleted, err := deleteTurnsWithRetry(context.Background(), repo, time.Now())
	if err != nil || deleted != 3 {
		t.Fatalf("deleteTurnsWithRetry = %d, %v; want 3, nil", deleted, err)
	}
	if repo.calls != 3 {
		t.Fatalf("Expected 3 attempts, got %d", repo.calls)
	}

	fatal := &flakyRepo{failures: []error{errors.New("disk I/O error")}}
	if _, err := deleteTurnsWithRetry(context.Background(), fatal, time.Now()); err == nil {
		t.Fatal("Expected non-retryable error to surface")
	}
	if fatal.calls != 1 {
		t.Fatalf("Expected a single attempt for non-retryable error, got %d", fatal.calls)
	}
}

func TestRunRetentionStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	repo := &flakyRepo{}
	done := make(chan error, 1)
	go func() { done <- RunRetention(ctx, repo, time.Hour, 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("Retention worker never swept")
		case <-time.After(20 * time.Millisecond):
		}
		if repo.callCount() > 0 {
			break
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("RunRetention returned %v", err)
	}
}
