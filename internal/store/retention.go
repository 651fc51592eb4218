package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/codemate/internal/shared"
)

const (
	retentionInterval   = 30 * time.Minute
	retentionMaxRetries = 3
	retentionBaseDelay  = 100 * time.Millisecond
)

// deleteTurnsWithRetry retries the sweep with exponential backoff while the
// database reports a busy or locked error.
func deleteTurnsWithRetry(ctx context.Context, repo Repository, cutoff time.Time) (int64, error) {
	var lastErr error
	for i := 0; i < retentionMaxRetries; i++ {
		deleted, err := repo.DeleteTurnsBefore(ctx, cutoff)
		if err == nil {
			return deleted, nil
		}
		lastErr = err

		if !shared.IsSQLiteConflictError(err) || i == retentionMaxRetries-1 {
			break
		}

		delay := retentionBaseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("Turn retention sweep hit a locked database, retrying",
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	return 0, fmt.Errorf("delete turns before %s after %d attempts: %w",
		cutoff.Format(time.RFC3339), retentionMaxRetries, lastErr)
}

// RunRetention sweeps turns older than retention until ctx is cancelled.
// It blocks; run it in its own goroutine.
func RunRetention(ctx context.Context, repo Repository, retention, interval time.Duration) error {
	if interval <= 0 {
		interval = retentionInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Turn retention worker started", "interval", interval, "retention", retention)

	for {
		select {
		case <-ticker.C:
			sweepTurns(ctx, repo, retention)
		case <-ctx.Done():
			slog.Info("Turn retention worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

func sweepTurns(ctx context.Context, repo Repository, retention time.Duration) {
	deleted, err := deleteTurnsWithRetry(ctx, repo, time.Now().Add(-retention))
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Turn retention sweep failed", "error", err)
		}
		return
	}
	if deleted > 0 {
		slog.Info("Turn retention sweep removed expired turns", "count", deleted)
	}
}
