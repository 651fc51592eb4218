// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/codemate/internal/domain"
)

// Repository persists the turn log.
type Repository interface {
	// RecordTurn appends a turn and sets its ID.
	RecordTurn(ctx context.Context, turn *domain.Turn) error

	// RecentTurns returns up to limit turns for a session, newest first.
	RecentTurns(ctx context.Context, sessionKey string, limit int) ([]domain.Turn, error)

	// DeleteSessionTurns removes every turn recorded for a session.
	DeleteSessionTurns(ctx context.Context, sessionKey string) (int64, error)

	// DeleteTurnsBefore removes turns created before cutoff.
	DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
