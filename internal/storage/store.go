package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage, or when an admin request
// has already been resolved.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Requests() RequestStore
	Policies() PolicyStore
	Usage() UsageStore
}

// RequestStore holds "ask for more time" requests awaiting an admin decision.
type RequestStore interface {
	Add(ctx context.Context, userID, reason string, createdAt time.Time) (*Request, error)
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context) ([]Request, error)
	// Approve and Deny resolve a pending request exactly once. Unknown or already
	// resolved ids return ErrNotFound.
	Approve(ctx context.Context, id string, durationMinutes *int, untilEndOfDay bool, respondedAt time.Time) (*Request, error)
	Deny(ctx context.Context, id string, respondedAt time.Time) (*Request, error)
}

// PolicyStore persists per-user profile policies as opaque JSON documents.
type PolicyStore interface {
	Get(ctx context.Context, userID string) (*PolicyRecord, error)
	List(ctx context.Context) ([]PolicyRecord, error)
	Upsert(ctx context.Context, record PolicyRecord) error
	Delete(ctx context.Context, userID string) error
}

// UsageStore keeps per-day watch-time history.
type UsageStore interface {
	IncrementDailyUsage(ctx context.Context, date, userID string, minutes int) error
	GetDailyUsage(ctx context.Context, date, userID string) (*DailyUsage, error)
	ListDailyUsage(ctx context.Context, date string) ([]DailyUsage, error)
}
