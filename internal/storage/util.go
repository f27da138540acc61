package storage

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// NewRequestID returns a fresh opaque request identifier.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewPendingRequest builds a pending request with a fresh id.
func NewPendingRequest(userID, reason string, createdAt time.Time) Request {
	return Request{
		ID:        NewRequestID(),
		UserID:    userID,
		Reason:    reason,
		Status:    StatusPending,
		CreatedAt: createdAt.UTC(),
	}
}

// Resolve applies an approval or denial to a pending request in place.
// It returns ErrNotFound when the request was already resolved.
func (r *Request) Resolve(status RequestStatus, durationMinutes *int, untilEndOfDay bool, respondedAt time.Time) error {
	if !r.Pending() {
		return ErrNotFound
	}
	at := respondedAt.UTC()
	r.Status = status
	r.ResponseAt = &at
	if status == StatusApproved {
		r.ApprovedDurationMinutes = durationMinutes
		r.UntilEndOfDay = untilEndOfDay
	}
	return nil
}

// UsageKey joins a date and user into a composite key.
func UsageKey(date, userID string) string {
	return date + ":" + userID
}
