package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// RequestStatus is the lifecycle state of an admin request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
)

// UnmarshalJSON implements json.Unmarshaler to normalize status to lowercase.
func (s *RequestStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := RequestStatus(strings.ToLower(raw))
	switch normalized {
	case StatusPending, StatusApproved, StatusDenied:
		*s = normalized
		return nil
	default:
		return fmt.Errorf("invalid request status: %s (must be pending, approved, or denied)", raw)
	}
}

// Request is a pending or resolved "ask for more time" request.
type Request struct {
	ID                      string        `json:"id"`
	UserID                  string        `json:"user_id"`
	Reason                  string        `json:"reason"`
	Status                  RequestStatus `json:"status"`
	CreatedAt               time.Time     `json:"created_at"`
	ResponseAt              *time.Time    `json:"response_at,omitempty"`
	ApprovedDurationMinutes *int          `json:"approved_duration_minutes,omitempty"`
	UntilEndOfDay           bool          `json:"until_end_of_day"`
}

// Pending reports whether the request still awaits a decision.
func (r *Request) Pending() bool {
	return r.Status == StatusPending
}

// PolicyRecord is a stored profile policy for one user.
type PolicyRecord struct {
	UserID    string          `json:"user_id"`
	Policy    json.RawMessage `json:"policy"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DailyUsage aggregates watch minutes per day and user.
type DailyUsage struct {
	Date    string `json:"date"`
	UserID  string `json:"user_id"`
	Minutes int    `json:"minutes"`
}

// SortRequests orders requests oldest first.
func SortRequests(requests []Request) {
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
}
