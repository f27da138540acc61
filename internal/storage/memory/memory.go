// Package memory provides an in-process storage.Store used when no external backend is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/parentguard/internal/storage"
)

// Store implements storage.Store with maps guarded by a mutex.
type Store struct {
	requests *requestStore
	policies *policyStore
	usage    *usageStore
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		requests: &requestStore{items: make(map[string]storage.Request)},
		policies: &policyStore{items: make(map[string]storage.PolicyRecord)},
		usage:    &usageStore{items: make(map[string]storage.DailyUsage)},
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Requests returns the RequestStore implementation.
func (s *Store) Requests() storage.RequestStore { return s.requests }

// Policies returns the PolicyStore implementation.
func (s *Store) Policies() storage.PolicyStore { return s.policies }

// Usage returns the UsageStore implementation.
func (s *Store) Usage() storage.UsageStore { return s.usage }

type requestStore struct {
	mu    sync.Mutex
	items map[string]storage.Request
}

func (s *requestStore) Add(_ context.Context, userID, reason string, createdAt time.Time) (*storage.Request, error) {
	req := storage.NewPendingRequest(userID, reason, createdAt)

	s.mu.Lock()
	s.items[req.ID] = req
	s.mu.Unlock()

	return &req, nil
}

func (s *requestStore) Get(_ context.Context, id string) (*storage.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &req, nil
}

func (s *requestStore) List(_ context.Context) ([]storage.Request, error) {
	s.mu.Lock()
	out := make([]storage.Request, 0, len(s.items))
	for _, req := range s.items {
		out = append(out, req)
	}
	s.mu.Unlock()

	storage.SortRequests(out)
	return out, nil
}

func (s *requestStore) Approve(_ context.Context, id string, durationMinutes *int, untilEndOfDay bool, respondedAt time.Time) (*storage.Request, error) {
	return s.resolve(id, storage.StatusApproved, durationMinutes, untilEndOfDay, respondedAt)
}

func (s *requestStore) Deny(_ context.Context, id string, respondedAt time.Time) (*storage.Request, error) {
	return s.resolve(id, storage.StatusDenied, nil, false, respondedAt)
}

func (s *requestStore) resolve(id string, status storage.RequestStatus, durationMinutes *int, untilEndOfDay bool, respondedAt time.Time) (*storage.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if err := req.Resolve(status, durationMinutes, untilEndOfDay, respondedAt); err != nil {
		return nil, err
	}
	s.items[id] = req
	return &req, nil
}

type policyStore struct {
	mu    sync.RWMutex
	items map[string]storage.PolicyRecord
}

func (s *policyStore) Get(_ context.Context, userID string) (*storage.PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.items[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

func (s *policyStore) List(_ context.Context) ([]storage.PolicyRecord, error) {
	s.mu.RLock()
	out := make([]storage.PolicyRecord, 0, len(s.items))
	for _, rec := range s.items {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *policyStore) Upsert(_ context.Context, record storage.PolicyRecord) error {
	s.mu.Lock()
	s.items[record.UserID] = record
	s.mu.Unlock()
	return nil
}

func (s *policyStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.items, userID)
	return nil
}

type usageStore struct {
	mu    sync.Mutex
	items map[string]storage.DailyUsage
}

func (s *usageStore) IncrementDailyUsage(_ context.Context, date, userID string, minutes int) error {
	key := storage.UsageKey(date, userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	usage, ok := s.items[key]
	if !ok {
		usage = storage.DailyUsage{Date: date, UserID: userID}
	}
	usage.Minutes += minutes
	s.items[key] = usage
	return nil
}

func (s *usageStore) GetDailyUsage(_ context.Context, date, userID string) (*storage.DailyUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage, ok := s.items[storage.UsageKey(date, userID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &usage, nil
}

func (s *usageStore) ListDailyUsage(_ context.Context, date string) ([]storage.DailyUsage, error) {
	s.mu.Lock()
	out := make([]storage.DailyUsage, 0)
	for _, usage := range s.items {
		if usage.Date == date {
			out = append(out, usage)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
