package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/parentguard/internal/storage"
	"go.etcd.io/bbolt"
)

type requestStore struct {
	db *bbolt.DB
}

func (s *requestStore) Add(ctx context.Context, userID, reason string, createdAt time.Time) (*storage.Request, error) {
	req := storage.NewPendingRequest(userID, reason, createdAt)
	if err := putBucketValue(ctx, s.db, bucketRequests, req.ID, req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *requestStore) Get(ctx context.Context, id string) (*storage.Request, error) {
	return getBucketValue[storage.Request](ctx, s.db, bucketRequests, id)
}

func (s *requestStore) List(ctx context.Context) ([]storage.Request, error) {
	requests, err := listBucket[storage.Request](ctx, s.db, bucketRequests)
	if err != nil {
		return nil, err
	}
	storage.SortRequests(requests)
	return requests, nil
}

func (s *requestStore) Approve(ctx context.Context, id string, durationMinutes *int, untilEndOfDay bool, respondedAt time.Time) (*storage.Request, error) {
	return s.resolve(ctx, id, storage.StatusApproved, durationMinutes, untilEndOfDay, respondedAt)
}

func (s *requestStore) Deny(ctx context.Context, id string, respondedAt time.Time) (*storage.Request, error) {
	return s.resolve(ctx, id, storage.StatusDenied, nil, false, respondedAt)
}

// resolve reads, checks and rewrites the request in one write transaction so two admins
// cannot both resolve it.
func (s *requestStore) resolve(ctx context.Context, id string, status storage.RequestStatus, durationMinutes *int, untilEndOfDay bool, respondedAt time.Time) (*storage.Request, error) {
	var req storage.Request
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketRequests))
		if b == nil {
			return fmt.Errorf("requests bucket missing")
		}
		existing := b.Get([]byte(id))
		if existing == nil {
			return storage.ErrNotFound
		}
		if err := unmarshal(existing, &req); err != nil {
			return err
		}
		if err := req.Resolve(status, durationMinutes, untilEndOfDay, respondedAt); err != nil {
			return err
		}
		data, err := marshal(req)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}
