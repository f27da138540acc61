package bolt

import (
	"context"
	"fmt"

	"github.com/goodtune/parentguard/internal/storage"
	"go.etcd.io/bbolt"
)

type policyStore struct {
	db *bbolt.DB
}

func (s *policyStore) Get(ctx context.Context, userID string) (*storage.PolicyRecord, error) {
	return getBucketValue[storage.PolicyRecord](ctx, s.db, bucketPolicies, userID)
}

// List returns records in key order, which is user id order.
func (s *policyStore) List(ctx context.Context) ([]storage.PolicyRecord, error) {
	return listBucket[storage.PolicyRecord](ctx, s.db, bucketPolicies)
}

func (s *policyStore) Upsert(ctx context.Context, record storage.PolicyRecord) error {
	if record.UserID == "" {
		return fmt.Errorf("policy user_id is required")
	}
	return putBucketValue(ctx, s.db, bucketPolicies, record.UserID, record)
}

func (s *policyStore) Delete(ctx context.Context, userID string) error {
	return deleteBucketValue(ctx, s.db, bucketPolicies, userID)
}
