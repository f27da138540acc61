package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/goodtune/parentguard/internal/storage"
	"github.com/redis/go-redis/v9"
)

type policyStore struct {
	client *redis.Client
}

// Get retrieves the policy stored for a user
func (s *policyStore) Get(ctx context.Context, userID string) (*storage.PolicyRecord, error) {
	data, err := s.client.Get(ctx, policyKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var record storage.PolicyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode policy record: %w", err)
	}
	return &record, nil
}

// List returns every stored policy ordered by user ID
func (s *policyStore) List(ctx context.Context) ([]storage.PolicyRecord, error) {
	userIDs, err := s.client.SMembers(ctx, policiesIndexKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(userIDs)

	records := make([]storage.PolicyRecord, 0, len(userIDs))
	for _, userID := range userIDs {
		record, err := s.Get(ctx, userID)
		if err != nil {
			if err == storage.ErrNotFound {
				continue
			}
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// Upsert stores a policy and indexes the user
func (s *policyStore) Upsert(ctx context.Context, record storage.PolicyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode policy record: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, policyKey(record.UserID), data, 0)
		pipe.SAdd(ctx, policiesIndexKey, record.UserID)
		return nil
	})
	return err
}

// Delete removes a user's policy
func (s *policyStore) Delete(ctx context.Context, userID string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, policyKey(userID))
		pipe.SRem(ctx, policiesIndexKey, userID)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
