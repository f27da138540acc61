package redis

import (
	"context"
	"sort"

	"github.com/goodtune/parentguard/internal/storage"
	"github.com/redis/go-redis/v9"
)

var incrementDailyUsage = redis.NewScript(incrementDailyUsageScript)

type usageStore struct {
	client *redis.Client
}

// IncrementDailyUsage adds minutes to a user's total for a day
func (s *usageStore) IncrementDailyUsage(ctx context.Context, date, userID string, minutes int) error {
	keys := []string{usageKey(date, userID), usageIndexKey(date)}
	args := []interface{}{date, userID, minutes}

	return incrementDailyUsage.Run(ctx, s.client, keys, args...).Err()
}

// GetDailyUsage retrieves a user's total for a day
func (s *usageStore) GetDailyUsage(ctx context.Context, date, userID string) (*storage.DailyUsage, error) {
	data, err := s.client.HGetAll(ctx, usageKey(date, userID)).Result()
	if err != nil {
		return nil, err
	}
	return parseDailyUsage(data)
}

// ListDailyUsage returns every user's total for a day
func (s *usageStore) ListDailyUsage(ctx context.Context, date string) ([]storage.DailyUsage, error) {
	userIDs, err := s.client.SMembers(ctx, usageIndexKey(date)).Result()
	if err != nil {
		return nil, err
	}

	if len(userIDs) == 0 {
		return []storage.DailyUsage{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(userIDs))
	for i, userID := range userIDs {
		cmds[i] = pipe.HGetAll(ctx, usageKey(date, userID))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	usages := make([]storage.DailyUsage, 0, len(userIDs))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		usage, err := parseDailyUsage(data)
		if err != nil {
			continue
		}
		usages = append(usages, *usage)
	}

	sort.Slice(usages, func(i, j int) bool { return usages[i].UserID < usages[j].UserID })
	return usages, nil
}
