package bolt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goodtune/parentguard/internal/storage"
	"go.etcd.io/bbolt"
)

type usageStore struct {
	db *bbolt.DB
}

func (s *usageStore) GetDailyUsage(ctx context.Context, date, userID string) (*storage.DailyUsage, error) {
	return getBucketValue[storage.DailyUsage](ctx, s.db, bucketDailyUsage, dailyUsageKey(date, userID))
}

func (s *usageStore) IncrementDailyUsage(ctx context.Context, date, userID string, minutes int) error {
	key := dailyUsageKey(date, userID)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketDailyUsage))
		if b == nil {
			return fmt.Errorf("daily usage bucket missing")
		}
		usage := storage.DailyUsage{Date: date, UserID: userID}
		if existing := b.Get([]byte(key)); existing != nil {
			if err := unmarshal(existing, &usage); err != nil {
				return err
			}
		}
		usage.Minutes += minutes
		data, err := marshal(usage)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// ListDailyUsage scans the date prefix; keys sort by user within a day.
func (s *usageStore) ListDailyUsage(ctx context.Context, date string) ([]storage.DailyUsage, error) {
	prefix := []byte(dailyUsagePrefix(date))
	out := make([]storage.DailyUsage, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDailyUsage))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var usage storage.DailyUsage
			if err := unmarshal(v, &usage); err != nil {
				return err
			}
			out = append(out, usage)
		}
		return nil
	})
	return out, err
}

func dailyUsageKey(date, userID string) string {
	return fmt.Sprintf("%s/%s", date, userID)
}

func dailyUsagePrefix(date string) string {
	return date + "/"
}
