package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestResolveRequestScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	mr.HSet(requestKey("r1"), "id", "r1", "status", "pending")
	mr.HSet(requestKey("r2"), "id", "r2", "status", "denied")

	tests := []struct {
		name    string
		id      string
		wantNil bool
	}{
		{"pending request resolves", "r1", false},
		{"already resolved", "r2", true},
		{"missing request", "r3", true},
		{"cannot resolve twice", "r1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resolveRequest.Run(ctx, client, []string{requestKey(tt.id)}, "approved", "2024-06-03T15:00:00Z", "15", "0").Err()
			if tt.wantNil {
				if err != redis.Nil {
					t.Fatalf("Run() error = %v, want redis.Nil", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
		})
	}

	if got := mr.HGet(requestKey("r1"), "approved_duration_minutes"); got != "15" {
		t.Errorf("approved_duration_minutes = %q, want 15", got)
	}
	if got := mr.HGet(requestKey("r2"), "status"); got != "denied" {
		t.Errorf("resolved request changed status to %q", got)
	}
}

func TestAddRequestScript_RejectsDuplicate(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	keys := []string{requestKey("r1"), requestsIndexKey}
	if err := addRequest.Run(ctx, client, keys, "r1", "kid", "reason", "2024-06-03T15:00:00Z", 1).Err(); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := addRequest.Run(ctx, client, keys, "r1", "kid", "reason", "2024-06-03T15:00:00Z", 1).Err(); err == nil {
		t.Fatal("duplicate add should fail")
	}

	members, err := mr.ZMembers(requestsIndexKey)
	if err != nil || len(members) != 1 {
		t.Errorf("index members = %v, %v", members, err)
	}
}

func TestIncrementDailyUsageScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	keys := []string{usageKey("2024-06-03", "kid"), usageIndexKey("2024-06-03")}
	for i := 0; i < 3; i++ {
		if err := incrementDailyUsage.Run(ctx, client, keys, "2024-06-03", "kid", 2).Err(); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	if got := mr.HGet(keys[0], "minutes"); got != "6" {
		t.Errorf("minutes = %q, want 6", got)
	}
	if ok, _ := mr.SIsMember(keys[1], "kid"); !ok {
		t.Error("user missing from date index")
	}
}
