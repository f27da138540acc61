package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/parentguard/internal/storage"
	"github.com/redis/go-redis/v9"
)

var (
	addRequest     = redis.NewScript(addRequestScript)
	resolveRequest = redis.NewScript(resolveRequestScript)
)

type requestStore struct {
	client *redis.Client
}

// Add creates a pending request
func (s *requestStore) Add(ctx context.Context, userID, reason string, createdAt time.Time) (*storage.Request, error) {
	req := storage.NewPendingRequest(userID, reason, createdAt)

	keys := []string{requestKey(req.ID), requestsIndexKey}
	args := []interface{}{
		req.ID,
		req.UserID,
		req.Reason,
		req.CreatedAt.Format(time.RFC3339Nano),
		req.CreatedAt.UnixNano(),
	}

	if err := addRequest.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return nil, fmt.Errorf("failed to add request: %w", err)
	}
	return &req, nil
}

// Get retrieves a request by ID
func (s *requestStore) Get(ctx context.Context, id string) (*storage.Request, error) {
	data, err := s.client.HGetAll(ctx, requestKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return parseRequest(data)
}

// List returns all requests, oldest first
func (s *requestStore) List(ctx context.Context) ([]storage.Request, error) {
	ids, err := s.client.ZRange(ctx, requestsIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.Request{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, requestKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	requests := make([]storage.Request, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		req, err := parseRequest(data)
		if err != nil {
			continue
		}
		requests = append(requests, *req)
	}

	storage.SortRequests(requests)
	return requests, nil
}

// Approve resolves a pending request as approved
func (s *requestStore) Approve(ctx context.Context, id string, durationMinutes *int, untilEndOfDay bool, respondedAt time.Time) (*storage.Request, error) {
	duration := ""
	if durationMinutes != nil {
		duration = strconv.Itoa(*durationMinutes)
	}
	return s.resolve(ctx, id, storage.StatusApproved, duration, untilEndOfDay, respondedAt)
}

// Deny resolves a pending request as denied
func (s *requestStore) Deny(ctx context.Context, id string, respondedAt time.Time) (*storage.Request, error) {
	return s.resolve(ctx, id, storage.StatusDenied, "", false, respondedAt)
}

func (s *requestStore) resolve(ctx context.Context, id string, status storage.RequestStatus, duration string, untilEndOfDay bool, respondedAt time.Time) (*storage.Request, error) {
	keys := []string{requestKey(id)}
	args := []interface{}{
		string(status),
		respondedAt.UTC().Format(time.RFC3339Nano),
		duration,
		formatBool(untilEndOfDay),
	}

	if err := resolveRequest.Run(ctx, s.client, keys, args...).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve request: %w", err)
	}

	return s.Get(ctx, id)
}
