package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/parentguard/internal/storage"
)

const keyPrefix = "parentguard:"

func requestKey(id string) string { return keyPrefix + "request:" + id }

func policyKey(userID string) string { return keyPrefix + "policy:" + userID }

func usageKey(date, userID string) string {
	return fmt.Sprintf("%susage:daily:%s:%s", keyPrefix, date, userID)
}

func usageIndexKey(date string) string { return keyPrefix + "usage:daily:index:" + date }

const (
	requestsIndexKey = keyPrefix + "requests"
	policiesIndexKey = keyPrefix + "policies"
)

// parseRequest converts a Redis hash to Request
func parseRequest(data map[string]string) (*storage.Request, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	req := &storage.Request{
		ID:            data["id"],
		UserID:        data["user_id"],
		Reason:        data["reason"],
		Status:        storage.RequestStatus(data["status"]),
		CreatedAt:     createdAt,
		UntilEndOfDay: data["until_end_of_day"] == "1",
	}

	if v := data["response_at"]; v != "" {
		responseAt, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse response_at: %w", err)
		}
		req.ResponseAt = &responseAt
	}

	if v := data["approved_duration_minutes"]; v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse approved_duration_minutes: %w", err)
		}
		req.ApprovedDurationMinutes = &minutes
	}

	return req, nil
}

// parseDailyUsage converts a Redis hash to DailyUsage
func parseDailyUsage(data map[string]string) (*storage.DailyUsage, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	minutes, err := strconv.Atoi(data["minutes"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse minutes: %w", err)
	}

	return &storage.DailyUsage{
		Date:    data["date"],
		UserID:  data["user_id"],
		Minutes: minutes,
	}, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
