package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/parentguard/internal/storage"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// Provider resolves the effective policy for a user. Implementations never fail: a user without
// a configured profile gets the fallback policy.
type Provider interface {
	GetEffectivePolicy(ctx context.Context, userID string) ProfilePolicy
}

// Editor is implemented by providers whose profiles can be changed at runtime.
type Editor interface {
	PutPolicy(ctx context.Context, userID string, p ProfilePolicy) error
	ListPolicies(ctx context.Context) (map[string]ProfilePolicy, error)
}

// NormalizeUserID returns the canonical form of a user id. Ids are case-insensitive.
func NormalizeUserID(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}

// StaticProvider serves profiles loaded from configuration.
type StaticProvider struct {
	profiles map[string]ProfilePolicy
	fallback ProfilePolicy
}

// NewStaticProvider creates a provider over a fixed profile map.
func NewStaticProvider(profiles map[string]ProfilePolicy, fallback ProfilePolicy) *StaticProvider {
	normalized := make(map[string]ProfilePolicy, len(profiles))
	for userID, p := range profiles {
		normalized[NormalizeUserID(userID)] = p
	}
	return &StaticProvider{profiles: normalized, fallback: fallback}
}

// GetEffectivePolicy returns the configured profile or the fallback.
func (p *StaticProvider) GetEffectivePolicy(_ context.Context, userID string) ProfilePolicy {
	if profile, ok := p.profiles[NormalizeUserID(userID)]; ok {
		return profile
	}
	return p.fallback
}

// StoreProviderConfig tunes the policy cache in front of the store.
type StoreProviderConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// StoreProvider reads profiles from a storage.PolicyStore through an expiring LRU cache.
type StoreProvider struct {
	store    storage.PolicyStore
	fallback ProfilePolicy
	cache    *expirable.LRU[string, ProfilePolicy]
	logger   zerolog.Logger
}

// NewStoreProvider creates a provider backed by the policy store.
func NewStoreProvider(store storage.PolicyStore, fallback ProfilePolicy, cfg StoreProviderConfig, logger zerolog.Logger) *StoreProvider {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}

	return &StoreProvider{
		store:    store,
		fallback: fallback,
		cache:    expirable.NewLRU[string, ProfilePolicy](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:   logger.With().Str("component", "policy-provider").Logger(),
	}
}

// GetEffectivePolicy returns the stored profile, or the fallback when none is stored or the
// store cannot be read.
func (p *StoreProvider) GetEffectivePolicy(ctx context.Context, userID string) ProfilePolicy {
	userID = NormalizeUserID(userID)
	if cached, ok := p.cache.Get(userID); ok {
		return cached
	}

	record, err := p.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load policy, using fallback")
			return p.fallback
		}
		p.cache.Add(userID, p.fallback)
		return p.fallback
	}

	profile, err := DecodePolicy(record.Policy)
	if err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID).Msg("Stored policy is malformed, using fallback")
		profile = p.fallback
	}

	p.cache.Add(userID, profile)
	return profile
}

// PutPolicy stores a profile and drops the cached copy.
func (p *StoreProvider) PutPolicy(ctx context.Context, userID string, profile ProfilePolicy) error {
	userID = NormalizeUserID(userID)
	if err := profile.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}

	if err := p.store.Upsert(ctx, storage.PolicyRecord{
		UserID:    userID,
		Policy:    raw,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to store policy: %w", err)
	}

	p.cache.Remove(userID)
	p.logger.Info().Str("user_id", userID).Msg("Policy updated")
	return nil
}

// ListPolicies returns every stored profile keyed by user id.
func (p *StoreProvider) ListPolicies(ctx context.Context) (map[string]ProfilePolicy, error) {
	records, err := p.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	out := make(map[string]ProfilePolicy, len(records))
	for _, record := range records {
		profile, err := DecodePolicy(record.Policy)
		if err != nil {
			p.logger.Warn().Err(err).Str("user_id", record.UserID).Msg("Skipping malformed stored policy")
			continue
		}
		out[record.UserID] = profile
	}
	return out, nil
}

// Purge empties the cache.
func (p *StoreProvider) Purge() {
	p.cache.Purge()
}

// Reload drops cached profiles so the next lookup reads the store.
func (p *StoreProvider) Reload() error {
	p.Purge()
	p.logger.Info().Msg("Policy cache purged")
	return nil
}

// DecodePolicy parses a JSON profile. Missing fields keep DefaultPolicy values.
func DecodePolicy(raw []byte) (ProfilePolicy, error) {
	profile := DefaultPolicy()
	if err := json.Unmarshal(raw, &profile); err != nil {
		return ProfilePolicy{}, fmt.Errorf("failed to decode policy: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return ProfilePolicy{}, err
	}
	return profile, nil
}
