// Package opa resolves profile policies from Rego modules.
//
// A module set defines `data.parentguard.profile`, evaluated with input {"user_id": ...}. The
// rule may be undefined for users without a profile, in which case the fallback policy applies.
package opa

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/parentguard/internal/policy"
	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

// ProfileQuery is the Rego query evaluated for each user.
const ProfileQuery = "data.parentguard.profile"

// Config selects where Rego modules come from.
type Config struct {
	PolicyDir string            // directory of *.rego files
	Modules   map[string]string // inline modules keyed by file name, used when PolicyDir is empty
}

// Provider implements policy.Provider on top of a prepared Rego query.
type Provider struct {
	config   Config
	fallback policy.ProfilePolicy
	logger   zerolog.Logger

	mu    sync.RWMutex
	query rego.PreparedEvalQuery
}

// NewProvider loads and compiles the modules.
func NewProvider(config Config, fallback policy.ProfilePolicy, logger zerolog.Logger) (*Provider, error) {
	p := &Provider{
		config:   config,
		fallback: fallback,
		logger:   logger.With().Str("component", "opa").Logger(),
	}

	if err := p.Reload(); err != nil {
		return nil, err
	}

	p.logger.Info().Str("policy_dir", config.PolicyDir).Msg("OPA policy provider initialized")
	return p, nil
}

// Reload re-reads the modules and swaps in a freshly prepared query. Evaluations in flight keep
// using the previous query.
func (p *Provider) Reload() error {
	modules, err := p.loadModules()
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	opts := []func(*rego.Rego){rego.Query(ProfileQuery)}
	for _, module := range modules {
		opts = append(opts, rego.Module(module.name, module.source))
	}

	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("failed to prepare profile query: %w", err)
	}

	p.mu.Lock()
	p.query = query
	p.mu.Unlock()

	p.logger.Info().Int("modules", len(modules)).Msg("OPA policies loaded")
	return nil
}

type moduleSource struct {
	name   string
	source string
}

func (p *Provider) loadModules() ([]moduleSource, error) {
	sources := make(map[string]string)

	if p.config.PolicyDir != "" {
		files, err := filepath.Glob(filepath.Join(p.config.PolicyDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("failed to glob policy files: %w", err)
		}
		for _, file := range files {
			content, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read policy file %s: %w", file, err)
			}
			sources[file] = string(content)
		}
	} else {
		for name, content := range p.config.Modules {
			sources[name] = content
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no policy modules found")
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	modules := make([]moduleSource, 0, len(names))
	for _, name := range names {
		module, err := ast.ParseModule(name, sources[name])
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy file %s: %w", name, err)
		}
		p.logger.Debug().Str("file", name).Str("package", module.Package.Path.String()).Msg("Loaded policy module")
		modules = append(modules, moduleSource{name: name, source: sources[name]})
	}
	return modules, nil
}

// Evaluate returns the profile defined for the user, or ok=false when the rule is undefined.
func (p *Provider) Evaluate(ctx context.Context, userID string) (profile policy.ProfilePolicy, ok bool, err error) {
	p.mu.RLock()
	query := p.query
	p.mu.RUnlock()

	start := time.Now()
	results, err := query.Eval(ctx, rego.EvalInput(map[string]interface{}{"user_id": userID}))
	if err != nil {
		return policy.ProfilePolicy{}, false, fmt.Errorf("profile query evaluation failed: %w", err)
	}
	p.logger.Debug().Dur("duration_ms", time.Since(start)).Str("user_id", userID).Msg("Profile query evaluated")

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return policy.ProfilePolicy{}, false, nil
	}

	raw, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return policy.ProfilePolicy{}, false, fmt.Errorf("failed to marshal profile: %w", err)
	}

	profile, err = policy.DecodePolicy(raw)
	if err != nil {
		return policy.ProfilePolicy{}, false, err
	}
	return profile, true, nil
}

// GetEffectivePolicy implements policy.Provider.
func (p *Provider) GetEffectivePolicy(ctx context.Context, userID string) policy.ProfilePolicy {
	profile, ok, err := p.Evaluate(ctx, userID)
	if err != nil {
		p.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to evaluate profile, using fallback")
		return p.fallback
	}
	if !ok {
		return p.fallback
	}
	return profile
}
