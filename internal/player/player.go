// Package player stops playback sessions on the media host.
package player

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NopController logs stop commands without sending them. Used when no media host is configured.
type NopController struct {
	logger zerolog.Logger
}

// NewNopController creates a logging-only controller.
func NewNopController(logger zerolog.Logger) *NopController {
	return &NopController{logger: logger.With().Str("component", "player").Logger()}
}

// Stop logs the session id.
func (c *NopController) Stop(_ context.Context, sessionID string) error {
	c.logger.Info().Str("session_id", sessionID).Msg("Would stop session (no player configured)")
	return nil
}

// HTTPConfig configures HTTPController.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPController sends stop commands to a Jellyfin or Emby compatible server.
type HTTPController struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPController validates config and creates a controller.
func NewHTTPController(cfg HTTPConfig, logger zerolog.Logger) (*HTTPController, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid player base_url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &HTTPController{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With().Str("component", "player").Logger(),
	}, nil
}

// Stop sends POST {base}/Sessions/{id}/Playing/Stop.
func (c *HTTPController) Stop(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}

	endpoint := c.baseURL + "/Sessions/" + url.PathEscape(sessionID) + "/Playing/Stop"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build stop request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Emby-Token", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stop session %s: %w", sessionID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stop session %s: unexpected status %d", sessionID, resp.StatusCode)
	}

	c.logger.Debug().Str("session_id", sessionID).Msg("Session stopped")
	return nil
}
