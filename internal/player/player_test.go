package player

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPControllerStop(t *testing.T) {
	var gotPath, gotToken, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.EscapedPath()
		gotToken = r.Header.Get("X-Emby-Token")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctrl, err := NewHTTPController(HTTPConfig{BaseURL: srv.URL + "/", APIKey: "key"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPController() error = %v", err)
	}

	if err := ctrl.Stop(context.Background(), "abc 123"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/Sessions/abc%20123/Playing/Stop" {
		t.Errorf("path = %s", gotPath)
	}
	if gotToken != "key" {
		t.Errorf("X-Emby-Token = %q, want key", gotToken)
	}
}

func TestHTTPControllerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Sessions/slow/Playing/Stop" {
			time.Sleep(200 * time.Millisecond)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctrl, err := NewHTTPController(HTTPConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPController() error = %v", err)
	}

	tests := []struct {
		name      string
		sessionID string
	}{
		{"non-2xx status", "gone"},
		{"timeout", "slow"},
		{"empty id", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ctrl.Stop(context.Background(), tt.sessionID); err == nil {
				t.Error("Stop() error = nil, want error")
			}
		})
	}
}

func TestNewHTTPControllerRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "jellyfin:8096", "://"} {
		if _, err := NewHTTPController(HTTPConfig{BaseURL: raw}, zerolog.Nop()); err == nil {
			t.Errorf("NewHTTPController(%q) error = nil", raw)
		}
	}
}

func TestNopController(t *testing.T) {
	if err := NewNopController(zerolog.Nop()).Stop(context.Background(), "s1"); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
