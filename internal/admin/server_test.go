package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/state"
	"github.com/goodtune/parentguard/internal/storage"
	"github.com/goodtune/parentguard/internal/storage/memory"
	"github.com/goodtune/parentguard/internal/usage"
	"github.com/rs/zerolog"
)

var testNow = time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

type nopController struct{}

func (nopController) Stop(_ context.Context, _ string) error { return nil }

func newTestServer(t *testing.T, secret string) (*httptest.Server, *memory.Store) {
	t.Helper()

	clock := &policy.TestClock{CurrentTime: testNow}
	store := memory.New()
	provider := policy.NewStoreProvider(store.Policies(), policy.DefaultPolicy(), policy.StoreProviderConfig{}, zerolog.Nop())

	service := enforce.NewService(enforce.Deps{
		Policies:   provider,
		Clock:      clock,
		States:     state.NewStore(clock, zerolog.Nop()),
		Tracker:    usage.NewTracker(clock, usage.Config{}, zerolog.Nop()),
		Controller: nopController{},
		Requests:   store.Requests(),
		History:    store.Usage(),
	}, enforce.Config{FileRequestsOnBlock: true}, zerolog.Nop())

	srv := NewServer(Config{JWTSecret: secret}, Deps{
		Service:  service,
		Policies: provider,
		Usage:    store.Usage(),
		Reloader: provider,
	}, zerolog.Nop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url, token string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestServerAuth(t *testing.T) {
	ts, _ := newTestServer(t, "secret")
	token, _, err := NewTokenIssuer("secret", time.Hour).Issue("parent")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if code := doJSON(t, "GET", ts.URL+"/health", "", nil, nil); code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200 without token", code)
	}
	if code := doJSON(t, "GET", ts.URL+"/api/state/kid", "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("GET /api/state without token = %d, want 401", code)
	}
	if code := doJSON(t, "GET", ts.URL+"/api/state/kid", "bogus", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("GET /api/state with bad token = %d, want 401", code)
	}

	var status enforce.Status
	if code := doJSON(t, "GET", ts.URL+"/api/state/kid", token, nil, &status); code != http.StatusOK {
		t.Fatalf("GET /api/state with token = %d, want 200", code)
	}
	if status.UserID != "kid" || status.DayKey != "2024-06-03" {
		t.Errorf("status = %+v", status.Summary)
	}
}

func TestServerRequestLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, "")

	var created storage.Request
	code := doJSON(t, "POST", ts.URL+"/api/requests", "", map[string]string{"user_id": "kid", "reason": "homework done"}, &created)
	if code != http.StatusCreated || created.ID == "" || created.Status != storage.StatusPending {
		t.Fatalf("POST /api/requests = %d %+v", code, created)
	}

	var approved storage.Request
	code = doJSON(t, "POST", ts.URL+"/api/requests/"+created.ID+"/approve", "", map[string]interface{}{"duration_minutes": 30}, &approved)
	if code != http.StatusOK || approved.Status != storage.StatusApproved {
		t.Fatalf("approve = %d %+v", code, approved)
	}

	var status enforce.Status
	doJSON(t, "GET", ts.URL+"/api/state/kid", "", nil, &status)
	if status.UnlockUntil == nil || !status.UnlockUntil.Equal(testNow.Add(30*time.Minute)) {
		t.Errorf("unlock_until = %v, want %v", status.UnlockUntil, testNow.Add(30*time.Minute))
	}
	if status.UnlockReason != enforce.UnlockReasonApproved {
		t.Errorf("unlock_reason = %q", status.UnlockReason)
	}

	if code := doJSON(t, "POST", ts.URL+"/api/requests/"+created.ID+"/deny", "", nil, nil); code != http.StatusNotFound {
		t.Errorf("deny after approve = %d, want 404", code)
	}
	if code := doJSON(t, "POST", ts.URL+"/api/requests/missing/approve", "", map[string]bool{"until_end_of_day": true}, nil); code != http.StatusNotFound {
		t.Errorf("approve unknown = %d, want 404", code)
	}

	var list struct {
		Requests []storage.Request `json:"requests"`
		Count    int               `json:"count"`
	}
	doJSON(t, "GET", ts.URL+"/api/requests", "", nil, &list)
	if list.Count != 1 {
		t.Errorf("request count = %d, want 1", list.Count)
	}
}

func TestServerLockUnlock(t *testing.T) {
	ts, _ := newTestServer(t, "")

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"lock", "/api/profiles/kid/lock", map[string]int{"cooldown_minutes": 15}, http.StatusOK},
		{"lock zero", "/api/profiles/kid/lock", map[string]int{"cooldown_minutes": 0}, http.StatusBadRequest},
		{"unlock", "/api/profiles/kid/unlock", map[string]interface{}{"duration_minutes": 20, "reason": "chores"}, http.StatusOK},
		{"unlock negative", "/api/profiles/kid/unlock", map[string]int{"duration_minutes": -5}, http.StatusBadRequest},
		{"unknown field", "/api/profiles/kid/lock", map[string]int{"minutes": 5}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := doJSON(t, "POST", ts.URL+tt.path, "", tt.body, nil); code != tt.want {
				t.Errorf("POST %s = %d, want %d", tt.path, code, tt.want)
			}
		})
	}

	var status enforce.Status
	doJSON(t, "GET", ts.URL+"/api/state/kid", "", nil, &status)
	if status.CooldownUntil != nil {
		t.Errorf("unlock should clear the cooldown, got %v", status.CooldownUntil)
	}
	if status.UnlockReason != "chores" {
		t.Errorf("unlock_reason = %q, want chores", status.UnlockReason)
	}
}

func TestServerPolicyEditing(t *testing.T) {
	ts, store := newTestServer(t, "")

	var seeded struct {
		Count int `json:"count"`
	}
	if code := doJSON(t, "POST", ts.URL+"/api/policy/seed", "", map[string][]string{"profiles": {"kid", " "}}, &seeded); code != http.StatusOK || seeded.Count != 1 {
		t.Fatalf("seed = %d %+v", code, seeded)
	}

	var got policy.ProfilePolicy
	doJSON(t, "GET", ts.URL+"/api/policy/kid", "", nil, &got)
	if got.DailyBudgetMinutes != policy.SeedPolicy().DailyBudgetMinutes {
		t.Errorf("seeded budget = %d", got.DailyBudgetMinutes)
	}

	if code := doJSON(t, "PUT", ts.URL+"/api/policy/kid", "", map[string]int{"daily_budget_minutes": 45}, &got); code != http.StatusOK {
		t.Fatalf("PUT policy = %d", code)
	}
	doJSON(t, "GET", ts.URL+"/api/policy/kid", "", nil, &got)
	if got.DailyBudgetMinutes != 45 {
		t.Errorf("budget after PUT = %d, want 45", got.DailyBudgetMinutes)
	}

	if code := doJSON(t, "PUT", ts.URL+"/api/policy/kid", "", map[string]int{"daily_budget_minutes": -1}, nil); code != http.StatusBadRequest {
		t.Errorf("PUT invalid policy = %d, want 400", code)
	}

	records, _ := store.Policies().List(context.Background())
	if len(records) != 1 {
		t.Errorf("stored policies = %d, want 1", len(records))
	}

	if code := doJSON(t, "POST", ts.URL+"/api/policy/reload", "", nil, nil); code != http.StatusOK {
		t.Errorf("reload = %d, want 200", code)
	}
}

func TestServerSimulationAndUsage(t *testing.T) {
	ts, _ := newTestServer(t, "")

	var summary state.Summary
	if code := doJSON(t, "POST", ts.URL+"/api/sim/progress/kid/90", "", nil, &summary); code != http.StatusOK {
		t.Fatalf("sim progress = %d", code)
	}
	if summary.MinutesConsumed != 90 {
		t.Errorf("minutes_consumed = %d, want 90", summary.MinutesConsumed)
	}
	if code := doJSON(t, "POST", ts.URL+"/api/sim/progress/kid/zero", "", nil, nil); code != http.StatusBadRequest {
		t.Errorf("sim progress with bad minutes = %d, want 400", code)
	}

	var d enforce.Decision
	doJSON(t, "POST", ts.URL+"/api/sim/start/kid", "", nil, &d)
	if d.Allow || d.Reason != enforce.ReasonBudgetExhausted {
		t.Errorf("sim start = %+v, want %s", d, enforce.ReasonBudgetExhausted)
	}

	var daily struct {
		Count        int `json:"count"`
		TotalMinutes int `json:"total_minutes"`
	}
	doJSON(t, "GET", ts.URL+"/api/usage/2024-06-03", "", nil, &daily)
	if daily.Count != 1 || daily.TotalMinutes != 90 {
		t.Errorf("usage = %+v, want one user with 90 minutes", daily)
	}
	if code := doJSON(t, "GET", ts.URL+"/api/usage/yesterday", "", nil, nil); code != http.StatusBadRequest {
		t.Errorf("usage with bad date = %d, want 400", code)
	}

	var reset struct {
		UsersReset int `json:"users_reset"`
	}
	doJSON(t, "POST", ts.URL+"/api/reset", "", nil, &reset)
	if reset.UsersReset != 1 {
		t.Errorf("users_reset = %d, want 1", reset.UsersReset)
	}
	doJSON(t, "POST", ts.URL+"/api/sim/start/kid", "", nil, &d)
	if !d.Allow {
		t.Errorf("start after reset = %+v, want allow", d)
	}
}

func TestServerPlaybackEvents(t *testing.T) {
	ts, _ := newTestServer(t, "")

	var d enforce.Decision
	ev := map[string]interface{}{"session_id": "s1", "user_id": "kid", "item_id": "movie"}
	if code := doJSON(t, "POST", ts.URL+"/api/playback/start", "", ev, &d); code != http.StatusOK || !d.Allow {
		t.Fatalf("start = %d %+v", code, d)
	}
	if code := doJSON(t, "POST", ts.URL+"/api/playback/progress", "", map[string]interface{}{"session_id": "s1", "user_id": "kid", "position_ticks": 0}, &d); code != http.StatusOK || !d.Allow {
		t.Errorf("progress = %d %+v", code, d)
	}
	if code := doJSON(t, "POST", ts.URL+"/api/playback/stop", "", ev, nil); code != http.StatusNoContent {
		t.Errorf("stop = %d, want 204", code)
	}
	if code := doJSON(t, "POST", ts.URL+"/api/playback/start", "", map[string]string{"item_id": "movie"}, nil); code != http.StatusBadRequest {
		t.Errorf("start without user = %d, want 400", code)
	}
	if code := doJSON(t, "GET", ts.URL+"/api/nowhere", "", nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown route = %d, want 404", code)
	}
}
