package xsync

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	go_json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/wakti/whoopsync/internal/oauth"
	"github.com/wakti/whoopsync/internal/repository"
)

const (
	oldAccess  = "old-access"
	oldRefresh = "old-refresh"
	newAccess  = "new-access"
	newRefresh = "new-refresh"
)

// fakeAPI serves canned provider data for any token it has been told to
// accept and answers 401 for everything else.
type fakeAPI struct {
	mu    sync.Mutex
	valid map[string]bool
	hits  map[string]int
}

func newFakeAPI(validTokens ...string) *fakeAPI {
	valid := make(map[string]bool, len(validTokens))
	for _, tok := range validTokens {
		valid[tok] = true
	}
	return &fakeAPI{valid: valid, hits: make(map[string]int)}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	f.hits[r.URL.Path]++
	ok := f.valid[token]
	f.mu.Unlock()

	if !ok {
		http.Error(w, `{"message":"token expired"}`, http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v2/cycle":
		_, _ = w.Write([]byte(`{"records":[{"id":100,"score_state":"SCORED","start":"2026-08-01T00:00:00Z","updated_at":"2026-08-02T00:00:00Z","score":{"strain":12.5,"kilojoule":8000,"average_heart_rate":70}}]}`))
	case "/v2/activity/sleep":
		// Two pages sharing sleep "b" across the boundary.
		if r.URL.Query().Get("nextToken") == "page2" {
			_, _ = w.Write([]byte(`{"records":[
				{"id":"b","score_state":"SCORED","start":"2026-08-02T00:00:00Z","end":"2026-08-02T08:00:00Z","updated_at":"2026-08-02T09:00:00Z"},
				{"id":"c","score_state":"SCORED","start":"2026-08-03T00:00:00Z","end":"2026-08-03T08:00:00Z","updated_at":"2026-08-03T09:00:00Z"}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"records":[
			{"id":"a","score_state":"SCORED","start":"2026-08-01T00:00:00Z","end":"2026-08-01T08:00:00Z","updated_at":"2026-08-01T09:00:00Z"},
			{"id":"b","score_state":"SCORED","start":"2026-08-02T00:00:00Z","end":"2026-08-02T08:00:00Z","updated_at":"2026-08-02T09:00:00Z"}
		],"next_token":"page2"}`))
	case "/v2/activity/workout":
		_, _ = w.Write([]byte(`{"records":[]}`))
	case "/v2/recovery":
		_, _ = w.Write([]byte(`{"records":[{"sleep_id":"a","cycle_id":100,"score_state":"SCORED","updated_at":"2026-08-01T10:00:00Z","score":{"recovery_score":85,"resting_heart_rate":52,"hrv_rmssd_milli":95}}]}`))
	case "/v2/user/profile/basic":
		_, _ = w.Write([]byte(`{"user_id":1,"email":"user@example.com","first_name":"Test","last_name":"User"}`))
	case "/v2/user/measurement/body":
		_, _ = w.Write([]byte(`{"height_meter":1.8,"weight_kilogram":80,"max_heart_rate":190}`))
	default:
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}
}

func (f *fakeAPI) pathHits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// fakeTokenEndpoint stands in for the provider's OAuth token URL.
type fakeTokenEndpoint struct {
	mu        sync.Mutex
	hits      int
	grants    map[string]bool
	rejectAll bool
}

func newFakeTokenEndpoint(acceptedRefreshTokens ...string) *fakeTokenEndpoint {
	grants := make(map[string]bool, len(acceptedRefreshTokens))
	for _, rt := range acceptedRefreshTokens {
		grants[rt] = true
	}
	return &fakeTokenEndpoint{grants: grants}
}

func (f *fakeTokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	refreshToken := r.FormValue("refresh_token")

	f.mu.Lock()
	f.hits++
	ok := !f.rejectAll && f.grants[refreshToken]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	_ = go_json.NewEncoder(w).Encode(map[string]any{
		"access_token":  newAccess,
		"refresh_token": newRefresh,
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}

func (f *fakeTokenEndpoint) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

type fixture struct {
	mem     *repository.Memory
	service *Service
	api     *fakeAPI
	tokens  *fakeTokenEndpoint
}

func newFixture(t *testing.T, api *fakeAPI, tokens *fakeTokenEndpoint) *fixture {
	t.Helper()

	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)
	tokenSrv := httptest.NewServer(tokens)
	t.Cleanup(tokenSrv.Close)

	mem := repository.NewMemory()
	repo := mem.Repo()

	logger := slog.New(slog.DiscardHandler)
	refresher := oauth.NewRefresher(
		oauth.NewConfig(oauth.Endpoint{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			TokenURL:     tokenSrv.URL,
		}),
		repo.Credentials,
		logger,
	)

	return &fixture{
		mem:     mem,
		service: NewService(repo, refresher, apiSrv.URL, logger),
		api:     api,
		tokens:  tokens,
	}
}

func (f *fixture) storeCredential(t *testing.T, userID string, accessToken string, expiresAt time.Time) {
	t.Helper()
	err := f.mem.Repo().Credentials.Upsert(t.Context(), &repository.Credential{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: oldRefresh,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		t.Fatalf("storing credential: %v", err)
	}
}

func TestSyncUserRefreshesOnUnauthorizedAndRetries(t *testing.T) {
	t.Parallel()

	// The stored token looks valid locally but the provider rejects it, so
	// the 401 path has to drive the refresh.
	f := newFixture(t, newFakeAPI(newAccess), newFakeTokenEndpoint(oldRefresh))
	f.storeCredential(t, "u1", oldAccess, time.Now().Add(time.Hour))

	summary, err := f.service.SyncUser(t.Context(), "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}

	want := Summary{
		Users:  1,
		Counts: Counts{Cycles: 1, Sleeps: 3, Recoveries: 1},
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("SyncUser() summary mismatch (-want +got):\n%s", diff)
	}

	if got := f.tokens.refreshCount(); got != 1 {
		t.Errorf("token endpoint hit %d times, want exactly 1", got)
	}

	cred, ok := f.mem.Credential("u1")
	if !ok {
		t.Fatal("credential disappeared")
	}
	if cred.AccessToken != newAccess || cred.RefreshToken != newRefresh {
		t.Errorf("tokens not persisted: access=%q refresh=%q", cred.AccessToken, cred.RefreshToken)
	}
	if cred.LastSyncedAt == nil {
		t.Error("last synced watermark not updated")
	}
	if cred.ReconnectNeeded {
		t.Error("reconnect flag set on a successful sync")
	}
}

func TestSyncUserIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newFakeAPI(oldAccess), newFakeTokenEndpoint(oldRefresh))
	f.storeCredential(t, "u1", oldAccess, time.Now().Add(time.Hour))

	for run := range 2 {
		summary, err := f.service.SyncUser(t.Context(), "u1", time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("run %d: SyncUser() error = %v", run, err)
		}
		if summary.Counts.Sleeps != 3 {
			t.Errorf("run %d: Counts.Sleeps = %d, want 3", run, summary.Counts.Sleeps)
		}
	}

	if got := f.mem.SleepCount("u1"); got != 3 {
		t.Errorf("stored sleeps = %d after two runs, want 3", got)
	}
	if got := f.mem.CycleCount("u1"); got != 1 {
		t.Errorf("stored cycles = %d after two runs, want 1", got)
	}
}

func TestSyncUserProactiveRefresh(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		expiresIn     time.Duration
		wantRefreshes int
	}{
		{
			name:          "expiring within margin refreshes up front",
			expiresIn:     30 * time.Second,
			wantRefreshes: 1,
		},
		{
			name:          "comfortably valid token is left alone",
			expiresIn:     10 * time.Minute,
			wantRefreshes: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// The API accepts both tokens so the refresh decision is
			// driven purely by the expiry margin.
			f := newFixture(t, newFakeAPI(oldAccess, newAccess), newFakeTokenEndpoint(oldRefresh))
			f.storeCredential(t, "u1", oldAccess, time.Now().Add(tt.expiresIn))

			if _, err := f.service.SyncUser(t.Context(), "u1", time.Time{}, time.Time{}); err != nil {
				t.Fatalf("SyncUser() error = %v", err)
			}

			if got := f.tokens.refreshCount(); got != tt.wantRefreshes {
				t.Errorf("token endpoint hit %d times, want %d", got, tt.wantRefreshes)
			}
		})
	}
}

func TestSyncUserFlagsReconnectWhenRefreshedTokenRejected(t *testing.T) {
	t.Parallel()

	// The provider rejects every access token, including the refreshed one.
	// The sync must refresh, retry once, then give up and flag the user.
	f := newFixture(t, newFakeAPI(), newFakeTokenEndpoint(oldRefresh))
	f.storeCredential(t, "u1", oldAccess, time.Now().Add(time.Hour))

	summary, err := f.service.SyncUser(t.Context(), "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if !summary.ReconnectNeeded {
		t.Error("summary.ReconnectNeeded = false, want true")
	}

	cred, _ := f.mem.Credential("u1")
	if !cred.ReconnectNeeded {
		t.Error("reconnect flag not persisted")
	}

	for _, path := range []string{"/v2/cycle", "/v2/activity/sleep", "/v2/activity/workout", "/v2/recovery"} {
		if got := f.api.pathHits(path); got > 2 {
			t.Errorf("%s hit %d times, want at most 2 (one attempt plus one retry)", path, got)
		}
	}
}

func TestSyncUserFlagsReconnectWhenRefreshRejected(t *testing.T) {
	t.Parallel()

	// Expired token plus an invalid_grant from the token endpoint: there is
	// nothing left to try, the user has to reconnect.
	f := newFixture(t, newFakeAPI(oldAccess), newFakeTokenEndpoint())
	f.storeCredential(t, "u1", oldAccess, time.Now().Add(-time.Minute))

	summary, err := f.service.SyncUser(t.Context(), "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if !summary.ReconnectNeeded {
		t.Error("summary.ReconnectNeeded = false, want true")
	}
	if summary.Counts != (Counts{}) {
		t.Errorf("summary.Counts = %+v, want zero counts", summary.Counts)
	}

	if got := f.api.pathHits("/v2/activity/sleep"); got != 0 {
		t.Errorf("API hit %d times with a dead token, want 0", got)
	}

	cred, _ := f.mem.Credential("u1")
	if !cred.ReconnectNeeded {
		t.Error("reconnect flag not persisted")
	}
}

func TestSyncUserNoCredential(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newFakeAPI(), newFakeTokenEndpoint())

	_, err := f.service.SyncUser(t.Context(), "nobody", time.Time{}, time.Time{})
	if err == nil {
		t.Fatal("SyncUser() error = nil, want ErrNoCredential")
	}
	if err != ErrNoCredential {
		t.Errorf("SyncUser() error = %v, want ErrNoCredential", err)
	}
}

func TestSyncAllAggregatesAndIsolatesUsers(t *testing.T) {
	t.Parallel()

	// Users a and c hold working tokens. User b's token is rejected and so
	// is its refresh grant, which must not disturb the other two.
	f := newFixture(t, newFakeAPI("tok-a", "tok-c"), newFakeTokenEndpoint())
	f.storeCredential(t, "a", "tok-a", time.Now().Add(time.Hour))
	f.storeCredential(t, "b", "tok-b", time.Now().Add(time.Hour))
	f.storeCredential(t, "c", "tok-c", time.Now().Add(time.Hour))

	summary, err := f.service.SyncAll(t.Context(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}

	// User b's pass ran to its reconnect verdict, so it counts toward Users
	// even though it contributed no records.
	if summary.Users != 3 {
		t.Errorf("summary.Users = %d, want 3", summary.Users)
	}
	if !summary.ReconnectNeeded {
		t.Error("summary.ReconnectNeeded = false, want true (user b is dead)")
	}
	if summary.Counts.Sleeps != 6 {
		t.Errorf("summary.Counts.Sleeps = %d, want 6 (3 per healthy user)", summary.Counts.Sleeps)
	}

	credB, _ := f.mem.Credential("b")
	if !credB.ReconnectNeeded {
		t.Error("user b reconnect flag not persisted")
	}
	for _, healthy := range []string{"a", "c"} {
		cred, _ := f.mem.Credential(healthy)
		if cred.ReconnectNeeded {
			t.Errorf("user %s wrongly flagged for reconnect", healthy)
		}
		if cred.LastSyncedAt == nil {
			t.Errorf("user %s last synced watermark not updated", healthy)
		}
	}
}

func TestNormalizeWindowDefaults(t *testing.T) {
	t.Parallel()

	s := &Service{windowDays: DefaultWindowDays}

	start, end := s.normalizeWindow(time.Time{}, time.Time{})
	if end.IsZero() || start.IsZero() {
		t.Fatal("normalizeWindow() left zero bounds")
	}

	wantStart := end.AddDate(0, 0, -DefaultWindowDays)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}

	explicitStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	explicitEnd := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	start, end = s.normalizeWindow(explicitStart, explicitEnd)
	if !start.Equal(explicitStart) || !end.Equal(explicitEnd) {
		t.Errorf("explicit window changed: got [%v, %v]", start, end)
	}
}
