package whoop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		WithBaseURL(srv.URL),
	)
}

func TestListAllHitsVersionedRoutes(t *testing.T) {
	t.Parallel()

	// The provider 404s any path it does not serve, so a route under the
	// wrong API version would quietly sync nothing for that resource.
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))

	tests := []struct {
		name string
		call func(ctx context.Context) error
		want string
	}{
		{
			name: "cycles",
			call: func(ctx context.Context) error { _, err := client.Cycle.ListAll(ctx, nil); return err },
			want: "/v2/cycle",
		},
		{
			name: "sleeps",
			call: func(ctx context.Context) error { _, err := client.Sleep.ListAll(ctx, nil); return err },
			want: "/v2/activity/sleep",
		},
		{
			name: "workouts",
			call: func(ctx context.Context) error { _, err := client.Workout.ListAll(ctx, nil); return err },
			want: "/v2/activity/workout",
		},
		{
			name: "recoveries",
			call: func(ctx context.Context) error { _, err := client.Recovery.ListAll(ctx, nil); return err },
			want: "/v2/recovery",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(t.Context()); err != nil {
				t.Fatalf("ListAll() error = %v", err)
			}
			if gotPath != tt.want {
				t.Errorf("requested path = %q, want %q", gotPath, tt.want)
			}
		})
	}
}

func TestListAllFollowsPaginationAndDeduplicates(t *testing.T) {
	t.Parallel()

	// The provider can repeat a record at a page boundary when data shifts
	// between requests. The duplicate "b" on page two must be dropped.
	pages := map[string]string{
		"": `{"records":[
			{"id":"a","score_state":"SCORED"},
			{"id":"b","score_state":"SCORED"}
		],"next_token":"page2"}`,
		"page2": `{"records":[
			{"id":"b","score_state":"SCORED"},
			{"id":"c","score_state":"PENDING_SCORE"}
		]}`,
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Query().Get("nextToken")]
		if !ok {
			t.Errorf("unexpected nextToken %q", r.URL.Query().Get("nextToken"))
			http.Error(w, "unexpected token", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))

	sleeps, err := client.Sleep.ListAll(t.Context(), &ListParams{Limit: 2})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}

	var gotIDs []string
	for _, s := range sleeps {
		gotIDs = append(gotIDs, s.ID)
	}
	wantIDs := []string{"a", "b", "c"}
	if diff := cmp.Diff(wantIDs, gotIDs); diff != "" {
		t.Errorf("ListAll() IDs mismatch (-want +got):\n%s", diff)
	}
}

func TestListAllRetainsRawPayload(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":"a","score_state":"SCORED","undocumented_field":42}]}`))
	}))

	sleeps, err := client.Sleep.ListAll(t.Context(), nil)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(sleeps) != 1 {
		t.Fatalf("ListAll() returned %d records, want 1", len(sleeps))
	}

	raw := string(sleeps[0].Raw)
	if raw == "" {
		t.Fatal("record raw payload not retained")
	}
	for _, fragment := range []string{`"id":"a"`, `"undocumented_field":42`} {
		if !strings.Contains(raw, fragment) {
			t.Errorf("raw payload missing %s: %s", fragment, raw)
		}
	}
}

func TestListAllReturnsPartialResultsOnServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"records":[{"id":"a","score_state":"SCORED"}],"next_token":"page2"}`))
			return
		}
		http.Error(w, `{"message":"upstream exploded"}`, http.StatusInternalServerError)
	}))

	sleeps, err := client.Sleep.ListAll(t.Context(), nil)
	if err != nil {
		t.Fatalf("ListAll() error = %v, want partial results without error", err)
	}
	if len(sleeps) != 1 || sleeps[0].ID != "a" {
		t.Errorf("ListAll() = %+v, want the single record from page one", sleeps)
	}
}

func TestListAllPropagatesUnauthorized(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"token expired"}`, http.StatusUnauthorized)
	}))

	_, err := client.Sleep.ListAll(t.Context(), nil)
	if err == nil {
		t.Fatal("ListAll() error = nil, want unauthorized")
	}
	if !IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(%v) = false, want true", err)
	}
}

func TestListAllEmptyCollection(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))

	sleeps, err := client.Sleep.ListAll(t.Context(), nil)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(sleeps) != 0 {
		t.Errorf("ListAll() = %+v, want empty", sleeps)
	}
}
