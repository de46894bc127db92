package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestNewDefaultsToStatusText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         *Error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "bad request",
			err:         BadRequest(),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "bad request",
		},
		{
			name:        "unauthorized",
			err:         Unauthorized(),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "unauthorized",
		},
		{
			name:        "message overridden",
			err:         NotFound(WithMessage("no whoop connection for user")),
			wantStatus:  http.StatusNotFound,
			wantMessage: "no whoop connection for user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.err.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.wantStatus)
			}
			if tt.err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMessage)
			}
		})
	}
}

func TestErrorWrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("pool exhausted")
	err := Internal(WithCause(cause))

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if got := err.Error(); got != "internal server error: pool exhausted" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRateLimitOptions(t *testing.T) {
	t.Parallel()

	err := TooManyRequests(
		WithRetryAfter(2*time.Second),
		WithReason("ip_rate_limit"),
	)

	if err.RateLimit == nil {
		t.Fatal("RateLimit = nil, want populated")
	}
	if err.RateLimit.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", err.RateLimit.RetryAfter)
	}
	if err.RateLimit.Reason != "ip_rate_limit" {
		t.Errorf("Reason = %q, want ip_rate_limit", err.RateLimit.Reason)
	}
}

func TestAs(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("handling request: %w", ServiceUnavailable())
	if got := As(wrapped); got == nil || got.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("As(wrapped) = %+v, want the 503 error", got)
	}

	if got := As(errors.New("plain")); got != nil {
		t.Errorf("As(plain) = %+v, want nil", got)
	}
}
