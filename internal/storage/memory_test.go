package storage

import (
	"testing"
)

func TestMemoryBackendEnforcesBurst(t *testing.T) {
	t.Parallel()

	// Zero refill rate, so only the burst allowance can pass.
	m := NewMemoryBackend(0, 3)
	t.Cleanup(func() { _ = m.Close() })

	for i := range 3 {
		result, err := m.Allow(t.Context(), "1.2.3.4")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}

	result, err := m.Allow(t.Context(), "1.2.3.4")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if result.Allowed {
		t.Error("request beyond burst allowed")
	}
	if result.RetryAfter <= 0 {
		t.Error("RetryAfter not set on denial")
	}
}

func TestMemoryBackendKeysAreIndependent(t *testing.T) {
	t.Parallel()

	m := NewMemoryBackend(0, 1)
	t.Cleanup(func() { _ = m.Close() })

	if result, _ := m.Allow(t.Context(), "1.1.1.1"); !result.Allowed {
		t.Fatal("first request for key one denied")
	}
	if result, _ := m.Allow(t.Context(), "1.1.1.1"); result.Allowed {
		t.Error("second request for key one allowed beyond burst")
	}
	if result, _ := m.Allow(t.Context(), "2.2.2.2"); !result.Allowed {
		t.Error("fresh key denied by another key's exhaustion")
	}
}
