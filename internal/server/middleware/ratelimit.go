package middleware

import (
	"net/http"

	"github.com/wakti/whoopsync/internal/storage"
	"github.com/wakti/whoopsync/internal/xerrors"
	"github.com/wakti/whoopsync/internal/xhttp"
	"github.com/wakti/whoopsync/internal/xslog"
)

// RateLimitWithBackend applies IP-based rate limiting.
func RateLimitWithBackend(backend storage.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := xslog.FromContext(ctx)
			ip := xhttp.GetRequestIP(r)

			result, err := backend.Allow(ctx, ip)
			if err != nil {
				logger.ErrorContext(ctx, "rate limit check failed",
					xslog.ErrorGroup(err),
					xslog.IP(ip),
				)
				xerrors.WriteError(ctx, w, xerrors.ServiceUnavailable(
					xerrors.WithMessage("rate limit check failed"),
				))
				return
			}

			if !result.Allowed {
				xerrors.WriteError(ctx, w, xerrors.TooManyRequests(
					xerrors.WithRetryAfter(result.RetryAfter),
					xerrors.WithReason("ip_rate_limit"),
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
