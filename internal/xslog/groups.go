package xslog

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wakti/whoopsync/internal/xcontext"
)

// RequestGroup bundles the request fields the access log carries.
func RequestGroup(r *http.Request) slog.Attr {
	attrs := []slog.Attr{
		RequestMethod(r),
		RequestPath(r),
		RequestIP(r),
		slog.String("user_agent", r.UserAgent()),
	}
	if id, ok := xcontext.GetRequestID(r.Context()); ok {
		attrs = append(attrs, slog.String("id", id))
	}
	return slog.GroupAttrs("request", attrs...)
}

func ResponseGroup(status int, duration time.Duration) slog.Attr {
	return slog.Group("response",
		HTTPStatus(status),
		Duration(duration),
	)
}

func ErrorGroup(err error) slog.Attr {
	if err == nil {
		return slog.Group("error")
	}
	return slog.Group("error",
		slog.String("message", err.Error()),
		slog.String("type", fmt.Sprintf("%T", err)),
	)
}

// ErrorGroupWithStack records a recovered panic value together with the
// goroutine stack. The value is any because panics need not be errors.
func ErrorGroupWithStack(err any) slog.Attr {
	return slog.Group("error",
		slog.Any("value", err),
		slog.String("type", fmt.Sprintf("%T", err)),
		Stack(),
	)
}
