package xerrors

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Error is an HTTP-mapped application error. Message is what the client
// sees; Cause stays server-side in the logs.
type Error struct {
	StatusCode int
	Message    string
	Cause      error
	RateLimit  *RateLimitInfo
}

// RateLimitInfo carries the throttling detail a 429 or 503 response
// surfaces through headers.
type RateLimitInfo struct {
	RetryAfter time.Duration
	Reason     string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

type Option func(*Error)

// New builds an Error for the given status with the status text as the
// default client-facing message.
func New(status int, opts ...Option) *Error {
	e := &Error{StatusCode: status, Message: strings.ToLower(http.StatusText(status))}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func BadRequest(opts ...Option) *Error         { return New(http.StatusBadRequest, opts...) }
func Unauthorized(opts ...Option) *Error       { return New(http.StatusUnauthorized, opts...) }
func NotFound(opts ...Option) *Error           { return New(http.StatusNotFound, opts...) }
func TooManyRequests(opts ...Option) *Error    { return New(http.StatusTooManyRequests, opts...) }
func Internal(opts ...Option) *Error           { return New(http.StatusInternalServerError, opts...) }
func ServiceUnavailable(opts ...Option) *Error { return New(http.StatusServiceUnavailable, opts...) }

func WithMessage(msg string) Option { return func(e *Error) { e.Message = msg } }
func WithCause(err error) Option    { return func(e *Error) { e.Cause = err } }

func WithRetryAfter(d time.Duration) Option {
	return func(e *Error) { e.rateLimit().RetryAfter = d }
}

func WithReason(reason string) Option {
	return func(e *Error) { e.rateLimit().Reason = reason }
}

func (e *Error) rateLimit() *RateLimitInfo {
	if e.RateLimit == nil {
		e.RateLimit = &RateLimitInfo{}
	}
	return e.RateLimit
}

// As unwraps err to an *Error, or nil when it is not one.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
