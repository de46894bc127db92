package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	go_json "github.com/goccy/go-json"

	"github.com/wakti/whoopsync/internal/repository"
	"github.com/wakti/whoopsync/internal/server"
	"github.com/wakti/whoopsync/internal/xerrors"
	"github.com/wakti/whoopsync/internal/xhttp"
	"github.com/wakti/whoopsync/internal/xslog"
	"github.com/wakti/whoopsync/internal/xsync"
)

const (
	ModeUser = "user"
	ModeBulk = "bulk"
)

// Syncer runs the synchronization job. Implemented by xsync.Service.
type Syncer interface {
	SyncUser(ctx context.Context, userID string, start, end time.Time) (xsync.Summary, error)
	SyncAll(ctx context.Context, start, end time.Time) (xsync.Summary, error)
}

type Sync struct {
	syncer      Syncer
	creds       repository.CredentialRepository
	operatorKey string
}

func NewSync(syncer Syncer, creds repository.CredentialRepository, operatorKey string) *Sync {
	return &Sync{
		syncer:      syncer,
		creds:       creds,
		operatorKey: operatorKey,
	}
}

type syncRequest struct {
	Mode      string `json:"mode,omitempty"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	UserToken string `json:"user_token,omitempty"`
}

type syncResponse struct {
	Success         bool         `json:"success"`
	Users           int          `json:"users"`
	Counts          xsync.Counts `json:"counts"`
	ReconnectNeeded bool         `json:"reconnectNeeded"`
}

// HandleSync handles POST /sync requests.
//
// The caller is identified by an API key, taken from the Authorization
// bearer header or the user_token body field. With no explicit mode the
// request syncs the caller's own user when the key resolves to one, and
// falls back to a bulk run otherwise. Bulk runs always require the
// operator key.
func (h *Sync) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)

	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := go_json.NewDecoder(r.Body).Decode(&req); err != nil {
			xerrors.WriteError(ctx, w, xerrors.BadRequest(
				xerrors.WithMessage("invalid request body"),
				xerrors.WithCause(err),
			))
			return
		}
	}

	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		xerrors.WriteError(ctx, w, xerrors.BadRequest(
			xerrors.WithMessage(err.Error()),
		))
		return
	}

	key := callerKey(r, req.UserToken)

	cred, err := h.resolveCaller(ctx, key)
	if err != nil {
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithCause(err)))
		return
	}

	mode := req.Mode
	if mode == "" {
		if cred != nil {
			mode = ModeUser
		} else {
			mode = ModeBulk
		}
	}

	var summary xsync.Summary
	switch mode {
	case ModeUser:
		if cred == nil {
			xerrors.WriteError(ctx, w, xerrors.Unauthorized(
				xerrors.WithMessage("unknown or missing api key"),
			))
			return
		}
		logger.InfoContext(ctx, "sync requested",
			xslog.Mode(mode),
			xslog.UserID(cred.UserID),
		)
		summary, err = h.syncer.SyncUser(ctx, cred.UserID, start, end)

	case ModeBulk:
		if !h.authorizeOperator(key) {
			xerrors.WriteError(ctx, w, xerrors.Unauthorized(
				xerrors.WithMessage("bulk sync requires the operator key"),
			))
			return
		}
		logger.InfoContext(ctx, "sync requested", xslog.Mode(mode))
		summary, err = h.syncer.SyncAll(ctx, start, end)

	default:
		xerrors.WriteError(ctx, w, xerrors.BadRequest(
			xerrors.WithMessage("mode must be \"user\" or \"bulk\""),
		))
		return
	}

	if err != nil {
		if errors.Is(err, xsync.ErrNoCredential) {
			xerrors.WriteError(ctx, w, xerrors.NotFound(
				xerrors.WithMessage("no whoop connection for user"),
			))
			return
		}
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithCause(err)))
		return
	}

	xhttp.WriteOK(w, syncResponse{
		Success:         true,
		Users:           summary.Users,
		Counts:          summary.Counts,
		ReconnectNeeded: summary.ReconnectNeeded,
	})
}

func (h *Sync) resolveCaller(ctx context.Context, key string) (*repository.Credential, error) {
	if key == "" {
		return nil, nil
	}
	return h.creds.GetByAPIKeyHash(ctx, server.HashSecret(key))
}

func (h *Sync) authorizeOperator(key string) bool {
	if h.operatorKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.operatorKey)) == 1
}

// callerKey prefers the Authorization bearer token, falling back to the
// user_token body field for callers that cannot set headers.
func callerKey(r *http.Request, bodyToken string) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		return token
	}
	return bodyToken
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time

	if startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return start, end, errors.New("start must be RFC3339")
		}
		start = t
	}
	if endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return start, end, errors.New("end must be RFC3339")
		}
		end = t
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, errors.New("end must not be before start")
	}

	return start, end, nil
}
