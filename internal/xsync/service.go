// Package xsync orchestrates the WHOOP data synchronization job: token
// lifecycle, windowed resource fetches, and idempotent persistence.
package xsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wakti/whoopsync/internal/client/whoop"
	"github.com/wakti/whoopsync/internal/metrics"
	"github.com/wakti/whoopsync/internal/oauth"
	"github.com/wakti/whoopsync/internal/repository"
	"github.com/wakti/whoopsync/internal/xslog"
)

const (
	// RefreshMargin is how close to expiry a token may get before the sync
	// refreshes it up front instead of waiting for a 401.
	RefreshMargin = 60 * time.Second

	// DefaultWindowDays is the fetch window when the caller gives no range.
	DefaultWindowDays = 180

	// UpsertBatchSize caps how many records go into one database batch.
	UpsertBatchSize = 50

	maxFetchConcurrency = 5
)

// ErrNoCredential is returned when a sync targets a user with no stored
// WHOOP connection.
var ErrNoCredential = errors.New("no whoop credential stored for user")

type Counts struct {
	Cycles     int `json:"cycles"`
	Sleeps     int `json:"sleeps"`
	Workouts   int `json:"workouts"`
	Recoveries int `json:"recoveries"`
}

func (c *Counts) add(o Counts) {
	c.Cycles += o.Cycles
	c.Sleeps += o.Sleeps
	c.Workouts += o.Workouts
	c.Recoveries += o.Recoveries
}

// Summary is the outcome of a sync run.
//
// Users counts every user whose pass ran to a verdict, including those
// flagged for reconnection with zero records; users whose pass failed
// outright are excluded. ReconnectNeeded is true when at least one user's
// tokens were rejected even after a refresh and the user has to redo the
// OAuth flow.
type Summary struct {
	Users           int
	Counts          Counts
	ReconnectNeeded bool
}

type Service struct {
	repo       *repository.Repository
	refresher  *oauth.Refresher
	baseURL    string
	windowDays int
	logger     *slog.Logger
}

func NewService(repo *repository.Repository, refresher *oauth.Refresher, baseURL string, logger *slog.Logger, opts ...ServiceOption) *Service {
	if baseURL == "" {
		baseURL = whoop.DefaultBaseURL
	}
	s := &Service{
		repo:       repo,
		refresher:  refresher,
		baseURL:    baseURL,
		windowDays: DefaultWindowDays,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ServiceOption func(*Service)

// WithDefaultWindow overrides how far back a sync reaches when the caller
// gives no start time.
func WithDefaultWindow(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// SyncUser synchronizes a single user's window.
func (s *Service) SyncUser(ctx context.Context, userID string, start, end time.Time) (Summary, error) {
	cred, err := s.repo.Credentials.Get(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("loading credential: %w", err)
	}
	if cred == nil {
		return Summary{}, ErrNoCredential
	}

	counts, reconnect, err := s.syncOne(ctx, cred, start, end)
	if err != nil {
		return Summary{}, err
	}

	return Summary{Users: 1, Counts: counts, ReconnectNeeded: reconnect}, nil
}

// SyncAll synchronizes every stored user sequentially. One user's failure is
// logged and counted but never aborts the rest of the run.
func (s *Service) SyncAll(ctx context.Context, start, end time.Time) (Summary, error) {
	creds, err := s.repo.Credentials.List(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("listing credentials: %w", err)
	}

	var summary Summary
	for i := range creds {
		cred := &creds[i]

		counts, reconnect, err := s.syncOne(ctx, cred, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			metrics.RecordSyncFailure("user")
			s.logger.ErrorContext(ctx, "user sync failed",
				xslog.UserID(cred.UserID),
				xslog.Error(err),
			)
			continue
		}

		summary.Users++
		summary.Counts.add(counts)
		summary.ReconnectNeeded = summary.ReconnectNeeded || reconnect
	}

	return summary, nil
}

func (s *Service) syncOne(ctx context.Context, cred *repository.Credential, start, end time.Time) (Counts, bool, error) {
	began := time.Now()
	defer func() { metrics.ObserveSyncDuration(time.Since(began)) }()

	start, end = s.normalizeWindow(start, end)

	logger := s.logger.With(xslog.UserID(cred.UserID))
	logger.InfoContext(ctx, "starting sync",
		xslog.Start(start),
		xslog.End(end),
	)

	cell := newTokenCell(s.refresher, cred)

	if cred.ExpiresWithin(RefreshMargin) {
		if err := cell.RefreshFrom(ctx, cell.generation()); err != nil {
			if cell.ReconnectNeeded() {
				s.flagReconnect(ctx, cred.UserID)
				return Counts{}, true, nil
			}
			// The stored token may still be honored; a 401 downstream
			// will retrigger the refresh.
			logger.WarnContext(ctx, "proactive token refresh failed, continuing",
				xslog.Error(err),
			)
		}
	}

	client := whoop.New(cell,
		whoop.WithBaseURL(s.baseURL),
		whoop.WithLogger(logger),
	)

	params := &whoop.ListParams{Start: &start, End: &end}

	var (
		countsMu sync.Mutex
		counts   Counts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFetchConcurrency)

	g.Go(func() error {
		cycles, err := withReauth(gctx, cell, func(ctx context.Context) ([]whoop.Cycle, error) {
			return client.Cycle.ListAll(ctx, params)
		})
		if err != nil {
			return s.absorbFetchErr(gctx, cell, "cycles", err)
		}
		n := persistChunks(gctx, logger, "cycles", cycles, func(ctx context.Context, batch []whoop.Cycle) error {
			return s.repo.Cycles.UpsertBatch(ctx, cred.UserID, batch)
		})
		countsMu.Lock()
		counts.Cycles = n
		countsMu.Unlock()
		return nil
	})

	g.Go(func() error {
		sleeps, err := withReauth(gctx, cell, func(ctx context.Context) ([]whoop.Sleep, error) {
			return client.Sleep.ListAll(ctx, params)
		})
		if err != nil {
			return s.absorbFetchErr(gctx, cell, "sleeps", err)
		}
		n := persistChunks(gctx, logger, "sleeps", sleeps, func(ctx context.Context, batch []whoop.Sleep) error {
			return s.repo.Sleeps.UpsertBatch(ctx, cred.UserID, batch)
		})
		countsMu.Lock()
		counts.Sleeps = n
		countsMu.Unlock()
		return nil
	})

	g.Go(func() error {
		workouts, err := withReauth(gctx, cell, func(ctx context.Context) ([]whoop.Workout, error) {
			return client.Workout.ListAll(ctx, params)
		})
		if err != nil {
			return s.absorbFetchErr(gctx, cell, "workouts", err)
		}
		n := persistChunks(gctx, logger, "workouts", workouts, func(ctx context.Context, batch []whoop.Workout) error {
			return s.repo.Workouts.UpsertBatch(ctx, cred.UserID, batch)
		})
		countsMu.Lock()
		counts.Workouts = n
		countsMu.Unlock()
		return nil
	})

	g.Go(func() error {
		recoveries, err := withReauth(gctx, cell, func(ctx context.Context) ([]whoop.Recovery, error) {
			return client.Recovery.ListAll(ctx, params)
		})
		if err != nil {
			return s.absorbFetchErr(gctx, cell, "recoveries", err)
		}
		n := persistChunks(gctx, logger, "recoveries", recoveries, func(ctx context.Context, batch []whoop.Recovery) error {
			return s.repo.Recoveries.UpsertBatch(ctx, cred.UserID, batch)
		})
		countsMu.Lock()
		counts.Recoveries = n
		countsMu.Unlock()
		return nil
	})

	g.Go(func() error {
		return s.syncProfile(gctx, cell, client, logger, cred.UserID)
	})

	if err := g.Wait(); err != nil {
		if cell.ReconnectNeeded() {
			s.flagReconnect(ctx, cred.UserID)
			return counts, true, nil
		}
		return counts, false, err
	}

	if cell.ReconnectNeeded() {
		s.flagReconnect(ctx, cred.UserID)
		return counts, true, nil
	}

	now := time.Now()
	if err := s.repo.Credentials.UpdateLastSynced(ctx, cred.UserID, now); err != nil {
		logger.WarnContext(ctx, "failed to update last synced watermark",
			xslog.Error(err),
		)
	}
	metrics.RecordSyncCompleted(now)

	logger.InfoContext(ctx, "sync complete",
		slog.Int("cycles", counts.Cycles),
		slog.Int("sleeps", counts.Sleeps),
		slog.Int("workouts", counts.Workouts),
		slog.Int("recoveries", counts.Recoveries),
	)

	return counts, false, nil
}

// absorbFetchErr turns a per-resource fetch failure into a logged warning
// unless it signals a dead token, in which case it aborts the group so the
// remaining fetches stop burning quota on a token that cannot work.
func (s *Service) absorbFetchErr(ctx context.Context, cell *tokenCell, resource string, err error) error {
	if cell.ReconnectNeeded() || ctx.Err() != nil {
		return err
	}
	metrics.RecordSyncFailure(resource)
	s.logger.WarnContext(ctx, "resource fetch failed",
		xslog.Resource(resource),
		xslog.Error(err),
	)
	return nil
}

func (s *Service) syncProfile(ctx context.Context, cell *tokenCell, client *whoop.Client, logger *slog.Logger, userID string) error {
	profile, err := withReauth(ctx, cell, func(ctx context.Context) (*whoop.UserProfile, error) {
		return client.User.GetProfile(ctx)
	})
	if err != nil {
		return s.absorbFetchErr(ctx, cell, "profile", err)
	}

	body, err := withReauth(ctx, cell, func(ctx context.Context) (*whoop.BodyMeasurement, error) {
		return client.User.GetBodyMeasurement(ctx)
	})
	if err != nil {
		if absorbed := s.absorbFetchErr(ctx, cell, "body_measurement", err); absorbed != nil {
			return absorbed
		}
		body = nil
	}

	if err := s.repo.Profiles.Upsert(ctx, userID, profile, body); err != nil {
		logger.WarnContext(ctx, "failed to persist profile",
			xslog.Error(err),
		)
	}
	return nil
}

func (s *Service) flagReconnect(ctx context.Context, userID string) {
	metrics.RecordReconnectFlagged()
	s.logger.WarnContext(ctx, "credentials rejected, user must reconnect",
		xslog.UserID(userID),
	)
	if err := s.repo.Credentials.SetReconnectNeeded(ctx, userID, true); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist reconnect flag",
			xslog.UserID(userID),
			xslog.Error(err),
		)
	}
}

// persistChunks writes records in fixed-size batches, counting only those
// that were stored. A failed batch is logged and skipped; the rest of the
// window still lands.
func persistChunks[T any](ctx context.Context, logger *slog.Logger, resource string, records []T, upsert func(context.Context, []T) error) int {
	total := 0
	batchNum := 0
	for batch := range slices.Chunk(records, UpsertBatchSize) {
		batchNum++
		if err := upsert(ctx, batch); err != nil {
			logger.WarnContext(ctx, "failed to upsert batch",
				xslog.Resource(resource),
				xslog.Batch(batchNum),
				xslog.Error(err),
			)
			continue
		}
		total += len(batch)
	}
	metrics.RecordSynced(resource, total)
	return total
}

func (s *Service) normalizeWindow(start, end time.Time) (time.Time, time.Time) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -s.windowDays)
	}
	return start, end
}
