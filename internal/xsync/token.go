package xsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"

	"github.com/wakti/whoopsync/internal/client/whoop"
	"github.com/wakti/whoopsync/internal/oauth"
	"github.com/wakti/whoopsync/internal/repository"
)

// tokenCell is the shared mutable token for one user's sync. Concurrent
// resource fetches read from it through the oauth2.TokenSource interface;
// refreshes go through RefreshFrom so that several fetches hitting a 401 at
// once trigger a single token exchange.
type tokenCell struct {
	refresher *oauth.Refresher
	cred      *repository.Credential

	mu    sync.Mutex
	token *oauth2.Token
	gen   uint64

	reconnect atomic.Bool
}

var _ oauth2.TokenSource = (*tokenCell)(nil)

func newTokenCell(refresher *oauth.Refresher, cred *repository.Credential) *tokenCell {
	return &tokenCell{
		refresher: refresher,
		cred:      cred,
		token: &oauth2.Token{
			AccessToken:  cred.AccessToken,
			RefreshToken: cred.RefreshToken,
			Expiry:       cred.ExpiresAt,
		},
	}
}

// Token hands out the current token without refreshing. Expiry is managed by
// the sync loop, not the transport: a stale token is sent as-is and the 401
// response drives the refresh.
func (c *tokenCell) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := *c.token
	return &t, nil
}

func (c *tokenCell) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// RefreshFrom exchanges the refresh token unless another caller already did
// so since generation gen was observed, in which case the fresher token is
// kept and no provider call is made.
func (c *tokenCell) RefreshFrom(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return nil
	}

	token, err := c.refresher.Refresh(ctx, c.cred)
	if err != nil {
		var refreshErr *oauth.RefreshError
		if errors.As(err, &refreshErr) && refreshErr.Permanent() {
			c.reconnect.Store(true)
		}
		return err
	}

	c.token = token
	c.gen++
	return nil
}

func (c *tokenCell) markReconnect() {
	c.reconnect.Store(true)
}

func (c *tokenCell) ReconnectNeeded() bool {
	return c.reconnect.Load()
}

// withReauth runs op and, on a provider 401, refreshes the token once and
// retries once. A second 401 means the refreshed token was rejected too, so
// the cell is flagged for reconnection and the error propagates. Non-401
// errors pass through untouched.
func withReauth[T any](ctx context.Context, cell *tokenCell, op func(context.Context) (T, error)) (T, error) {
	gen := cell.generation()

	out, err := op(ctx)
	if err == nil || !whoop.IsUnauthorized(err) {
		return out, err
	}

	if refreshErr := cell.RefreshFrom(ctx, gen); refreshErr != nil {
		var zero T
		return zero, refreshErr
	}

	out, err = op(ctx)
	if err != nil && whoop.IsUnauthorized(err) {
		cell.markReconnect()
		var zero T
		return zero, err
	}
	return out, err
}
