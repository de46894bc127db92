package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/wakti/whoopsync/internal/metrics"
	"github.com/wakti/whoopsync/internal/repository"
	"github.com/wakti/whoopsync/internal/xslog"
)

// RefreshError wraps a failed token refresh with the provider's HTTP status
// when one was returned. StatusCode is zero for transport failures.
type RefreshError struct {
	StatusCode int
	Err        error
}

func (e *RefreshError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("refreshing token: provider returned %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("refreshing token: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Permanent reports whether the provider rejected the grant itself, meaning
// retrying with the same refresh token cannot succeed.
func (e *RefreshError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Refresher exchanges refresh tokens for new access tokens and persists the
// result before handing it back, so a crash after refresh never strands the
// rotated refresh token.
type Refresher struct {
	config *oauth2.Config
	creds  repository.CredentialRepository
	logger *slog.Logger
}

func NewRefresher(config *oauth2.Config, creds repository.CredentialRepository, logger *slog.Logger) *Refresher {
	return &Refresher{
		config: config,
		creds:  creds,
		logger: logger,
	}
}

// Refresh forces a token exchange for the given credential regardless of the
// stored expiry and saves the new tokens. The returned token is only valid
// once persistence succeeded.
func (r *Refresher) Refresh(ctx context.Context, cred *repository.Credential) (*oauth2.Token, error) {
	// An already expired Expiry forces the oauth2 transport to hit the
	// token endpoint instead of returning the cached access token.
	stale := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	token, err := r.config.TokenSource(ctx, stale).Token()
	if err != nil {
		metrics.RecordTokenRefresh("error")

		var retrieveErr *oauth2.RetrieveError
		statusCode := 0
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			statusCode = retrieveErr.Response.StatusCode
		}

		r.logger.ErrorContext(ctx, "token refresh failed",
			xslog.UserID(cred.UserID),
			xslog.HTTPStatus(statusCode),
			xslog.Error(err),
		)
		return nil, &RefreshError{StatusCode: statusCode, Err: err}
	}

	// The provider may rotate the refresh token or keep the old one.
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}

	if err := r.creds.SaveTokens(ctx, cred.UserID, token.AccessToken, refreshToken, token.Expiry); err != nil {
		metrics.RecordTokenRefresh("error")
		return nil, &RefreshError{Err: fmt.Errorf("persisting refreshed tokens: %w", err)}
	}

	metrics.RecordTokenRefresh("ok")
	r.logger.InfoContext(ctx, "token refreshed",
		xslog.UserID(cred.UserID),
	)

	cred.AccessToken = token.AccessToken
	cred.RefreshToken = refreshToken
	cred.ExpiresAt = token.Expiry

	return &oauth2.Token{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}, nil
}
