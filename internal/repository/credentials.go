package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type credentialRepo struct {
	db *pgxpool.Pool
}

const credentialColumns = `user_id, access_token, refresh_token, expires_at, last_synced_at, reconnect_needed, api_key_hash`

func (r *credentialRepo) Get(ctx context.Context, userID string) (*Credential, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM whoop_credentials WHERE user_id = $1`,
		userID)
	return scanCredential(row)
}

func (r *credentialRepo) GetByAPIKeyHash(ctx context.Context, hash string) (*Credential, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM whoop_credentials WHERE api_key_hash = $1`,
		hash)
	return scanCredential(row)
}

func scanCredential(row pgx.Row) (*Credential, error) {
	var cred Credential
	err := row.Scan(
		&cred.UserID,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
		&cred.LastSyncedAt,
		&cred.ReconnectNeeded,
		&cred.APIKeyHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning credential: %w", err)
	}
	return &cred, nil
}

func (r *credentialRepo) List(ctx context.Context) ([]Credential, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+credentialColumns+` FROM whoop_credentials ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close()

	var creds []Credential
	for rows.Next() {
		var cred Credential
		if err := rows.Scan(
			&cred.UserID,
			&cred.AccessToken,
			&cred.RefreshToken,
			&cred.ExpiresAt,
			&cred.LastSyncedAt,
			&cred.ReconnectNeeded,
			&cred.APIKeyHash,
		); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

func (r *credentialRepo) Upsert(ctx context.Context, cred *Credential) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO whoop_credentials (user_id, access_token, refresh_token, expires_at, last_synced_at, reconnect_needed, api_key_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			reconnect_needed = EXCLUDED.reconnect_needed,
			api_key_hash = COALESCE(EXCLUDED.api_key_hash, whoop_credentials.api_key_hash)`,
		cred.UserID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt,
		cred.LastSyncedAt, cred.ReconnectNeeded, cred.APIKeyHash)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}
	return nil
}

func (r *credentialRepo) SaveTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE whoop_credentials
		SET access_token = $2, refresh_token = $3, expires_at = $4, reconnect_needed = FALSE
		WHERE user_id = $1`,
		userID, accessToken, refreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}
	return nil
}

func (r *credentialRepo) UpdateLastSynced(ctx context.Context, userID string, syncedAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE whoop_credentials SET last_synced_at = $2 WHERE user_id = $1`,
		userID, syncedAt)
	if err != nil {
		return fmt.Errorf("updating last synced: %w", err)
	}
	return nil
}

func (r *credentialRepo) SetReconnectNeeded(ctx context.Context, userID string, needed bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE whoop_credentials SET reconnect_needed = $2 WHERE user_id = $1`,
		userID, needed)
	if err != nil {
		return fmt.Errorf("setting reconnect needed: %w", err)
	}
	return nil
}
