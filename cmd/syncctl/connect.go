package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/wakti/whoopsync/internal/repository"
	"github.com/wakti/whoopsync/internal/server"
)

func connectCmd() *cobra.Command {
	var (
		userID       string
		accessToken  string
		refreshToken string
		expiresAt    string
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Store a user's WHOOP tokens and issue an API key",
		Long: `Stores the token pair obtained from the WHOOP OAuth flow for a user and
prints a freshly generated API key. Only the key's hash is persisted, so
save the printed key: it cannot be recovered later.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			expiry, err := time.Parse(time.RFC3339, expiresAt)
			if err != nil {
				return fmt.Errorf("parsing --expires-at: %w", err)
			}

			apiKey, err := generateAPIKey()
			if err != nil {
				return fmt.Errorf("generating api key: %w", err)
			}
			hash := server.HashSecret(apiKey)

			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := repository.NewPostgres(pool)
			err = repo.Credentials.Upsert(ctx, &repository.Credential{
				UserID:       userID,
				AccessToken:  accessToken,
				RefreshToken: refreshToken,
				ExpiresAt:    expiry,
				APIKeyHash:   &hash,
			})
			if err != nil {
				return fmt.Errorf("storing credential: %w", err)
			}

			fmt.Printf("User:    %s\n", userID)
			fmt.Printf("API key: %s\n", apiKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "application user ID")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "WHOOP access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "WHOOP refresh token")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "access token expiry, RFC3339")

	for _, flag := range []string{"user", "access-token", "refresh-token", "expires-at"} {
		_ = cmd.MarkFlagRequired(flag)
	}

	return cmd
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pool, nil
}
