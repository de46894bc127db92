package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wakti/whoopsync/internal/client/whoop"
)

// Credential is one user's stored WHOOP OAuth connection.
type Credential struct {
	UserID          string
	AccessToken     string
	RefreshToken    string
	ExpiresAt       time.Time
	LastSyncedAt    *time.Time
	ReconnectNeeded bool
	APIKeyHash      *string
}

// ExpiresWithin reports whether the access token expires within d of now.
func (c *Credential) ExpiresWithin(d time.Duration) bool {
	return time.Until(c.ExpiresAt) <= d
}

type CredentialRepository interface {
	// Get returns the credential for userID, or nil if none is stored.
	Get(ctx context.Context, userID string) (*Credential, error)

	// GetByAPIKeyHash resolves a caller API key (already hashed) to its
	// credential, or nil if unknown.
	GetByAPIKeyHash(ctx context.Context, hash string) (*Credential, error)

	// List returns every stored credential, for bulk sync.
	List(ctx context.Context) ([]Credential, error)

	Upsert(ctx context.Context, cred *Credential) error

	// SaveTokens atomically replaces the token pair and expiry after a
	// refresh, clearing any reconnect flag.
	SaveTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error

	UpdateLastSynced(ctx context.Context, userID string, syncedAt time.Time) error

	SetReconnectNeeded(ctx context.Context, userID string, needed bool) error
}

type CycleRepository interface {
	UpsertBatch(ctx context.Context, userID string, cycles []whoop.Cycle) error
}

type SleepRepository interface {
	UpsertBatch(ctx context.Context, userID string, sleeps []whoop.Sleep) error
}

type WorkoutRepository interface {
	UpsertBatch(ctx context.Context, userID string, workouts []whoop.Workout) error
}

type RecoveryRepository interface {
	UpsertBatch(ctx context.Context, userID string, recoveries []whoop.Recovery) error
}

type ProfileRepository interface {
	// Upsert stores the per-user profile/body singleton. Either part may be
	// nil when the corresponding fetch failed.
	Upsert(ctx context.Context, userID string, profile *whoop.UserProfile, body *whoop.BodyMeasurement) error
}

type Repository struct {
	Credentials CredentialRepository
	Cycles      CycleRepository
	Sleeps      SleepRepository
	Workouts    WorkoutRepository
	Recoveries  RecoveryRepository
	Profiles    ProfileRepository
}

func NewPostgres(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Credentials: &credentialRepo{db: pool},
		Cycles:      &cycleRepo{db: pool},
		Sleeps:      &sleepRepo{db: pool},
		Workouts:    &workoutRepo{db: pool},
		Recoveries:  &recoveryRepo{db: pool},
		Profiles:    &profileRepo{db: pool},
	}
}
