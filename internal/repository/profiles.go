package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wakti/whoopsync/internal/client/whoop"
)

type profileRepo struct {
	db *pgxpool.Pool
}

const upsertProfileSQL = `
INSERT INTO whoop_profiles (user_id, email, first_name, last_name, height_meter, weight_kilogram, max_heart_rate, profile_raw, body_raw)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id) DO UPDATE SET
	email = COALESCE(EXCLUDED.email, whoop_profiles.email),
	first_name = COALESCE(EXCLUDED.first_name, whoop_profiles.first_name),
	last_name = COALESCE(EXCLUDED.last_name, whoop_profiles.last_name),
	height_meter = COALESCE(EXCLUDED.height_meter, whoop_profiles.height_meter),
	weight_kilogram = COALESCE(EXCLUDED.weight_kilogram, whoop_profiles.weight_kilogram),
	max_heart_rate = COALESCE(EXCLUDED.max_heart_rate, whoop_profiles.max_heart_rate),
	profile_raw = COALESCE(EXCLUDED.profile_raw, whoop_profiles.profile_raw),
	body_raw = COALESCE(EXCLUDED.body_raw, whoop_profiles.body_raw)`

func (r *profileRepo) Upsert(ctx context.Context, userID string, profile *whoop.UserProfile, body *whoop.BodyMeasurement) error {
	if profile == nil && body == nil {
		return nil
	}

	var email, firstName, lastName *string
	var profileRaw, bodyRaw []byte
	if profile != nil {
		email = &profile.Email
		firstName = &profile.FirstName
		lastName = &profile.LastName
		profileRaw = profile.Raw
	}

	var height, weight *float64
	var maxHeartRate *int
	if body != nil {
		height = &body.HeightMeter
		weight = &body.WeightKilogram
		maxHeartRate = &body.MaxHeartRate
		bodyRaw = body.Raw
	}

	_, err := r.db.Exec(ctx, upsertProfileSQL,
		userID, email, firstName, lastName,
		height, weight, maxHeartRate,
		profileRaw, bodyRaw)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}
