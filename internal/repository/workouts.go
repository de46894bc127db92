package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wakti/whoopsync/internal/client/whoop"
)

type workoutRepo struct {
	db *pgxpool.Pool
}

const upsertWorkoutSQL = `
INSERT INTO whoop_workouts (id, user_id, start_time, end_time, sport_name, strain, avg_heart_rate, score_state, raw, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	start_time = EXCLUDED.start_time,
	end_time = EXCLUDED.end_time,
	sport_name = EXCLUDED.sport_name,
	strain = EXCLUDED.strain,
	avg_heart_rate = EXCLUDED.avg_heart_rate,
	score_state = EXCLUDED.score_state,
	raw = EXCLUDED.raw,
	updated_at = EXCLUDED.updated_at`

func (r *workoutRepo) UpsertBatch(ctx context.Context, userID string, workouts []whoop.Workout) error {
	if len(workouts) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for i := range workouts {
		w := &workouts[i]
		var strain *float64
		var avgHeartRate *int
		if w.Score != nil {
			strain = &w.Score.Strain
			avgHeartRate = &w.Score.AverageHeartRate
		}
		b.Queue(upsertWorkoutSQL,
			w.ID, userID, w.Start, w.End, w.SportName,
			strain, avgHeartRate, string(w.ScoreState), []byte(w.Raw), w.UpdatedAt)
	}

	return execBatch(ctx, r.db, b, "workout")
}
