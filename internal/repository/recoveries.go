package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wakti/whoopsync/internal/client/whoop"
)

type recoveryRepo struct {
	db *pgxpool.Pool
}

// Recoveries conflict on sleep_id: the provider keys them by the sleep they
// score, not by an ID of their own.
const upsertRecoverySQL = `
INSERT INTO whoop_recoveries (sleep_id, cycle_id, user_id, recovery_score, hrv_rmssd_milli, resting_heart_rate, score_state, raw, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (sleep_id) DO UPDATE SET
	cycle_id = EXCLUDED.cycle_id,
	user_id = EXCLUDED.user_id,
	recovery_score = EXCLUDED.recovery_score,
	hrv_rmssd_milli = EXCLUDED.hrv_rmssd_milli,
	resting_heart_rate = EXCLUDED.resting_heart_rate,
	score_state = EXCLUDED.score_state,
	raw = EXCLUDED.raw,
	updated_at = EXCLUDED.updated_at`

func (r *recoveryRepo) UpsertBatch(ctx context.Context, userID string, recoveries []whoop.Recovery) error {
	if len(recoveries) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for i := range recoveries {
		rec := &recoveries[i]
		var score, hrv, restingHR *float64
		if rec.Score != nil {
			score = &rec.Score.RecoveryScore
			hrv = &rec.Score.HRVRmssdMilli
			restingHR = &rec.Score.RestingHeartRate
		}
		var cycleID *int64
		if rec.CycleID != 0 {
			cycleID = &rec.CycleID
		}
		b.Queue(upsertRecoverySQL,
			rec.SleepID, cycleID, userID,
			score, hrv, restingHR,
			string(rec.ScoreState), []byte(rec.Raw), rec.UpdatedAt)
	}

	return execBatch(ctx, r.db, b, "recovery")
}
