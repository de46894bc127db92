package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wakti/whoopsync/internal/client/whoop"
)

type sleepRepo struct {
	db *pgxpool.Pool
}

const upsertSleepSQL = `
INSERT INTO whoop_sleeps (id, user_id, start_time, end_time, nap, performance_pct, score_state, raw, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	start_time = EXCLUDED.start_time,
	end_time = EXCLUDED.end_time,
	nap = EXCLUDED.nap,
	performance_pct = EXCLUDED.performance_pct,
	score_state = EXCLUDED.score_state,
	raw = EXCLUDED.raw,
	updated_at = EXCLUDED.updated_at`

func (r *sleepRepo) UpsertBatch(ctx context.Context, userID string, sleeps []whoop.Sleep) error {
	if len(sleeps) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for i := range sleeps {
		s := &sleeps[i]
		var performance *float64
		if s.Score != nil {
			performance = &s.Score.SleepPerformancePercentage
		}
		b.Queue(upsertSleepSQL,
			s.ID, userID, s.Start, s.End, s.Nap,
			performance, string(s.ScoreState), []byte(s.Raw), s.UpdatedAt)
	}

	return execBatch(ctx, r.db, b, "sleep")
}
