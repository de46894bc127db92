package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wakti/whoopsync/internal/client/whoop"
)

type cycleRepo struct {
	db *pgxpool.Pool
}

const upsertCycleSQL = `
INSERT INTO whoop_cycles (id, user_id, start_time, end_time, strain, avg_heart_rate, kilojoule, score_state, raw, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	start_time = EXCLUDED.start_time,
	end_time = EXCLUDED.end_time,
	strain = EXCLUDED.strain,
	avg_heart_rate = EXCLUDED.avg_heart_rate,
	kilojoule = EXCLUDED.kilojoule,
	score_state = EXCLUDED.score_state,
	raw = EXCLUDED.raw,
	updated_at = EXCLUDED.updated_at`

func (r *cycleRepo) UpsertBatch(ctx context.Context, userID string, cycles []whoop.Cycle) error {
	if len(cycles) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for i := range cycles {
		c := &cycles[i]
		var strain, kilojoule *float64
		var avgHeartRate *int
		if c.Score != nil {
			strain = &c.Score.Strain
			kilojoule = &c.Score.Kilojoule
			avgHeartRate = &c.Score.AverageHeartRate
		}
		b.Queue(upsertCycleSQL,
			c.ID, userID, c.Start, c.End,
			strain, avgHeartRate, kilojoule,
			string(c.ScoreState), []byte(c.Raw), c.UpdatedAt)
	}

	return execBatch(ctx, r.db, b, "cycle")
}

func execBatch(ctx context.Context, db *pgxpool.Pool, b *pgx.Batch, resource string) error {
	br := db.SendBatch(ctx, b)
	defer func() { _ = br.Close() }()

	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting %s batch: %w", resource, err)
		}
	}
	return nil
}
