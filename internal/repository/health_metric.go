package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/model"
)

type HealthMetricRepository interface {
	Upsert(ctx context.Context, metric *model.HealthMetric) error
	Since(ctx context.Context, userID, since string) ([]*model.HealthMetric, error)
	WithTx(tx *sqlx.Tx) HealthMetricRepository
}

type healthMetricRepository struct {
	db sqlx.ExtContext
}

func NewHealthMetricRepository(db *sqlx.DB) HealthMetricRepository {
	return &healthMetricRepository{db: db}
}

func (r *healthMetricRepository) WithTx(tx *sqlx.Tx) HealthMetricRepository {
	return &healthMetricRepository{db: tx}
}

// Upsert stores the day's counters, replacing any earlier submission for the same date
func (r *healthMetricRepository) Upsert(ctx context.Context, metric *model.HealthMetric) error {
	query := `INSERT INTO user_health_metrics (id, user_id, metric_date, steps, exercise_minutes, sleep_minutes, source, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (user_id, metric_date) DO UPDATE SET
	              steps = excluded.steps,
	              exercise_minutes = excluded.exercise_minutes,
	              sleep_minutes = excluded.sleep_minutes,
	              source = excluded.source,
	              updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		metric.ID,
		metric.UserID,
		metric.MetricDate,
		metric.Steps,
		metric.ExerciseMinutes,
		metric.SleepMinutes,
		metric.Source,
		metric.CreatedAt,
		metric.UpdatedAt,
	)
	return err
}

func (r *healthMetricRepository) Since(ctx context.Context, userID, since string) ([]*model.HealthMetric, error) {
	var metrics []*model.HealthMetric
	query := `SELECT * FROM user_health_metrics WHERE user_id = $1 AND metric_date >= $2 ORDER BY metric_date DESC`

	err := sqlx.SelectContext(ctx, r.db, &metrics, query, userID, since)
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
