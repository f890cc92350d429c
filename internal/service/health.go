package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
)

const (
	DefaultHealthDays = 7
	MaxHealthDays     = 30
)

type HealthIngestResult struct {
	Updated      int                   `json:"updated"`
	GoalsUpdated int                   `json:"goals_updated"`
	Records      []*model.HealthMetric `json:"records"`
}

type HealthService struct {
	db         *sqlx.DB
	repo       repository.HealthMetricRepository
	reconciler *Reconciler
	now        func() time.Time
}

func NewHealthService(database *sqlx.DB, repo repository.HealthMetricRepository, reconciler *Reconciler) *HealthService {
	return &HealthService{
		db:         database,
		repo:       repo,
		reconciler: reconciler,
		now:        time.Now,
	}
}

// ClampHealthDays bounds a requested window to [1, MaxHealthDays]
func ClampHealthDays(days int) int {
	return max(1, min(days, MaxHealthDays))
}

// Ingest validates every record before writing any of them, then stores the
// days and re-scores the user's health-tracked goals in one transaction.
func (s *HealthService) Ingest(ctx context.Context, userID string, inputs []model.HealthMetricInput) (*HealthIngestResult, error) {
	records, err := s.parseRecords(userID, inputs)
	if err != nil {
		return nil, err
	}

	var goalsUpdated int
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		for _, record := range records {
			if err := repo.Upsert(ctx, record); err != nil {
				return apperr.Internal("failed to store health metrics", err)
			}
		}

		var err error
		goalsUpdated, err = s.reconciler.ReconcileHealthBatch(ctx, tx, userID, records)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("health metrics ingested", "user_id", userID, "records", len(records), "goals_updated", goalsUpdated)
	return &HealthIngestResult{
		Updated:      len(records),
		GoalsUpdated: goalsUpdated,
		Records:      records,
	}, nil
}

func (s *HealthService) parseRecords(userID string, inputs []model.HealthMetricInput) ([]*model.HealthMetric, error) {
	if len(inputs) == 0 {
		return nil, apperr.BadRequest("records must be a non-empty list")
	}

	now := s.now()
	records := make([]*model.HealthMetric, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("records[%d]", i)

		day := strings.TrimSpace(in.Date)
		if err := validateDay(field+".date", day); err != nil {
			return nil, err
		}

		steps, err := counter(field+".steps", in.Steps)
		if err != nil {
			return nil, err
		}
		exercise, err := counter(field+".exercise_minutes", in.ExerciseMinutes)
		if err != nil {
			return nil, err
		}
		sleep, err := counter(field+".sleep_minutes", in.SleepMinutes)
		if err != nil {
			return nil, err
		}

		source := model.HealthSourceAppleHealth
		if in.Source != nil && strings.TrimSpace(*in.Source) != "" {
			source = strings.TrimSpace(*in.Source)
		}

		records = append(records, &model.HealthMetric{
			ID:              uuid.New().String(),
			UserID:          userID,
			MetricDate:      day,
			Steps:           steps,
			ExerciseMinutes: exercise,
			SleepMinutes:    sleep,
			Source:          source,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return records, nil
}

func counter(field string, v *int) (int, error) {
	if v == nil {
		return 0, nil
	}
	if *v < 0 {
		return 0, apperr.BadRequest("%s must be zero or greater", field)
	}
	return *v, nil
}

// Daily returns the stored days from today back through days-1 days ago, newest first
func (s *HealthService) Daily(ctx context.Context, userID string, days int) ([]*model.HealthMetric, error) {
	days = ClampHealthDays(days)
	since := s.now().UTC().AddDate(0, 0, -(days - 1)).Format(model.DateLayout)

	records, err := s.repo.Since(ctx, userID, since)
	if err != nil {
		return nil, apperr.Internal("failed to load health metrics", err)
	}
	if records == nil {
		records = []*model.HealthMetric{}
	}
	return records, nil
}
