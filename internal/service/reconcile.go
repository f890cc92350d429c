package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/catalog"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/metrics"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
)

const (
	SourceJournal = "journal"
	SourceHealth  = "health"
)

// ReconcileInput describes one day's measurement for a goal
type ReconcileInput struct {
	UserID     string
	GoalID     string
	Day        string
	Value      *float64
	Unit       *string
	Reflection *string
	// Level scores a self-reported completion when Value is nil
	Level  *string
	Source string
}

type ReconcileResult struct {
	Entry   *model.JournalEntry
	Goal    *model.Goal
	Created bool
	XPDiff  int
}

// Reconciler keeps one journal entry per (user, goal, day) and applies only the
// change in that day's XP to the goal's running total.
type Reconciler struct {
	db      *sqlx.DB
	goals   repository.GoalRepository
	entries repository.JournalEntryRepository
	now     func() time.Time
}

func NewReconciler(database *sqlx.DB, goals repository.GoalRepository, entries repository.JournalEntryRepository) *Reconciler {
	return &Reconciler{
		db:      database,
		goals:   goals,
		entries: entries,
		now:     time.Now,
	}
}

// Reconcile scores and stores a single day in its own transaction
func (r *Reconciler) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	err := validateReconcileInput(in)
	if err != nil {
		return nil, err
	}

	var result *ReconcileResult
	err = db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var txErr error
		result, txErr = r.reconcileTx(ctx, tx, in)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("goal reconciled",
		"user_id", in.UserID,
		"goal_id", in.GoalID,
		"day", in.Day,
		"xp", result.Entry.XPDelta,
		"xp_diff", result.XPDiff,
		"goal_xp", result.Goal.XP,
	)
	return result, nil
}

// ReconcileHealthBatch re-scores every health-tracked goal of the user for each
// record, inside the caller's transaction. It returns the number of distinct
// goals that were re-scored.
func (r *Reconciler) ReconcileHealthBatch(ctx context.Context, tx *sqlx.Tx, userID string, records []*model.HealthMetric) (int, error) {
	goals, err := r.goals.WithTx(tx).HealthTracked(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to load health goals", err)
	}

	updated := 0
	for _, goal := range goals {
		if !goal.HasTarget() || goal.HealthMetric == nil || !catalog.ValidMetric(*goal.HealthMetric) {
			continue
		}

		unit := goal.TargetUnit
		if unit == nil {
			u := catalog.MetricUnit(*goal.HealthMetric)
			unit = &u
		}

		for _, record := range records {
			value, _ := record.Value(*goal.HealthMetric)
			_, err := r.reconcileTx(ctx, tx, ReconcileInput{
				UserID: userID,
				GoalID: goal.ID,
				Day:    record.MetricDate,
				Value:  &value,
				Unit:   unit,
				Source: SourceHealth,
			})
			if err != nil {
				return 0, err
			}
		}
		if len(records) > 0 {
			updated++
		}
	}

	return updated, nil
}

func (r *Reconciler) reconcileTx(ctx context.Context, tx *sqlx.Tx, in ReconcileInput) (*ReconcileResult, error) {
	goals := r.goals.WithTx(tx)
	entries := r.entries.WithTx(tx)

	goal, err := goals.ByID(ctx, in.UserID, in.GoalID)
	if errors.Is(err, repository.ErrGoalNotFound) {
		return nil, apperr.NotFound("goal not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load goal", err)
	}

	var score Score
	switch {
	case in.Value == nil && in.Level != nil:
		score = ScoreLevel(*in.Level)
	case !goal.HasTarget():
		return nil, apperr.InvalidState("goal has no positive target_value")
	default:
		score = ScoreValue(in.Value, *goal.TargetValue)
	}

	now := r.now()
	placeholder := &model.JournalEntry{
		ID:              uuid.New().String(),
		UserID:          in.UserID,
		GoalID:          in.GoalID,
		EntryDate:       in.Day,
		CompletionLevel: model.CompletionMissed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := entries.Ensure(ctx, placeholder)
	if err != nil {
		return nil, apperr.Internal("failed to create journal entry", err)
	}

	entry, err := entries.LockForDay(ctx, in.UserID, in.GoalID, in.Day)
	if err != nil {
		return nil, apperr.Internal("failed to lock journal entry", err)
	}

	diff := score.XP - entry.XPDelta

	entry.Value = in.Value
	entry.ValueUnit = in.Unit
	if in.Value != nil && in.Unit == nil {
		entry.ValueUnit = goal.TargetUnit
	}
	if in.Value == nil {
		entry.ValueUnit = nil
	}
	if in.Reflection != nil {
		entry.Reflection = *in.Reflection
	}
	entry.CompletionLevel = score.Level
	entry.XPDelta = score.XP

	err = entries.UpdateScore(ctx, entry)
	if err != nil {
		return nil, apperr.Internal("failed to update journal entry", err)
	}

	if diff != 0 {
		goal.XP, err = goals.AddXP(ctx, in.UserID, in.GoalID, diff)
		if err != nil {
			return nil, apperr.Internal("failed to apply goal xp", err)
		}
	}

	source := in.Source
	if source == "" {
		source = SourceJournal
	}
	metrics.ReconcileTotal.WithLabelValues(source, score.Level).Inc()
	metrics.ObserveXPDelta(diff)

	return &ReconcileResult{Entry: entry, Goal: goal, Created: created, XPDiff: diff}, nil
}

func validateReconcileInput(in ReconcileInput) error {
	if in.GoalID == "" {
		return apperr.BadRequest("goal_id is required")
	}
	err := validateDay("entry_date", in.Day)
	if err != nil {
		return err
	}
	if in.Value != nil {
		v := *in.Value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.BadRequest("value must be a finite number")
		}
		if v < 0 {
			return apperr.BadRequest("value must be zero or greater")
		}
	}
	if in.Level != nil && !model.ValidCompletionLevel(*in.Level) {
		return apperr.BadRequest("completion_level must be one of missed, partial, complete")
	}
	return nil
}

// validateDay is shared by the journal and health services
func validateDay(field, day string) error {
	_, err := time.Parse(model.DateLayout, day)
	if err != nil {
		return apperr.BadRequest("%s must be in YYYY-MM-DD format", field)
	}
	return nil
}
