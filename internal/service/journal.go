package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/metrics"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
)

const (
	DefaultJournalLimit = 100
	MaxJournalLimit     = 500
)

type JournalService struct {
	db         *sqlx.DB
	entries    repository.JournalEntryRepository
	goals      repository.GoalRepository
	reconciler *Reconciler
	now        func() time.Time
}

func NewJournalService(database *sqlx.DB, entries repository.JournalEntryRepository, goals repository.GoalRepository, reconciler *Reconciler) *JournalService {
	return &JournalService{
		db:         database,
		entries:    entries,
		goals:      goals,
		reconciler: reconciler,
		now:        time.Now,
	}
}

// ClampJournalLimit bounds a requested page size to [1, MaxJournalLimit]
func ClampJournalLimit(limit int) int {
	return max(1, min(limit, MaxJournalLimit))
}

func (s *JournalService) Entries(ctx context.Context, userID string, filter model.JournalFilter) ([]*model.JournalEntry, error) {
	if filter.From != "" {
		if err := validateDay("from", filter.From); err != nil {
			return nil, err
		}
	}
	if filter.To != "" {
		if err := validateDay("to", filter.To); err != nil {
			return nil, err
		}
	}
	filter.Limit = ClampJournalLimit(filter.Limit)

	entries, err := s.entries.Entries(ctx, userID, filter)
	if err != nil {
		return nil, apperr.Internal("failed to list journal entries", err)
	}
	if entries == nil {
		entries = []*model.JournalEntry{}
	}
	return entries, nil
}

// Submit records a day for a goal through the reconciler. The result reports
// whether the day's entry was created or updated.
func (s *JournalService) Submit(ctx context.Context, userID string, sub model.JournalSubmission) (*ReconcileResult, error) {
	day := strings.TrimSpace(sub.EntryDate)
	if day == "" {
		day = s.now().UTC().Format(model.DateLayout)
	}

	return s.reconciler.Reconcile(ctx, ReconcileInput{
		UserID:     userID,
		GoalID:     strings.TrimSpace(sub.GoalID),
		Day:        day,
		Value:      sub.Value,
		Unit:       trimmed(sub.ValueUnit),
		Reflection: sub.Reflection,
		Level:      sub.CompletionLevel,
		Source:     SourceJournal,
	})
}

// Delete removes an entry and takes its XP back off the goal, flooring at zero.
// It returns the goal with its updated total.
func (s *JournalService) Delete(ctx context.Context, userID, entryID string) (*model.Goal, error) {
	var goal *model.Goal
	var removed int

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		entries := s.entries.WithTx(tx)
		goals := s.goals.WithTx(tx)

		entry, err := entries.ByID(ctx, userID, entryID)
		if err != nil {
			return err
		}

		err = entries.Delete(ctx, userID, entryID)
		if err != nil {
			return err
		}

		if entry.XPDelta != 0 {
			_, err = goals.AddXP(ctx, userID, entry.GoalID, -entry.XPDelta)
			if err != nil {
				return err
			}
		}
		removed = entry.XPDelta

		goal, err = goals.ByID(ctx, userID, entry.GoalID)
		return err
	})
	if errors.Is(err, repository.ErrJournalEntryNotFound) {
		return nil, apperr.NotFound("journal entry not found")
	}
	if errors.Is(err, repository.ErrGoalNotFound) {
		return nil, apperr.NotFound("goal not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to delete journal entry", err)
	}

	metrics.ObserveXPDelta(-removed)
	slog.Info("journal entry deleted", "user_id", userID, "entry_id", entryID, "xp_removed", removed)
	return goal, nil
}
