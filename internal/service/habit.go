package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/catalog"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
)

type HabitService struct {
	repo repository.HabitRepository
}

func NewHabitService(repo repository.HabitRepository) *HabitService {
	return &HabitService{repo: repo}
}

// SeedCatalog writes the static catalog into the habits table. Existing rows keep their ids.
func (s *HabitService) SeedCatalog(ctx context.Context) error {
	now := time.Now()
	for _, h := range catalog.Habits {
		habit := &model.Habit{
			ID:           uuid.New().String(),
			Name:         h.Name,
			Description:  h.Description,
			Quantitative: h.Quantitative,
			CreatedAt:    now,
		}
		if h.Quantitative {
			unit, target := h.Unit, h.DefaultTarget
			habit.DefaultUnit = &unit
			habit.DefaultTarget = &target
		}
		if h.HealthMetric != "" {
			metric := h.HealthMetric
			habit.HealthMetric = &metric
		}

		err := s.repo.Upsert(ctx, habit)
		if err != nil {
			return fmt.Errorf("failed to seed habit %q: %w", h.Name, err)
		}
	}

	slog.Info("habit catalog seeded", "count", len(catalog.Habits))
	return nil
}

// Habits lists the trackable catalog. includeHealth=false drops health-tracker habits.
func (s *HabitService) Habits(ctx context.Context, includeHealth bool) ([]*model.Habit, error) {
	habits, err := s.repo.Habits(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list habits", err)
	}

	out := make([]*model.Habit, 0, len(habits))
	for _, h := range habits {
		if !h.Quantitative {
			continue
		}
		if !includeHealth && h.IsHealthEligible() {
			continue
		}
		h.DisplayName = catalog.DisplayName(h.Name)
		out = append(out, h)
	}
	return out, nil
}

func (s *HabitService) ByID(ctx context.Context, id string) (*model.Habit, error) {
	habit, err := s.repo.ByID(ctx, id)
	if errors.Is(err, repository.ErrHabitNotFound) {
		return nil, apperr.NotFound("habit not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load habit", err)
	}
	habit.DisplayName = catalog.DisplayName(habit.Name)
	return habit, nil
}
