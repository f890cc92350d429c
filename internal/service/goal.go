package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/catalog"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
)

type GoalService struct {
	db     *sqlx.DB
	repo   repository.GoalRepository
	habits repository.HabitRepository
}

func NewGoalService(database *sqlx.DB, repo repository.GoalRepository, habits repository.HabitRepository) *GoalService {
	return &GoalService{
		db:     database,
		repo:   repo,
		habits: habits,
	}
}

func (s *GoalService) Goals(ctx context.Context, userID string) ([]*model.Goal, error) {
	goals, err := s.repo.Goals(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list goals", err)
	}
	if goals == nil {
		goals = []*model.Goal{}
	}
	return goals, nil
}

func (s *GoalService) Goal(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	goal, err := s.repo.ByID(ctx, userID, goalID)
	if errors.Is(err, repository.ErrGoalNotFound) {
		return nil, apperr.NotFound("goal not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load goal", err)
	}
	return goal, nil
}

func (s *GoalService) Create(ctx context.Context, userID string, req model.GoalCreate) (*model.Goal, error) {
	goalText := strings.TrimSpace(req.GoalText)
	if goalText == "" {
		return nil, apperr.BadRequest("goal_text is required")
	}
	if strings.TrimSpace(req.HabitID) == "" {
		return nil, apperr.BadRequest("habit_id is required")
	}

	habit, err := s.habit(ctx, req.HabitID)
	if err != nil {
		return nil, err
	}

	xp := 0
	if req.XP != nil {
		xp = *req.XP
	}

	now := time.Now()
	goal := &model.Goal{
		ID:                 uuid.New().String(),
		UserID:             userID,
		HabitID:            habit.ID,
		GoalText:           goalText,
		XP:                 xp,
		Completed:          req.Completed,
		UsesHealthTracking: req.UsesHealthTracking,
		HealthMetric:       trimmed(req.HealthMetric),
		TargetValue:        req.TargetValue,
		TargetUnit:         trimmed(req.TargetUnit),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	applyHabitDefaults(goal, habit)

	err = validateGoal(goal)
	if err != nil {
		return nil, err
	}

	err = s.repo.Create(ctx, goal)
	if errors.Is(err, repository.ErrDuplicateHealthGoal) {
		return nil, apperr.Conflict("this habit already has a health-tracked goal")
	}
	if err != nil {
		return nil, apperr.Internal("failed to create goal", err)
	}

	goal.HabitName = habit.Name
	slog.Info("goal created", "user_id", userID, "goal_id", goal.ID, "habit", habit.Name)
	return goal, nil
}

// Update applies a partial update under the goal's row lock. XP is only
// written when the request sets it.
func (s *GoalService) Update(ctx context.Context, userID, goalID string, upd model.GoalUpdate) (*model.Goal, error) {
	if upd.Empty() {
		return nil, apperr.BadRequest("no updatable fields provided")
	}

	var goal *model.Goal
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.LockByID(ctx, userID, goalID)
		if errors.Is(err, repository.ErrGoalNotFound) {
			return apperr.NotFound("goal not found")
		}
		if err != nil {
			return apperr.Internal("failed to load goal", err)
		}

		habit, err := applyUpdate(ctx, s.habits.WithTx(tx), current, upd)
		if err != nil {
			return err
		}

		err = repo.Update(ctx, current)
		if errors.Is(err, repository.ErrDuplicateHealthGoal) {
			return apperr.Conflict("this habit already has a health-tracked goal")
		}
		if err != nil {
			return apperr.Internal("failed to update goal", err)
		}

		if upd.XP.Set {
			err = repo.SetXP(ctx, userID, goalID, upd.XP.Value)
			if err != nil {
				return apperr.Internal("failed to update goal xp", err)
			}
		}

		goal, err = repo.ByID(ctx, userID, goalID)
		if err != nil {
			return apperr.Internal("failed to reload goal", err)
		}
		goal.HabitName = habit.Name
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.Internal("failed to update goal", err)
	}

	return goal, nil
}

// applyUpdate merges the set fields of upd into goal and validates the result
func applyUpdate(ctx context.Context, habits repository.HabitRepository, goal *model.Goal, upd model.GoalUpdate) (*model.Habit, error) {
	habitID := goal.HabitID
	if upd.HabitID.Set {
		if upd.HabitID.Null || strings.TrimSpace(upd.HabitID.Value) == "" {
			return nil, apperr.BadRequest("habit_id cannot be empty")
		}
		habitID = upd.HabitID.Value
	}
	habit, err := loadHabit(ctx, habits, habitID)
	if err != nil {
		return nil, err
	}
	goal.HabitID = habit.ID

	if upd.GoalText.Set {
		text := strings.TrimSpace(upd.GoalText.Value)
		if upd.GoalText.Null || text == "" {
			return nil, apperr.BadRequest("goal_text cannot be empty")
		}
		goal.GoalText = text
	}
	if upd.XP.Set {
		if upd.XP.Null {
			return nil, apperr.BadRequest("xp cannot be null")
		}
		goal.XP = upd.XP.Value
	}
	if upd.Completed.Set {
		if upd.Completed.Null {
			return nil, apperr.BadRequest("completed cannot be null")
		}
		goal.Completed = upd.Completed.Value
	}
	if upd.UsesHealthTracking.Set {
		if upd.UsesHealthTracking.Null {
			return nil, apperr.BadRequest("uses_health_tracking cannot be null")
		}
		goal.UsesHealthTracking = upd.UsesHealthTracking.Value
	}
	if upd.HealthMetric.Set {
		goal.HealthMetric = trimmed(upd.HealthMetric.Ptr())
	}
	if upd.TargetValue.Set {
		goal.TargetValue = upd.TargetValue.Ptr()
	}
	if upd.TargetUnit.Set {
		goal.TargetUnit = trimmed(upd.TargetUnit.Ptr())
	}
	if goal.UsesHealthTracking {
		// an explicit null target stays null
		applyHealthDefaults(goal, habit, !upd.TargetValue.Set)
	}

	err = validateGoal(goal)
	if err != nil {
		return nil, err
	}
	return habit, nil
}

func (s *GoalService) Delete(ctx context.Context, userID, goalID string) error {
	err := s.repo.Delete(ctx, userID, goalID)
	if errors.Is(err, repository.ErrGoalNotFound) {
		return apperr.NotFound("goal not found")
	}
	if err != nil {
		return apperr.Internal("failed to delete goal", err)
	}

	slog.Info("goal deleted", "user_id", userID, "goal_id", goalID)
	return nil
}

// EnableHealthGoals makes sure the user has one health-tracked goal for each
// health habit. An existing goal on the habit is switched to tracking before a
// new one is created, so repeated calls return the same goals.
func (s *GoalService) EnableHealthGoals(ctx context.Context, userID string) ([]*model.Goal, error) {
	// resolve catalog rows before the transaction holds a connection
	var habits []*model.Habit
	for _, h := range catalog.HealthHabits() {
		habit, err := s.habits.ByName(ctx, h.Name)
		if errors.Is(err, repository.ErrHabitNotFound) {
			return nil, apperr.InvalidState(fmt.Sprintf("habit %q is missing from the catalog", h.Name))
		}
		if err != nil {
			return nil, apperr.Internal("failed to load habit", err)
		}
		habits = append(habits, habit)
	}

	var goals []*model.Goal
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		goals = goals[:0]

		for _, habit := range habits {
			goal, err := s.ensureHealthGoal(ctx, repo, userID, habit)
			if err != nil {
				return err
			}
			goals = append(goals, goal)
		}
		return nil
	})
	if errors.Is(err, repository.ErrDuplicateHealthGoal) {
		return nil, apperr.Conflict("health goals are being provisioned concurrently, retry")
	}
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.Internal("failed to enable health goals", err)
	}

	slog.Info("health goals enabled", "user_id", userID, "count", len(goals))
	return goals, nil
}

func (s *GoalService) ensureHealthGoal(ctx context.Context, repo repository.GoalRepository, userID string, habit *model.Habit) (*model.Goal, error) {
	existing, err := repo.LockByHabit(ctx, userID, habit.ID)
	if err != nil {
		return nil, err
	}

	for _, goal := range existing {
		if goal.UsesHealthTracking {
			return goal, nil
		}
	}

	if len(existing) > 0 {
		goal := existing[0]
		goal.UsesHealthTracking = true
		goal.HealthMetric = nil
		if goal.TargetValue != nil && *goal.TargetValue <= 0 {
			goal.TargetValue = nil
		}
		applyHealthDefaults(goal, habit, true)
		err = repo.Update(ctx, goal)
		if err != nil {
			return nil, err
		}
		return goal, nil
	}

	now := time.Now()
	goal := &model.Goal{
		ID:                 uuid.New().String(),
		UserID:             userID,
		HabitID:            habit.ID,
		UsesHealthTracking: true,
		CreatedAt:          now,
		UpdatedAt:          now,
		HabitName:          habit.Name,
	}
	applyHealthDefaults(goal, habit, true)
	goal.GoalText = fmt.Sprintf("Reach %s %s each day", formatTarget(*goal.TargetValue), *goal.TargetUnit)

	err = repo.Create(ctx, goal)
	if err != nil {
		return nil, err
	}
	return goal, nil
}

func (s *GoalService) habit(ctx context.Context, habitID string) (*model.Habit, error) {
	return loadHabit(ctx, s.habits, habitID)
}

func loadHabit(ctx context.Context, habits repository.HabitRepository, habitID string) (*model.Habit, error) {
	habit, err := habits.ByID(ctx, habitID)
	if errors.Is(err, repository.ErrHabitNotFound) {
		return nil, apperr.NotFound("habit not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load habit", err)
	}
	return habit, nil
}

// applyHabitDefaults fills target and unit from the habit's catalog defaults
func applyHabitDefaults(goal *model.Goal, habit *model.Habit) {
	if goal.UsesHealthTracking {
		applyHealthDefaults(goal, habit, true)
		return
	}
	if goal.TargetValue == nil && habit.DefaultTarget != nil {
		target := *habit.DefaultTarget
		goal.TargetValue = &target
	}
	if goal.TargetUnit == nil && habit.DefaultUnit != nil {
		unit := *habit.DefaultUnit
		goal.TargetUnit = &unit
	}
}

// applyHealthDefaults falls back to the habit's metric and the metric's unit.
// With fillTarget it also uses the habit's default target when the metric matches.
func applyHealthDefaults(goal *model.Goal, habit *model.Habit, fillTarget bool) {
	if goal.HealthMetric == nil && habit.HealthMetric != nil {
		metric := *habit.HealthMetric
		goal.HealthMetric = &metric
	}
	if goal.HealthMetric == nil {
		return
	}

	sameMetric := habit.HealthMetric != nil && *habit.HealthMetric == *goal.HealthMetric
	if fillTarget && goal.TargetValue == nil && sameMetric && habit.DefaultTarget != nil {
		target := *habit.DefaultTarget
		goal.TargetValue = &target
	}
	if goal.TargetUnit == nil && catalog.ValidMetric(*goal.HealthMetric) {
		unit := catalog.MetricUnit(*goal.HealthMetric)
		goal.TargetUnit = &unit
	}
}

func validateGoal(goal *model.Goal) error {
	if goal.XP < 0 {
		return apperr.BadRequest("xp must be zero or greater")
	}
	if goal.TargetValue != nil {
		v := *goal.TargetValue
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.BadRequest("target_value must be a finite number")
		}
		if v < 0 {
			return apperr.BadRequest("target_value must be zero or greater")
		}
	}
	if goal.HealthMetric != nil && !catalog.ValidMetric(*goal.HealthMetric) {
		return apperr.BadRequest("health_metric must be one of %s", strings.Join(catalog.Metrics, ", "))
	}
	if goal.UsesHealthTracking {
		if goal.HealthMetric == nil {
			return apperr.BadRequest("health_metric is required when uses_health_tracking is true")
		}
		if goal.TargetValue == nil {
			return apperr.BadRequest("target_value is required when uses_health_tracking is true")
		}
	}
	return nil
}

// trimmed returns nil for nil or blank strings
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func formatTarget(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
