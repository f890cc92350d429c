package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/model"
)

var (
	ErrGoalNotFound        = errors.New("goal not found")
	ErrDuplicateHealthGoal = errors.New("habit already has a health-tracked goal")
)

type GoalRepository interface {
	Create(ctx context.Context, goal *model.Goal) error
	ByID(ctx context.Context, userID, goalID string) (*model.Goal, error)
	Goals(ctx context.Context, userID string) ([]*model.Goal, error)
	HealthTracked(ctx context.Context, userID string) ([]*model.Goal, error)
	LockByID(ctx context.Context, userID, goalID string) (*model.Goal, error)
	LockByHabit(ctx context.Context, userID, habitID string) ([]*model.Goal, error)
	Update(ctx context.Context, goal *model.Goal) error
	SetXP(ctx context.Context, userID, goalID string, xp int) error
	AddXP(ctx context.Context, userID, goalID string, delta int) (int, error)
	Delete(ctx context.Context, userID, goalID string) error
	WithTx(tx *sqlx.Tx) GoalRepository
}

type goalRepository struct {
	db sqlx.ExtContext
}

func NewGoalRepository(db *sqlx.DB) GoalRepository {
	return &goalRepository{db: db}
}

func (r *goalRepository) WithTx(tx *sqlx.Tx) GoalRepository {
	return &goalRepository{db: tx}
}

const goalSelect = `SELECT g.*, h.name AS habit_name FROM goals g JOIN habits h ON h.id = g.habit_id`

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	query := `INSERT INTO goals (id, user_id, habit_id, goal_text, xp, completed, uses_health_tracking, health_metric, target_value, target_unit, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		goal.ID,
		goal.UserID,
		goal.HabitID,
		goal.GoalText,
		goal.XP,
		goal.Completed,
		goal.UsesHealthTracking,
		goal.HealthMetric,
		goal.TargetValue,
		goal.TargetUnit,
		goal.CreatedAt,
		goal.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateHealthGoal
	}
	return err
}

func (r *goalRepository) ByID(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	return r.byID(ctx, goalSelect+` WHERE g.id = $1 AND g.user_id = $2`, userID, goalID)
}

// LockByID reads the goal and holds its row lock until the surrounding
// transaction ends on drivers that support it
func (r *goalRepository) LockByID(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	query := goalSelect + ` WHERE g.id = $1 AND g.user_id = $2` + db.ForUpdateOf(r.db.DriverName(), "g")
	return r.byID(ctx, query, userID, goalID)
}

func (r *goalRepository) byID(ctx context.Context, query, userID, goalID string) (*model.Goal, error) {
	goal := &model.Goal{}
	err := sqlx.GetContext(ctx, r.db, goal, query, goalID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}

	return goal, nil
}

func (r *goalRepository) Goals(ctx context.Context, userID string) ([]*model.Goal, error) {
	return r.list(ctx, goalSelect+` WHERE g.user_id = $1 ORDER BY g.created_at DESC, g.id ASC`, userID)
}

func (r *goalRepository) HealthTracked(ctx context.Context, userID string) ([]*model.Goal, error) {
	query := goalSelect + ` WHERE g.user_id = $1 AND g.uses_health_tracking = TRUE AND g.health_metric IS NOT NULL
	          ORDER BY g.created_at ASC, g.id ASC`
	return r.list(ctx, query, userID)
}

// LockByHabit lists the user's goals on a habit, oldest first, holding their row locks
func (r *goalRepository) LockByHabit(ctx context.Context, userID, habitID string) ([]*model.Goal, error) {
	query := goalSelect + ` WHERE g.user_id = $1 AND g.habit_id = $2 ORDER BY g.created_at ASC, g.id ASC` +
		db.ForUpdateOf(r.db.DriverName(), "g")
	return r.list(ctx, query, userID, habitID)
}

func (r *goalRepository) list(ctx context.Context, query string, args ...any) ([]*model.Goal, error) {
	var goals []*model.Goal

	err := sqlx.SelectContext(ctx, r.db, &goals, query, args...)
	if err != nil {
		return nil, err
	}

	return goals, nil
}

// Update writes the goal's editable fields. XP only moves through AddXP and SetXP.
func (r *goalRepository) Update(ctx context.Context, goal *model.Goal) error {
	query := `UPDATE goals
	          SET habit_id = $1, goal_text = $2, completed = $3, uses_health_tracking = $4,
	              health_metric = $5, target_value = $6, target_unit = $7, updated_at = $8
	          WHERE id = $9 AND user_id = $10`

	goal.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		goal.HabitID,
		goal.GoalText,
		goal.Completed,
		goal.UsesHealthTracking,
		goal.HealthMetric,
		goal.TargetValue,
		goal.TargetUnit,
		goal.UpdatedAt,
		goal.ID,
		goal.UserID,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateHealthGoal
		}
		return err
	}

	return requireRows(result, ErrGoalNotFound)
}

// AddXP applies delta to the goal's running total in one statement, flooring at zero,
// and returns the new total
func (r *goalRepository) AddXP(ctx context.Context, userID, goalID string, delta int) (int, error) {
	query := `UPDATE goals
	          SET xp = CASE WHEN xp + $1 < 0 THEN 0 ELSE xp + $1 END, updated_at = $2
	          WHERE id = $3 AND user_id = $4
	          RETURNING xp`

	var xp int
	err := sqlx.GetContext(ctx, r.db, &xp, query, delta, time.Now(), goalID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrGoalNotFound
	}
	if err != nil {
		return 0, err
	}

	return xp, nil
}

// SetXP overwrites the goal's running total
func (r *goalRepository) SetXP(ctx context.Context, userID, goalID string, xp int) error {
	query := `UPDATE goals SET xp = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`
	result, err := r.db.ExecContext(ctx, query, xp, time.Now(), goalID, userID)
	if err != nil {
		return err
	}

	return requireRows(result, ErrGoalNotFound)
}

func (r *goalRepository) Delete(ctx context.Context, userID, goalID string) error {
	query := `DELETE FROM goals WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, goalID, userID)
	if err != nil {
		return err
	}

	return requireRows(result, ErrGoalNotFound)
}
