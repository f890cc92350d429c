package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/model"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
)

type HabitRepository interface {
	Upsert(ctx context.Context, habit *model.Habit) error
	ByID(ctx context.Context, id string) (*model.Habit, error)
	ByName(ctx context.Context, name string) (*model.Habit, error)
	Habits(ctx context.Context) ([]*model.Habit, error)
	WithTx(tx *sqlx.Tx) HabitRepository
}

type habitRepository struct {
	db sqlx.ExtContext
}

func NewHabitRepository(db *sqlx.DB) HabitRepository {
	return &habitRepository{db: db}
}

func (r *habitRepository) WithTx(tx *sqlx.Tx) HabitRepository {
	return &habitRepository{db: tx}
}

// Upsert inserts a catalog habit or refreshes its metadata, keeping the existing id
func (r *habitRepository) Upsert(ctx context.Context, habit *model.Habit) error {
	query := `INSERT INTO habits (id, name, description, default_unit, default_target, health_metric, quantitative, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (name) DO UPDATE SET
	              description = excluded.description,
	              default_unit = excluded.default_unit,
	              default_target = excluded.default_target,
	              health_metric = excluded.health_metric,
	              quantitative = excluded.quantitative`

	_, err := r.db.ExecContext(ctx, query,
		habit.ID,
		habit.Name,
		habit.Description,
		habit.DefaultUnit,
		habit.DefaultTarget,
		habit.HealthMetric,
		habit.Quantitative,
		habit.CreatedAt,
	)
	return err
}

func (r *habitRepository) ByID(ctx context.Context, id string) (*model.Habit, error) {
	habit := &model.Habit{}
	err := sqlx.GetContext(ctx, r.db, habit, `SELECT * FROM habits WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHabitNotFound
	}
	if err != nil {
		return nil, err
	}
	return habit, nil
}

func (r *habitRepository) ByName(ctx context.Context, name string) (*model.Habit, error) {
	habit := &model.Habit{}
	err := sqlx.GetContext(ctx, r.db, habit, `SELECT * FROM habits WHERE LOWER(name) = LOWER($1)`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHabitNotFound
	}
	if err != nil {
		return nil, err
	}
	return habit, nil
}

func (r *habitRepository) Habits(ctx context.Context) ([]*model.Habit, error) {
	var habits []*model.Habit
	err := sqlx.SelectContext(ctx, r.db, &habits, `SELECT * FROM habits ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return habits, nil
}
