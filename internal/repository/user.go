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
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByGoogleSub(ctx context.Context, sub string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, google_sub, email, name, bio, picture, level, streak, onboarded, theme, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.GoogleSub,
		user.Email,
		user.Name,
		user.Bio,
		user.Picture,
		user.Level,
		user.Streak,
		user.Onboarded,
		user.Theme,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// Check for unique constraint violation (works for both SQLite and PostgreSQL)
		if db.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	return r.one(ctx, `SELECT * FROM users WHERE id = $1`, id)
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.one(ctx, `SELECT * FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *userRepository) ByGoogleSub(ctx context.Context, sub string) (*model.User, error) {
	return r.one(ctx, `SELECT * FROM users WHERE google_sub = $1`, sub)
}

func (r *userRepository) one(ctx context.Context, query string, args ...any) (*model.User, error) {
	user := &model.User{}
	err := sqlx.GetContext(ctx, r.db, user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE users
	          SET google_sub = $1, email = $2, name = $3, bio = $4, picture = $5,
	              level = $6, streak = $7, onboarded = $8, theme = $9, updated_at = $10
	          WHERE id = $11`

	user.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		user.GoogleSub,
		user.Email,
		user.Name,
		user.Bio,
		user.Picture,
		user.Level,
		user.Streak,
		user.Onboarded,
		user.Theme,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	return requireRows(result, ErrUserNotFound)
}
