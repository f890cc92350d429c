package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/model"
)

var (
	ErrJournalEntryNotFound = errors.New("journal entry not found")
)

type JournalEntryRepository interface {
	Ensure(ctx context.Context, entry *model.JournalEntry) (bool, error)
	LockForDay(ctx context.Context, userID, goalID, day string) (*model.JournalEntry, error)
	UpdateScore(ctx context.Context, entry *model.JournalEntry) error
	ByID(ctx context.Context, userID, entryID string) (*model.JournalEntry, error)
	Entries(ctx context.Context, userID string, filter model.JournalFilter) ([]*model.JournalEntry, error)
	Delete(ctx context.Context, userID, entryID string) error
	WithTx(tx *sqlx.Tx) JournalEntryRepository
}

type journalEntryRepository struct {
	db sqlx.ExtContext
}

func NewJournalEntryRepository(db *sqlx.DB) JournalEntryRepository {
	return &journalEntryRepository{db: db}
}

func (r *journalEntryRepository) WithTx(tx *sqlx.Tx) JournalEntryRepository {
	return &journalEntryRepository{db: tx}
}

const journalColumns = `id, user_id, goal_id, entry_date, reflection, value, value_unit, completion_level, xp_delta, created_at, updated_at`

// Ensure inserts the entry for its (user, goal, day) unless one already exists.
// It reports whether a new row was created.
func (r *journalEntryRepository) Ensure(ctx context.Context, entry *model.JournalEntry) (bool, error) {
	query := `INSERT INTO journal_entries (` + journalColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          ON CONFLICT (user_id, goal_id, entry_date) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.GoalID,
		entry.EntryDate,
		entry.Reflection,
		entry.Value,
		entry.ValueUnit,
		entry.CompletionLevel,
		entry.XPDelta,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// LockForDay reads the entry for (user, goal, day), holding a row lock until the
// surrounding transaction ends on drivers that support it
func (r *journalEntryRepository) LockForDay(ctx context.Context, userID, goalID, day string) (*model.JournalEntry, error) {
	entry := &model.JournalEntry{}
	query := `SELECT ` + journalColumns + ` FROM journal_entries
	          WHERE user_id = $1 AND goal_id = $2 AND entry_date = $3` + db.ForUpdate(r.db.DriverName())

	err := sqlx.GetContext(ctx, r.db, entry, query, userID, goalID, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJournalEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *journalEntryRepository) UpdateScore(ctx context.Context, entry *model.JournalEntry) error {
	query := `UPDATE journal_entries
	          SET reflection = $1, value = $2, value_unit = $3, completion_level = $4, xp_delta = $5, updated_at = $6
	          WHERE id = $7 AND user_id = $8`

	entry.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		entry.Reflection,
		entry.Value,
		entry.ValueUnit,
		entry.CompletionLevel,
		entry.XPDelta,
		entry.UpdatedAt,
		entry.ID,
		entry.UserID,
	)
	if err != nil {
		return err
	}

	return requireRows(result, ErrJournalEntryNotFound)
}

func (r *journalEntryRepository) ByID(ctx context.Context, userID, entryID string) (*model.JournalEntry, error) {
	entry := &model.JournalEntry{}
	query := `SELECT ` + journalColumns + ` FROM journal_entries WHERE id = $1 AND user_id = $2` + db.ForUpdate(r.db.DriverName())

	err := sqlx.GetContext(ctx, r.db, entry, query, entryID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJournalEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Entries lists a user's entries, newest day first, joined with goal and habit names
func (r *journalEntryRepository) Entries(ctx context.Context, userID string, filter model.JournalFilter) ([]*model.JournalEntry, error) {
	var (
		where = []string{"je.user_id = $1"}
		args  = []any{userID}
	)

	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if filter.GoalID != "" {
		add("je.goal_id = ?", filter.GoalID)
	}
	if filter.From != "" {
		add("je.entry_date >= ?", filter.From)
	}
	if filter.To != "" {
		add("je.entry_date <= ?", filter.To)
	}
	args = append(args, filter.Limit)

	query := `SELECT je.id, je.user_id, je.goal_id, je.entry_date, je.reflection, je.value, je.value_unit,
	                 je.completion_level, je.xp_delta, je.created_at, je.updated_at,
	                 g.goal_text AS goal_text, g.xp AS goal_xp, h.name AS habit_name
	          FROM journal_entries je
	          JOIN goals g ON g.id = je.goal_id
	          JOIN habits h ON h.id = g.habit_id
	          WHERE ` + strings.Join(where, " AND ") + `
	          ORDER BY je.entry_date DESC, je.created_at DESC
	          LIMIT $` + strconv.Itoa(len(args))

	var entries []*model.JournalEntry
	err := sqlx.SelectContext(ctx, r.db, &entries, query, args...)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *journalEntryRepository) Delete(ctx context.Context, userID, entryID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`, entryID, userID)
	if err != nil {
		return err
	}

	return requireRows(result, ErrJournalEntryNotFound)
}
