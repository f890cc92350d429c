package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// WithTx runs fn inside a transaction. The transaction is rolled back when fn
// returns an error or panics, and committed otherwise.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = fn(tx)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsPostgres reports whether the sqlx driver name targets Postgres
func IsPostgres(driverName string) bool {
	return driverName == "pgx" || driverName == "postgres"
}

// ForUpdate returns the row lock clause for drivers that support it.
// SQLite serializes writers at the transaction level instead (_txlock=immediate).
func ForUpdate(driverName string) string {
	if IsPostgres(driverName) {
		return " FOR UPDATE"
	}
	return ""
}

// ForUpdateOf locks only the rows of the aliased table in a joined select
func ForUpdateOf(driverName, alias string) string {
	if IsPostgres(driverName) {
		return " FOR UPDATE OF " + alias
	}
	return ""
}

// IsUniqueViolation reports whether err comes from a unique constraint
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
