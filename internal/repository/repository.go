package repository

import "database/sql"

// requireRows maps a zero-row write to notFound
func requireRows(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return notFound
	}

	return nil
}
