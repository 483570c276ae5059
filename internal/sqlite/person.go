package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// PersonRow is the raw UPerson table row. Name and Age are nullable:
// files written by other tooling may carry NULLs in either column.
type PersonRow struct {
	UUID []byte
	Name sql.NullString
	Age  sql.NullFloat64
}

// PersonRepo implements UPerson table access.
type PersonRepo struct {
	db *sql.DB
}

// Upsert inserts the row or updates it in place if the UUID exists.
func (r *PersonRepo) Upsert(ctx context.Context, row PersonRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM UPerson WHERE uuid=?", row.UUID,
	).Scan(&count); err != nil {
		return fmt.Errorf("check person existence: %w", err)
	}

	if count != 0 {
		_, err = tx.ExecContext(ctx,
			"UPDATE UPerson SET name=?, age=? WHERE uuid=?",
			row.Name, row.Age, row.UUID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO UPerson VALUES (?, ?, ?)",
			row.UUID, row.Name, row.Age)
	}
	if err != nil {
		return fmt.Errorf("write person: %w", err)
	}

	return tx.Commit()
}

// Count returns the number of person rows.
func (r *PersonRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM UPerson").Scan(&count); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return count, nil
}

// All returns every person row in table order.
func (r *PersonRepo) All(ctx context.Context) ([]PersonRow, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT uuid, name, age FROM UPerson")
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var result []PersonRow
	for rows.Next() {
		var row PersonRow
		if err := rows.Scan(&row.UUID, &row.Name, &row.Age); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Delete removes the row with the given UUID. Deleting an absent row is
// a no-op.
func (r *PersonRepo) Delete(ctx context.Context, uuid []byte) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM UPerson WHERE uuid=?", uuid); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return nil
}

// DeleteAll removes every person row in one transaction.
func (r *PersonRepo) DeleteAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM UPerson"); err != nil {
		return fmt.Errorf("delete all persons: %w", err)
	}
	return tx.Commit()
}
