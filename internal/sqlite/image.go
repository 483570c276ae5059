package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ImageRow is the raw UImage table row; Data holds the encoded bytes for
// the recorded Format.
type ImageRow struct {
	UUID   []byte
	Name   sql.NullString
	Format string
	Data   []byte
}

// ImageRepo implements UImage table access.
type ImageRepo struct {
	db *sql.DB
}

// Upsert inserts the row or updates it in place if the UUID exists.
func (r *ImageRepo) Upsert(ctx context.Context, row ImageRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM UImage WHERE uuid=?", row.UUID,
	).Scan(&count); err != nil {
		return fmt.Errorf("check image existence: %w", err)
	}

	if count != 0 {
		_, err = tx.ExecContext(ctx,
			"UPDATE UImage SET name=?, format=?, data=? WHERE uuid=?",
			row.Name, row.Format, row.Data, row.UUID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO UImage VALUES (?, ?, ?, ?)",
			row.UUID, row.Name, row.Format, row.Data)
	}
	if err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	return tx.Commit()
}

// ByUUID returns the row with the given UUID, or nil when absent.
func (r *ImageRepo) ByUUID(ctx context.Context, uuid []byte) (*ImageRow, error) {
	row := &ImageRow{}
	err := r.db.QueryRowContext(ctx,
		"SELECT uuid, name, format, data FROM UImage WHERE uuid=?", uuid,
	).Scan(&row.UUID, &row.Name, &row.Format, &row.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get image: %w", err)
	}
	return row, nil
}

// Count returns the number of image rows.
func (r *ImageRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM UImage").Scan(&count); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}

// All returns every image row in table order. Data is the encoded bytes
// at rest; decoding is the caller's concern.
func (r *ImageRepo) All(ctx context.Context) ([]ImageRow, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT uuid, name, format, data FROM UImage")
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var result []ImageRow
	for rows.Next() {
		var row ImageRow
		if err := rows.Scan(&row.UUID, &row.Name, &row.Format, &row.Data); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// DeleteAll removes every image row in one transaction. Face marks
// referencing deleted images are left untouched.
func (r *ImageRepo) DeleteAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM UImage"); err != nil {
		return fmt.Errorf("delete all images: %w", err)
	}
	return tx.Commit()
}
