package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// FaceMarkRow is the raw UFaceMark table row. ImageUUID and PersonUUID
// are nil when the corresponding column is NULL.
type FaceMarkRow struct {
	UUID       []byte
	ImageUUID  []byte
	PersonUUID []byte
	Record     []byte
}

// FaceMarkRepo implements UFaceMark table access.
type FaceMarkRepo struct {
	db *sql.DB
}

// Upsert inserts the row or updates it in place if the UUID exists. The
// existence check and the write run in one immediate-lock transaction.
func (r *FaceMarkRepo) Upsert(ctx context.Context, row FaceMarkRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM UFaceMark WHERE uuid=?", row.UUID,
	).Scan(&count); err != nil {
		return fmt.Errorf("check face mark existence: %w", err)
	}

	if count != 0 {
		_, err = tx.ExecContext(ctx,
			"UPDATE UFaceMark SET UImage_uuid=?, UPerson_uuid=?, pickled_bytes=? WHERE uuid=?",
			row.ImageUUID, row.PersonUUID, row.Record, row.UUID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO UFaceMark VALUES (?, ?, ?, ?)",
			row.UUID, row.ImageUUID, row.PersonUUID, row.Record)
	}
	if err != nil {
		return fmt.Errorf("write face mark: %w", err)
	}

	return tx.Commit()
}

// Count returns the number of face-mark rows.
func (r *FaceMarkRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM UFaceMark").Scan(&count); err != nil {
		return 0, fmt.Errorf("count face marks: %w", err)
	}
	return count, nil
}

// All returns every face-mark row in table order.
func (r *FaceMarkRepo) All(ctx context.Context) ([]FaceMarkRow, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT uuid, UImage_uuid, UPerson_uuid, pickled_bytes FROM UFaceMark")
	if err != nil {
		return nil, fmt.Errorf("list face marks: %w", err)
	}
	defer rows.Close()

	var result []FaceMarkRow
	for rows.Next() {
		var row FaceMarkRow
		if err := rows.Scan(&row.UUID, &row.ImageUUID, &row.PersonUUID, &row.Record); err != nil {
			return nil, fmt.Errorf("scan face mark: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Delete removes the row with the given UUID. Deleting an absent row is
// a no-op.
func (r *FaceMarkRepo) Delete(ctx context.Context, uuid []byte) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM UFaceMark WHERE uuid=?", uuid); err != nil {
		return fmt.Errorf("delete face mark: %w", err)
	}
	return nil
}

// DeleteAll removes every face-mark row in one transaction.
func (r *FaceMarkRepo) DeleteAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM UFaceMark"); err != nil {
		return fmt.Errorf("delete all face marks: %w", err)
	}
	return tx.Commit()
}

// DanglingRef pairs a face mark with a referenced UUID that resolves to
// no row in the target table.
type DanglingRef struct {
	FaceMarkUUID []byte
	TargetUUID   []byte
}

// DanglingImageRefs returns face marks whose UImage_uuid matches no
// stored image.
func (r *FaceMarkRepo) DanglingImageRefs(ctx context.Context) ([]DanglingRef, error) {
	return r.danglingRefs(ctx,
		`SELECT fm.uuid, fm.UImage_uuid FROM UFaceMark fm
		 LEFT JOIN UImage img ON fm.UImage_uuid = img.uuid
		 WHERE fm.UImage_uuid IS NOT NULL AND img.uuid IS NULL`)
}

// DanglingPersonRefs returns face marks whose UPerson_uuid matches no
// stored person.
func (r *FaceMarkRepo) DanglingPersonRefs(ctx context.Context) ([]DanglingRef, error) {
	return r.danglingRefs(ctx,
		`SELECT fm.uuid, fm.UPerson_uuid FROM UFaceMark fm
		 LEFT JOIN UPerson p ON fm.UPerson_uuid = p.uuid
		 WHERE fm.UPerson_uuid IS NOT NULL AND p.uuid IS NULL`)
}

func (r *FaceMarkRepo) danglingRefs(ctx context.Context, query string) ([]DanglingRef, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dangling references: %w", err)
	}
	defer rows.Close()

	var refs []DanglingRef
	for rows.Next() {
		var ref DanglingRef
		if err := rows.Scan(&ref.FaceMarkUUID, &ref.TargetUUID); err != nil {
			return nil, fmt.Errorf("scan dangling reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
