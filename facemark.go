package faceset

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/msomdec/faceset/internal/sqlite"
)

// FaceMark is an annotation linking one detected face to an image and,
// optionally, a person. Geometry holds landmark/geometry data the store
// never interprets. ImageUUID and PersonUUID are weak references: they
// are persisted and returned verbatim without existence checks.
type FaceMark struct {
	UUID       uuid.UUID
	ImageUUID  *uuid.UUID
	PersonUUID *uuid.UUID
	Geometry   []byte
}

// Face-mark rows persist as a tagged binary record:
//
//	version byte | uuid [16] | flags byte | [image uuid 16] |
//	[person uuid 16] | uvarint geometry length | geometry bytes
//
// The layout is fixed; any change bumps the version byte.
const faceMarkRecordVersion = 1

const (
	flagImageRef  = 1 << 0
	flagPersonRef = 1 << 1
)

func (fm *FaceMark) encodeRecord() []byte {
	buf := make([]byte, 0, 2+3*16+binary.MaxVarintLen64+len(fm.Geometry))
	buf = append(buf, faceMarkRecordVersion)
	buf = append(buf, fm.UUID[:]...)

	var flags byte
	if fm.ImageUUID != nil {
		flags |= flagImageRef
	}
	if fm.PersonUUID != nil {
		flags |= flagPersonRef
	}
	buf = append(buf, flags)

	if fm.ImageUUID != nil {
		buf = append(buf, fm.ImageUUID[:]...)
	}
	if fm.PersonUUID != nil {
		buf = append(buf, fm.PersonUUID[:]...)
	}

	buf = binary.AppendUvarint(buf, uint64(len(fm.Geometry)))
	buf = append(buf, fm.Geometry...)
	return buf
}

func decodeFaceMarkRecord(data []byte) (*FaceMark, error) {
	if len(data) < 1+16+1 {
		return nil, errors.New("short buffer for record header")
	}
	if data[0] != faceMarkRecordVersion {
		return nil, fmt.Errorf("unsupported record version %d", data[0])
	}
	data = data[1:]

	fm := &FaceMark{}
	copy(fm.UUID[:], data[:16])
	flags := data[16]
	data = data[17:]

	if flags&flagImageRef != 0 {
		if len(data) < 16 {
			return nil, errors.New("short buffer for image reference")
		}
		var ref uuid.UUID
		copy(ref[:], data[:16])
		fm.ImageUUID = &ref
		data = data[16:]
	}
	if flags&flagPersonRef != 0 {
		if len(data) < 16 {
			return nil, errors.New("short buffer for person reference")
		}
		var ref uuid.UUID
		copy(ref[:], data[:16])
		fm.PersonUUID = &ref
		data = data[16:]
	}

	n, read := binary.Uvarint(data)
	if read <= 0 {
		return nil, errors.New("invalid geometry length")
	}
	data = data[read:]
	if uint64(len(data)) < n {
		return nil, errors.New("short buffer for geometry")
	}
	fm.Geometry = bytes.Clone(data[:n])
	return fm, nil
}

// faceMarkFromRow decodes a stored row, cross-checking the record's UUID
// against the indexed column.
func faceMarkFromRow(row sqlite.FaceMarkRow) (*FaceMark, error) {
	fm, err := decodeFaceMarkRecord(row.Record)
	if err != nil {
		return nil, corruptRecordError(row.UUID, err)
	}
	if len(row.UUID) == 16 && !bytes.Equal(fm.UUID[:], row.UUID) {
		return nil, corruptRecordError(row.UUID, errors.New("record uuid does not match row uuid"))
	}
	return fm, nil
}

func corruptRecordError(rowUUID []byte, err error) error {
	return fmt.Errorf("face mark %s: %w: %w", uuidLabel(rowUUID), ErrCorruptRecord, err)
}

func uuidLabel(b []byte) string {
	if u, err := uuid.FromBytes(b); err == nil {
		return u.String()
	}
	return fmt.Sprintf("%x", b)
}

// UpsertFaceMark inserts the face mark or updates it in place if its
// UUID already exists. The write is all-or-nothing.
func (fs *Faceset) UpsertFaceMark(ctx context.Context, fm *FaceMark) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	row := sqlite.FaceMarkRow{UUID: fm.UUID[:], Record: fm.encodeRecord()}
	if fm.ImageUUID != nil {
		row.ImageUUID = fm.ImageUUID[:]
	}
	if fm.PersonUUID != nil {
		row.PersonUUID = fm.PersonUUID[:]
	}

	if err := fs.marks.Upsert(ctx, row); err != nil {
		return storageError("upsert face mark", err)
	}
	return nil
}

// FaceMarkCount returns the number of stored face marks.
func (fs *Faceset) FaceMarkCount(ctx context.Context) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return 0, ErrClosed
	}

	n, err := fs.marks.Count(ctx)
	if err != nil {
		return 0, storageError("count face marks", err)
	}
	return n, nil
}

// AllFaceMarks returns every stored face mark. It fails on the first
// record that cannot be deserialized.
func (fs *Faceset) AllFaceMarks(ctx context.Context) ([]*FaceMark, error) {
	rows, err := fs.fetchFaceMarkRows(ctx)
	if err != nil {
		return nil, err
	}

	marks := make([]*FaceMark, 0, len(rows))
	for _, row := range rows {
		fm, err := faceMarkFromRow(row)
		if err != nil {
			return nil, err
		}
		marks = append(marks, fm)
	}
	return marks, nil
}

// IterFaceMarks returns an iterator over all face marks. The result set
// is snapshotted when IterFaceMarks is called; records are deserialized
// lazily during iteration. A corrupt record is yielded as an error and
// ends the sequence.
func (fs *Faceset) IterFaceMarks(ctx context.Context) iter.Seq2[*FaceMark, error] {
	rows, err := fs.fetchFaceMarkRows(ctx)
	return func(yield func(*FaceMark, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			fm, derr := faceMarkFromRow(row)
			if derr != nil {
				yield(nil, derr)
				return
			}
			if !yield(fm, nil) {
				return
			}
		}
	}
}

func (fs *Faceset) fetchFaceMarkRows(ctx context.Context) ([]sqlite.FaceMarkRow, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return nil, ErrClosed
	}

	rows, err := fs.marks.All(ctx)
	if err != nil {
		return nil, storageError("list face marks", err)
	}
	return rows, nil
}

// DeleteFaceMark removes the face mark with the given UUID. Deleting an
// absent UUID is a no-op.
func (fs *Faceset) DeleteFaceMark(ctx context.Context, id uuid.UUID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	if err := fs.marks.Delete(ctx, id[:]); err != nil {
		return storageError("delete face mark", err)
	}
	return nil
}

// DeleteAllFaceMarks removes every face mark in one transaction.
func (fs *Faceset) DeleteAllFaceMarks(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	if err := fs.marks.DeleteAll(ctx); err != nil {
		return storageError("delete all face marks", err)
	}
	return nil
}
