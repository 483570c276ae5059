package faceset

import (
	"context"
	"database/sql"
	"iter"

	"github.com/google/uuid"

	"github.com/msomdec/faceset/internal/sqlite"
)

// Person is a named identity. Age may be fractional and is nil when
// unknown.
type Person struct {
	UUID uuid.UUID
	Name string
	Age  *float64
}

func personFromRow(row sqlite.PersonRow) *Person {
	p := &Person{Name: row.Name.String}
	copy(p.UUID[:], row.UUID)
	if row.Age.Valid {
		age := row.Age.Float64
		p.Age = &age
	}
	return p
}

// UpsertPerson inserts the person or updates it in place if its UUID
// already exists. The write is all-or-nothing.
func (fs *Faceset) UpsertPerson(ctx context.Context, p *Person) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	row := sqlite.PersonRow{
		UUID: p.UUID[:],
		Name: sql.NullString{String: p.Name, Valid: true},
	}
	if p.Age != nil {
		row.Age = sql.NullFloat64{Float64: *p.Age, Valid: true}
	}

	if err := fs.persons.Upsert(ctx, row); err != nil {
		return storageError("upsert person", err)
	}
	return nil
}

// PersonCount returns the number of stored persons.
func (fs *Faceset) PersonCount(ctx context.Context) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return 0, ErrClosed
	}

	n, err := fs.persons.Count(ctx)
	if err != nil {
		return 0, storageError("count persons", err)
	}
	return n, nil
}

// AllPersons returns every stored person.
func (fs *Faceset) AllPersons(ctx context.Context) ([]*Person, error) {
	rows, err := fs.fetchPersonRows(ctx)
	if err != nil {
		return nil, err
	}

	persons := make([]*Person, 0, len(rows))
	for _, row := range rows {
		persons = append(persons, personFromRow(row))
	}
	return persons, nil
}

// IterPersons returns an iterator over all persons. The result set is
// snapshotted when IterPersons is called.
func (fs *Faceset) IterPersons(ctx context.Context) iter.Seq2[*Person, error] {
	rows, err := fs.fetchPersonRows(ctx)
	return func(yield func(*Person, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			if !yield(personFromRow(row), nil) {
				return
			}
		}
	}
}

func (fs *Faceset) fetchPersonRows(ctx context.Context) ([]sqlite.PersonRow, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return nil, ErrClosed
	}

	rows, err := fs.persons.All(ctx)
	if err != nil {
		return nil, storageError("list persons", err)
	}
	return rows, nil
}

// DeletePerson removes the person with the given UUID. Deleting an
// absent UUID is a no-op. Face marks referencing the person keep their
// reference.
func (fs *Faceset) DeletePerson(ctx context.Context, id uuid.UUID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	if err := fs.persons.Delete(ctx, id[:]); err != nil {
		return storageError("delete person", err)
	}
	return nil
}

// DeleteAllPersons removes every person in one transaction.
func (fs *Faceset) DeleteAllPersons(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	if err := fs.persons.DeleteAll(ctx); err != nil {
		return storageError("delete all persons", err)
	}
	return nil
}
