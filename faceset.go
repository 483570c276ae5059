package faceset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/msomdec/faceset/internal/sqlite"
)

// Suffix is the required extension of a faceset file.
const Suffix = ".dfs"

// FormatVersion is the schema version stamp written to new files.
const FormatVersion = sqlite.FormatVersion

const defaultBusyTimeout = 5 * time.Second

// Option configures Open.
type Option func(*config)

type config struct {
	busyTimeout time.Duration
}

// WithBusyTimeout sets how long a write waits on another process's lock
// before failing. The default is five seconds.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *config) { c.busyTimeout = d }
}

// Faceset is an open handle to a .dfs file. It owns the file's single
// connection for its lifetime; methods are safe for concurrent use from
// multiple goroutines but serialize on an internal mutex.
type Faceset struct {
	mu   sync.Mutex
	path string

	// db is nil after Close; every method checks it under mu.
	db      *sqlite.DB
	marks   *sqlite.FaceMarkRepo
	persons *sqlite.PersonRepo
	images  *sqlite.ImageRepo
}

// Open opens the faceset at path, creating the file if absent. If the
// file exists but lacks the faceset schema it is destructively reset to
// an empty store; an existing valid file is opened as-is.
func Open(path string, opts ...Option) (*Faceset, error) {
	if filepath.Ext(path) != Suffix {
		return nil, fmt.Errorf("%w: %q must have the %s suffix", ErrInvalidPath, path, Suffix)
	}

	cfg := config{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sqlite.Open(path, cfg.busyTimeout)
	if err != nil {
		return nil, storageError("open faceset", err)
	}

	ctx := context.Background()
	ok, err := db.HasTable(ctx, "FacesetInfo")
	if err != nil {
		db.Close()
		return nil, storageError("open faceset", err)
	}
	if !ok {
		if err := db.Reset(ctx); err != nil {
			db.Close()
			return nil, storageError("initialize faceset", err)
		}
		slog.Info("faceset initialized", "path", path, "version", FormatVersion)
	}

	return &Faceset{
		path:    path,
		db:      db,
		marks:   db.FaceMarks(),
		persons: db.Persons(),
		images:  db.Images(),
	}, nil
}

// Path returns the file path the faceset was opened with.
func (fs *Faceset) Path() string {
	return fs.path
}

// Close releases the connection. Any further operation on the handle,
// including a second Close, returns ErrClosed.
func (fs *Faceset) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	err := fs.db.Close()
	fs.db = nil
	fs.marks = nil
	fs.persons = nil
	fs.images = nil
	if err != nil {
		return storageError("close faceset", err)
	}
	return nil
}

// Clear deletes all data and recreates the empty schema in a single
// transaction. Calling Clear on an already-empty store is a no-op with
// the same outcome.
func (fs *Faceset) Clear(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	if err := fs.db.Reset(ctx); err != nil {
		return storageError("clear faceset", err)
	}
	return nil
}

// Compact rewrites the backing file, reclaiming space from deleted and
// updated rows. It blocks every other operation on the store while the
// file is rewritten.
func (fs *Faceset) Compact(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	if err := fs.db.Vacuum(ctx); err != nil {
		return storageError("compact faceset", err)
	}
	slog.Debug("faceset compacted", "path", fs.path)
	return nil
}

// Version returns the schema version stamp stored in the file.
func (fs *Faceset) Version(ctx context.Context) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return 0, ErrClosed
	}

	v, err := fs.db.Version(ctx)
	if err != nil {
		return 0, storageError("read faceset version", err)
	}
	return v, nil
}
