package faceset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/msomdec/faceset"
)

// openTestFaceset opens a fresh store in a scratch directory.
func openTestFaceset(t *testing.T) *faceset.Faceset {
	t.Helper()
	fs, err := faceset.Open(filepath.Join(t.TempDir(), "test.dfs"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestOpenFreshStore(t *testing.T) {
	fs := openTestFaceset(t)
	ctx := context.Background()

	for name, count := range map[string]func(context.Context) (int, error){
		"face marks": fs.FaceMarkCount,
		"persons":    fs.PersonCount,
		"images":     fs.ImageCount,
	} {
		n, err := count(ctx)
		if err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if n != 0 {
			t.Fatalf("fresh store has %d %s, want 0", n, name)
		}
	}

	v, err := fs.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != faceset.FormatVersion {
		t.Fatalf("version = %d, want %d", v, faceset.FormatVersion)
	}
}

func TestOpenInvalidSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bin")

	_, err := faceset.Open(path)
	if !errors.Is(err, faceset.ErrInvalidPath) {
		t.Fatalf("Open(%q) error = %v, want ErrInvalidPath", path, err)
	}

	// The file must not have been created.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file was created despite invalid suffix")
	}
}

func TestReopenPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dfs")
	ctx := context.Background()

	fs, err := faceset.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p := &faceset.Person{UUID: uuid.New(), Name: "Ada"}
	if err := fs.UpsertPerson(ctx, p); err != nil {
		t.Fatalf("UpsertPerson: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second open of a valid file must not reset the schema.
	fs, err = faceset.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer fs.Close()

	n, err := fs.PersonCount(ctx)
	if err != nil {
		t.Fatalf("PersonCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("person count after reopen = %d, want 1", n)
	}
}

func TestClosedStore(t *testing.T) {
	fs := openTestFaceset(t)
	ctx := context.Background()

	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	checks := map[string]error{
		"second Close": fs.Close(),
		"Clear":        fs.Clear(ctx),
		"Compact":      fs.Compact(ctx),
		"UpsertPerson": fs.UpsertPerson(ctx, &faceset.Person{UUID: uuid.New()}),
	}
	if _, err := fs.FaceMarkCount(ctx); err != nil {
		checks["FaceMarkCount"] = err
	} else {
		t.Fatal("FaceMarkCount on closed store succeeded")
	}
	if _, err := fs.ImageByUUID(ctx, uuid.New()); err != nil {
		checks["ImageByUUID"] = err
	} else {
		t.Fatal("ImageByUUID on closed store succeeded")
	}

	for name, err := range checks {
		if !errors.Is(err, faceset.ErrClosed) {
			t.Fatalf("%s on closed store: error = %v, want ErrClosed", name, err)
		}
	}
}

func TestClearIdempotent(t *testing.T) {
	fs := openTestFaceset(t)
	ctx := context.Background()

	if err := fs.UpsertPerson(ctx, &faceset.Person{UUID: uuid.New(), Name: "Ada"}); err != nil {
		t.Fatalf("UpsertPerson: %v", err)
	}

	for i := range 2 {
		if err := fs.Clear(ctx); err != nil {
			t.Fatalf("Clear #%d: %v", i+1, err)
		}
		n, err := fs.PersonCount(ctx)
		if err != nil {
			t.Fatalf("PersonCount after Clear #%d: %v", i+1, err)
		}
		if n != 0 {
			t.Fatalf("person count after Clear #%d = %d, want 0", i+1, n)
		}
		v, err := fs.Version(ctx)
		if err != nil {
			t.Fatalf("Version after Clear #%d: %v", i+1, err)
		}
		if v != faceset.FormatVersion {
			t.Fatalf("version after Clear #%d = %d, want %d", i+1, v, faceset.FormatVersion)
		}
	}
}

func TestCompact(t *testing.T) {
	fs := openTestFaceset(t)
	ctx := context.Background()

	for range 10 {
		fm := &faceset.FaceMark{UUID: uuid.New(), Geometry: make([]byte, 4096)}
		if err := fs.UpsertFaceMark(ctx, fm); err != nil {
			t.Fatalf("UpsertFaceMark: %v", err)
		}
	}
	if err := fs.DeleteAllFaceMarks(ctx); err != nil {
		t.Fatalf("DeleteAllFaceMarks: %v", err)
	}

	if err := fs.Compact(ctx); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	// The store stays usable after compaction.
	n, err := fs.FaceMarkCount(ctx)
	if err != nil {
		t.Fatalf("FaceMarkCount after Compact: %v", err)
	}
	if n != 0 {
		t.Fatalf("face mark count after Compact = %d, want 0", n)
	}
}
