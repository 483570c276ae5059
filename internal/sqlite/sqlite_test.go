package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/faceset/internal/sqlite"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.dfs"), time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.dfs")

	db, err := sqlite.Open(dbPath, time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	// The schema is not created until Reset; force a write so the file
	// materializes.
	if err := db.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}
}

func TestResetCreatesSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ok, err := db.HasTable(ctx, "FacesetInfo")
	if err != nil {
		t.Fatalf("HasTable: %v", err)
	}
	if ok {
		t.Fatal("FacesetInfo exists before Reset")
	}

	if err := db.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	for _, table := range []string{"FacesetInfo", "UImage", "UPerson", "UFaceMark"} {
		ok, err := db.HasTable(ctx, table)
		if err != nil {
			t.Fatalf("HasTable(%s): %v", table, err)
		}
		if !ok {
			t.Fatalf("table %s missing after Reset", table)
		}
	}

	v, err := db.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != sqlite.FormatVersion {
		t.Fatalf("version = %d, want %d", v, sqlite.FormatVersion)
	}
}

func TestResetDropsExistingData(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Reset(ctx); err != nil {
		t.Fatalf("first Reset: %v", err)
	}
	if err := db.Persons().Upsert(ctx, sqlite.PersonRow{UUID: []byte("0123456789abcdef")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := db.Reset(ctx); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	n, err := db.Persons().Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("person count after Reset = %d, want 0", n)
	}
}

func TestUpsertUpdatesInPlace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	uuid := []byte("0123456789abcdef")
	repo := db.FaceMarks()
	if err := repo.Upsert(ctx, sqlite.FaceMarkRow{UUID: uuid, Record: []byte("v1")}); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := repo.Upsert(ctx, sqlite.FaceMarkRow{UUID: uuid, Record: []byte("v2")}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}

	rows, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if string(rows[0].Record) != "v2" {
		t.Fatalf("record = %q, want %q", rows[0].Record, "v2")
	}
}

func TestVacuum(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := db.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
}
