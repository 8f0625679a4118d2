// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// Tables wiped between tests. goose_db_version is left alone so
// migrations only run once per database.
var appTables = []string{"assessments", "transactions", "accounts"}

// PGTest opens the database named by POSTGRES_URL, brings the schema
// up to date and returns the connection plus a cleanup func that
// truncates all application tables. If POSTGRES_URL is not set, the
// test is skipped.
func PGTest(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set; skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Fatalf("ping postgres: %v", err)
	}

	dir, err := findMigrationsDir()
	if err != nil {
		_ = db.Close()
		t.Fatalf("locate migrations: %v", err)
	}

	goose.SetLogger(goose.NopLogger())
	if err := goose.UpContext(ctx, db, dir); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	cleanup := func() {
		for _, table := range appTables {
			if _, err := db.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
				t.Errorf("truncate %s: %v", table, err)
			}
		}
		_ = db.Close()
	}
	return db, cleanup
}

// findMigrationsDir walks up from the working directory until it finds
// the migrations/ directory at the module root.
func findMigrationsDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
