package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthmetrica/cdss/internal/platform/db"
	"github.com/healthmetrica/cdss/migrations"
)

// testDB holds the shared database for the package.
type testDB struct {
	Pool    *pgxpool.Pool
	ConnStr string
}

var globalDB *testDB

// TestMain connects to CDSS_TEST_DATABASE_URL when set, otherwise starts a
// throwaway postgres:16-alpine container. Without either the package is
// skipped.
func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping integration tests: %v\n", err)
		os.Exit(0)
	}

	if _, err := db.NewMigrator(tdb.Pool, migrations.FS).Up(ctx); err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupPostgres(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv("CDSS_TEST_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		var err error
		connStr, stop, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	pool, err := db.NewPool(ctx, connStr, 5, 1)
	if err != nil {
		stop()
		return nil, nil, err
	}
	return &testDB{Pool: pool, ConnStr: connStr}, func() {
		pool.Close()
		stop()
	}, nil
}

// resetArchive empties the archive so each test starts clean.
func resetArchive(t *testing.T) {
	t.Helper()
	if _, err := globalDB.Pool.Exec(context.Background(), `TRUNCATE consultation_archive`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
