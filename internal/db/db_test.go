package db

import (
	"database/sql"
	"os"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/VoxDroid/pyship/internal/config"
)

func TestInitDBCreatesFileAndSchema(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(config.EnvPyshipHome, tmp)
	t.Setenv(config.EnvPyshipDB, "")

	dbPath, err := config.DBPath()
	if err != nil {
		t.Fatalf("DBPath(): %v", err)
	}

	db, err := InitDB()
	if err != nil {
		t.Fatalf("InitDB() error: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	for _, table := range []string{"runs", "stage_results", "artifacts"} {
		var count int
		r := db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := r.Scan(&count); err != nil {
			t.Fatalf("query schema: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected table %q to exist", table)
		}
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", "file:test_migrations?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := ApplyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if err := ApplyMigrations(db); err != nil {
		t.Fatalf("second apply should be a no-op: %v", err)
	}

	if _, err := db.Exec("INSERT INTO runs (id, workflow, source, started_at, index_url, dry_run) VALUES ('r1', 'release', 'cli', datetime('now'), 'https://upload.pypi.org/legacy/', 0)"); err != nil {
		t.Fatalf("insert run with migrated columns: %v", err)
	}
}

func TestStatusTriggerRejectsUnknownStatus(t *testing.T) {
	db, err := sql.Open("sqlite", "file:test_status_trigger?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()
	if err := ApplyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.Exec("INSERT INTO runs (id, workflow, source, started_at) VALUES ('r1', 'release', 'cli', datetime('now'))"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Exec("UPDATE runs SET status = 'exploded' WHERE id = 'r1'"); err == nil {
		t.Fatalf("expected unknown status to be rejected by trigger")
	}
	if _, err := db.Exec("UPDATE runs SET status = 'succeeded' WHERE id = 'r1'"); err != nil {
		t.Fatalf("valid status update failed: %v", err)
	}
}

func runColumns(t *testing.T, db *sql.DB) map[string]bool {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info('runs')")
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	defer func() { _ = rows.Close() }()
	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		cols[name] = true
	}
	return cols
}

func TestSchemaDeclaresRunColumns(t *testing.T) {
	db, err := sql.Open("sqlite", "file:test_schema_columns?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	cols := runColumns(t, db)
	if !cols["index_url"] || !cols["dry_run"] {
		t.Fatalf("fresh schema should declare index_url and dry_run, got %v", cols)
	}
}

func TestMigrationsUpgradeOldRunsTable(t *testing.T) {
	db, err := sql.Open("sqlite", "file:test_old_runs?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Exec(`CREATE TABLE runs (
		id TEXT PRIMARY KEY, workflow TEXT NOT NULL, source TEXT NOT NULL, actor TEXT,
		revision TEXT, package TEXT, version TEXT, runtime TEXT,
		status TEXT NOT NULL DEFAULT 'running', error TEXT, started_at TEXT NOT NULL, finished_at TEXT)`); err != nil {
		t.Fatalf("create old table: %v", err)
	}
	if err := ApplyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	cols := runColumns(t, db)
	if !cols["index_url"] || !cols["dry_run"] {
		t.Fatalf("migration should add index_url and dry_run, got %v", cols)
	}
}
