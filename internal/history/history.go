package history

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Lookup errors returned by GetRun.
var (
	ErrRunNotFound = errors.New("run not found")
	ErrAmbiguousID = errors.New("ambiguous run id prefix")
)

// Repository reads and writes run history.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository using db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the underlying DB connection used by the Repository.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CreateRun inserts a run in the running state.
func (r *Repository) CreateRun(n NewRun) error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("invalid run: id cannot be empty")
	}
	if n.StartedAt.IsZero() {
		n.StartedAt = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO runs (id, workflow, source, actor, index_url, dry_run, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Workflow, n.Source, nullable(n.Actor), nullable(n.IndexURL), boolInt(n.DryRun), StatusRunning, formatTime(n.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SetDetails records revision, package, version and runtime as they become
// known. Empty fields leave the stored value untouched.
func (r *Repository) SetDetails(runID string, d Details) error {
	_, err := r.db.Exec(`UPDATE runs SET
		revision = COALESCE(?, revision),
		package  = COALESCE(?, package),
		version  = COALESCE(?, version),
		runtime  = COALESCE(?, runtime)
		WHERE id = ?`,
		nullable(d.Revision), nullable(d.Package), nullable(d.Version), nullable(d.Runtime), runID)
	if err != nil {
		return fmt.Errorf("update run details: %w", err)
	}
	return nil
}

// RecordStage stores the outcome of one stage.
func (r *Repository) RecordStage(runID string, position int, name, status, errMsg string, started, finished time.Time) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO stage_results (run_id, position, name, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, position, name, status, nullable(errMsg), formatTime(started), formatTime(finished))
	if err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}
	return nil
}

// RecordArtifacts stores the artifacts a build produced, replacing any
// earlier record with the same name for this run.
func (r *Repository) RecordArtifacts(runID string, arts []Artifact) error {
	trx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = trx.Rollback() }()
	for _, a := range arts {
		if _, err := trx.Exec(`INSERT OR REPLACE INTO artifacts (run_id, name, kind, size, sha256, uploaded)
			VALUES (?, ?, ?, ?, ?, ?)`, runID, a.Name, a.Kind, a.Size, a.SHA256, boolInt(a.Uploaded)); err != nil {
			return fmt.Errorf("insert artifact: %w", err)
		}
	}
	return trx.Commit()
}

// MarkUploaded flags the named artifacts of a run as uploaded.
func (r *Repository) MarkUploaded(runID string, names []string) error {
	trx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = trx.Rollback() }()
	for _, n := range names {
		if _, err := trx.Exec("UPDATE artifacts SET uploaded = 1 WHERE run_id = ? AND name = ?", runID, n); err != nil {
			return fmt.Errorf("mark artifact uploaded: %w", err)
		}
	}
	return trx.Commit()
}

// FinishRun sets the final status of a run.
func (r *Repository) FinishRun(runID, status, errMsg string, at time.Time) error {
	res, err := r.db.Exec("UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?",
		status, nullable(errMsg), formatTime(at), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, workflow, source, COALESCE(actor, ''), COALESCE(revision, ''), COALESCE(package, ''),
	COALESCE(version, ''), COALESCE(runtime, ''), COALESCE(index_url, ''), dry_run, status,
	COALESCE(error, ''), started_at, COALESCE(finished_at, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var dry int
	err := s.Scan(&run.ID, &run.Workflow, &run.Source, &run.Actor, &run.Revision, &run.Package,
		&run.Version, &run.Runtime, &run.IndexURL, &dry, &run.Status,
		&run.Error, &run.StartedAt, &run.FinishedAt)
	run.DryRun = dry != 0
	return run, err
}

// ListRuns returns the most recent runs first, without stages or
// artifacts. A limit of zero or less returns every run.
func (r *Repository) ListRuns(limit int) ([]Run, error) {
	q := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun returns one run with its stages and artifacts. id may be a unique
// prefix of the full run id.
func (r *Repository) GetRun(id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}
	rows, err := r.db.Query("SELECT "+runColumns+" FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\\' ORDER BY id LIMIT 3",
		id, escapeLike(id)+"%")
	if err != nil {
		return nil, err
	}
	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		matches = append(matches, run)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var run *Run
	for i := range matches {
		if matches[i].ID == id {
			run = &matches[i]
		}
	}
	if run == nil {
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		case 1:
			run = &matches[0]
		default:
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
		}
	}

	if run.Stages, err = r.stages(run.ID); err != nil {
		return nil, err
	}
	if run.Artifacts, err = r.artifacts(run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *Repository) stages(runID string) ([]Stage, error) {
	rows, err := r.db.Query(`SELECT position, name, status, COALESCE(error, ''), started_at, finished_at
		FROM stage_results WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Stage
	for rows.Next() {
		var s Stage
		if err := rows.Scan(&s.Position, &s.Name, &s.Status, &s.Error, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) artifacts(runID string) ([]Artifact, error) {
	rows, err := r.db.Query(`SELECT name, kind, size, sha256, uploaded FROM artifacts WHERE run_id = ? ORDER BY name ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Artifact
	for rows.Next() {
		var a Artifact
		var up int
		if err := rows.Scan(&a.Name, &a.Kind, &a.Size, &a.SHA256, &up); err != nil {
			return nil, err
		}
		a.Uploaded = up != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindPublished returns earlier non-dry runs that uploaded pkg at version
// to the given index, newest first. An empty index matches the default.
func (r *Repository) FindPublished(pkg, version, index string) ([]Run, error) {
	rows, err := r.db.Query("SELECT "+runColumns+` FROM runs
		WHERE package = ? AND version = ? AND COALESCE(index_url, '') = ?
		AND dry_run = 0
		AND EXISTS (SELECT 1 FROM artifacts a WHERE a.run_id = runs.id AND a.uploaded = 1)
		ORDER BY started_at DESC`, pkg, version, index)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// AbandonRunning fails every run still marked running, typically left
// over from a process that was killed. It returns how many were changed.
func (r *Repository) AbandonRunning(reason string, at time.Time) (int64, error) {
	res, err := r.db.Exec("UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE status = ?",
		StatusFailed, reason, formatTime(at), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("abandon running runs: %w", err)
	}
	return res.RowsAffected()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
