// Package exporter copies run history out of the local database.
package exporter

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/VoxDroid/pyship/internal/config"
	dbpkg "github.com/VoxDroid/pyship/internal/db"
	"github.com/VoxDroid/pyship/internal/history"
)

// ExportDatabase copies the active history database to dstPath.
func ExportDatabase(dstPath string) error {
	src, err := config.DBPath()
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source db: %w", err)
	}
	defer func() { _ = in.Close() }()
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("create dst dir: %w", err)
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create dst db: %w", err)
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy db: %w", err)
	}
	return nil
}

// ExportRun writes a single run, with its stages and artifacts, into a
// standalone history database at dstPath. id may be a unique prefix.
func ExportRun(srcDB *sql.DB, id, dstPath string) (*history.Run, error) {
	run, err := history.NewRepository(srcDB).GetRun(id)
	if err != nil {
		return nil, err
	}

	dstDB, err := dbpkg.Open(dstPath)
	if err != nil {
		return nil, fmt.Errorf("open dst db: %w", err)
	}
	dst := history.NewRepository(dstDB)
	defer func() { _ = dst.Close() }()

	if err := dst.CreateRun(history.NewRun{
		ID:        run.ID,
		Workflow:  run.Workflow,
		Source:    run.Source,
		Actor:     run.Actor,
		IndexURL:  run.IndexURL,
		DryRun:    run.DryRun,
		StartedAt: parseTime(run.StartedAt),
	}); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	if err := dst.SetDetails(run.ID, history.Details{
		Revision: run.Revision,
		Package:  run.Package,
		Version:  run.Version,
		Runtime:  run.Runtime,
	}); err != nil {
		return nil, fmt.Errorf("insert run details: %w", err)
	}
	for _, s := range run.Stages {
		if err := dst.RecordStage(run.ID, s.Position, s.Name, s.Status, s.Error, parseTime(s.StartedAt), parseTime(s.FinishedAt)); err != nil {
			return nil, fmt.Errorf("insert stage %s: %w", s.Name, err)
		}
	}
	if err := dst.RecordArtifacts(run.ID, run.Artifacts); err != nil {
		return nil, fmt.Errorf("insert artifacts: %w", err)
	}
	if run.FinishedAt != "" {
		if err := dst.FinishRun(run.ID, run.Status, run.Error, parseTime(run.FinishedAt)); err != nil {
			return nil, fmt.Errorf("finish run: %w", err)
		}
	}
	return run, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(history.TimeLayout, s)
	return t
}
