package exporter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/VoxDroid/pyship/internal/config"
	"github.com/VoxDroid/pyship/internal/db"
	"github.com/VoxDroid/pyship/internal/history"
)

func TestExportDatabase(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(config.EnvPyshipHome, tmp)
	t.Setenv(config.EnvPyshipDB, "")

	dbConn, err := db.InitDB()
	if err != nil {
		t.Fatalf("InitDB(): %v", err)
	}
	_ = dbConn.Close()

	dst := filepath.Join(tmp, "backup", "exported.db")
	if err := ExportDatabase(dst); err != nil {
		t.Fatalf("ExportDatabase: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("exported file not found: %v", err)
	}
}

func TestExportRun(t *testing.T) {
	tmp := t.TempDir()
	src, err := db.Open(filepath.Join(tmp, "src.db"))
	if err != nil {
		t.Fatalf("open src: %v", err)
	}
	defer func() { _ = src.Close() }()
	r := history.NewRepository(src)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := r.CreateRun(history.NewRun{ID: "0d2c9a51-export", Workflow: "release", Source: "cli", Actor: "alice", StartedAt: start}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := r.SetDetails("0d2c9a51-export", history.Details{Package: "pkg", Version: "1.0.0", Runtime: "3.12.1"}); err != nil {
		t.Fatalf("SetDetails: %v", err)
	}
	if err := r.RecordStage("0d2c9a51-export", 1, "build", history.StatusSucceeded, "", start, start.Add(time.Second)); err != nil {
		t.Fatalf("RecordStage: %v", err)
	}
	if err := r.RecordArtifacts("0d2c9a51-export", []history.Artifact{
		{Name: "pkg-1.0.0-py3-none-any.whl", Kind: "wheel", Size: 10, SHA256: "aa", Uploaded: true},
		{Name: "pkg-1.0.0.tar.gz", Kind: "sdist", Size: 20, SHA256: "bb"},
	}); err != nil {
		t.Fatalf("RecordArtifacts: %v", err)
	}
	if err := r.FinishRun("0d2c9a51-export", history.StatusSucceeded, "", start.Add(2*time.Second)); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	dstPath := filepath.Join(tmp, "one.db")
	if _, err := ExportRun(src, "0d2c9a51", dstPath); err != nil {
		t.Fatalf("ExportRun: %v", err)
	}

	dst, err := db.Open(dstPath)
	if err != nil {
		t.Fatalf("open dst: %v", err)
	}
	got, err := history.NewRepository(dst).GetRun("0d2c9a51-export")
	_ = dst.Close()
	if err != nil {
		t.Fatalf("GetRun in export: %v", err)
	}
	if got.Status != history.StatusSucceeded || got.Package != "pkg" || got.Actor != "alice" {
		t.Fatalf("unexpected exported run %+v", got)
	}
	if len(got.Stages) != 1 || got.Stages[0].Name != "build" {
		t.Fatalf("unexpected exported stages %+v", got.Stages)
	}
	if len(got.Artifacts) != 2 || !got.Artifacts[0].Uploaded || got.Artifacts[1].Uploaded {
		t.Fatalf("unexpected exported artifacts %+v", got.Artifacts)
	}
	if got.Duration() != 2*time.Second {
		t.Fatalf("expected duration to survive export, got %s", got.Duration())
	}
}

func TestExportRunUnknown(t *testing.T) {
	tmp := t.TempDir()
	src, err := db.Open(filepath.Join(tmp, "src.db"))
	if err != nil {
		t.Fatalf("open src: %v", err)
	}
	defer func() { _ = src.Close() }()
	if _, err := ExportRun(src, "missing", filepath.Join(tmp, "x.db")); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}
