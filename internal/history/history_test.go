package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/VoxDroid/pyship/internal/db"
)

func setupRepo(t *testing.T) *Repository {
	dbConn, err := db.Open(filepath.Join(t.TempDir(), "pyship.db"))
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	r := NewRepository(dbConn)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func createRun(t *testing.T, r *Repository, id string, at time.Time) {
	t.Helper()
	if err := r.CreateRun(NewRun{ID: id, Workflow: "release", Source: "cli", Actor: "alice", StartedAt: at}); err != nil {
		t.Fatalf("CreateRun(%s): %v", id, err)
	}
}

func TestRepository_RunLifecycle(t *testing.T) {
	r := setupRepo(t)
	createRun(t, r, "run-a", t0)

	if err := r.SetDetails("run-a", Details{Revision: "abc123", Runtime: "3.12.4"}); err != nil {
		t.Fatalf("SetDetails: %v", err)
	}
	if err := r.SetDetails("run-a", Details{Package: "pkg", Version: "1.0.0"}); err != nil {
		t.Fatalf("SetDetails: %v", err)
	}
	stages := []string{"checkout", "setup", "install", "build", "publish"}
	for i, s := range stages {
		if err := r.RecordStage("run-a", i, s, StatusSucceeded, "", t0, t0.Add(time.Second)); err != nil {
			t.Fatalf("RecordStage: %v", err)
		}
	}
	arts := []Artifact{
		{Name: "pkg-1.0.0-py3-none-any.whl", Kind: "wheel", Size: 10, SHA256: "aa"},
		{Name: "pkg-1.0.0.tar.gz", Kind: "sdist", Size: 20, SHA256: "bb"},
	}
	if err := r.RecordArtifacts("run-a", arts); err != nil {
		t.Fatalf("RecordArtifacts: %v", err)
	}
	if err := r.MarkUploaded("run-a", []string{"pkg-1.0.0-py3-none-any.whl", "pkg-1.0.0.tar.gz"}); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}
	if err := r.FinishRun("run-a", StatusSucceeded, "", t0.Add(time.Minute)); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err := r.GetRun("run-a")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != StatusSucceeded || run.Revision != "abc123" || run.Runtime != "3.12.4" {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Package != "pkg" || run.Version != "1.0.0" || run.Actor != "alice" {
		t.Fatalf("details not stored: %+v", run)
	}
	if len(run.Stages) != len(stages) || run.Stages[4].Name != "publish" {
		t.Fatalf("unexpected stages %+v", run.Stages)
	}
	if len(run.Artifacts) != 2 || !run.Artifacts[0].Uploaded || !run.Artifacts[1].Uploaded {
		t.Fatalf("unexpected artifacts %+v", run.Artifacts)
	}
	if run.Duration() != time.Minute {
		t.Fatalf("expected one minute duration, got %s", run.Duration())
	}
}

func TestRepository_FailedRunKeepsError(t *testing.T) {
	r := setupRepo(t)
	createRun(t, r, "run-b", t0)
	if err := r.RecordStage("run-b", 3, "build", StatusFailed, "exit status 1", t0, t0); err != nil {
		t.Fatalf("RecordStage: %v", err)
	}
	if err := r.FinishRun("run-b", StatusFailed, "stage build: exit status 1", t0); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	run, err := r.GetRun("run-b")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != StatusFailed || run.Error == "" || run.Stages[0].Error != "exit status 1" {
		t.Fatalf("failure not recorded: %+v", run)
	}
	if err := r.FinishRun("missing", StatusFailed, "", t0); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRepository_ListRunsNewestFirst(t *testing.T) {
	r := setupRepo(t)
	createRun(t, r, "run-1", t0)
	createRun(t, r, "run-2", t0.Add(time.Hour))
	createRun(t, r, "run-3", t0.Add(2*time.Hour))

	runs, err := r.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-3" || runs[1].ID != "run-2" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	all, err := r.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all runs, got %d", len(all))
	}
}

func TestRepository_GetRunByPrefix(t *testing.T) {
	r := setupRepo(t)
	createRun(t, r, "7f3a9c00-0000", t0)
	createRun(t, r, "7f3b1100-0000", t0)

	run, err := r.GetRun("7f3a")
	if err != nil {
		t.Fatalf("GetRun prefix: %v", err)
	}
	if run.ID != "7f3a9c00-0000" {
		t.Fatalf("unexpected run %s", run.ID)
	}
	if _, err := r.GetRun("7f3"); !errors.Is(err, ErrAmbiguousID) {
		t.Fatalf("expected ambiguous prefix error")
	}
	if _, err := r.GetRun("zzz"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := r.GetRun("%"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("wildcards must be matched literally, got %v", err)
	}
}

func TestRepository_FindPublished(t *testing.T) {
	r := setupRepo(t)

	// uploaded to the default index
	createRun(t, r, "up", t0)
	_ = r.SetDetails("up", Details{Package: "pkg", Version: "1.0.0"})
	_ = r.RecordArtifacts("up", []Artifact{{Name: "pkg-1.0.0.tar.gz", Kind: "sdist", Size: 1, SHA256: "x"}})
	_ = r.MarkUploaded("up", []string{"pkg-1.0.0.tar.gz"})

	// built but never uploaded
	createRun(t, r, "built", t0)
	_ = r.SetDetails("built", Details{Package: "pkg", Version: "2.0.0"})
	_ = r.RecordArtifacts("built", []Artifact{{Name: "pkg-2.0.0.tar.gz", Kind: "sdist", Size: 1, SHA256: "y"}})

	got, err := r.FindPublished("pkg", "1.0.0", "")
	if err != nil {
		t.Fatalf("FindPublished: %v", err)
	}
	if len(got) != 1 || got[0].ID != "up" {
		t.Fatalf("expected the uploaded run, got %+v", got)
	}
	if got, _ := r.FindPublished("pkg", "2.0.0", ""); len(got) != 0 {
		t.Fatalf("runs without uploads must not count, got %+v", got)
	}
	if got, _ := r.FindPublished("pkg", "1.0.0", "https://test.pypi.org/legacy/"); len(got) != 0 {
		t.Fatalf("different index must not match, got %+v", got)
	}
}

func TestRepository_AbandonRunning(t *testing.T) {
	r := setupRepo(t)
	createRun(t, r, "stale", t0)
	createRun(t, r, "done", t0)
	_ = r.FinishRun("done", StatusSucceeded, "", t0)

	n, err := r.AbandonRunning("interrupted", t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("AbandonRunning: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one abandoned run, got %d", n)
	}
	run, _ := r.GetRun("stale")
	if run.Status != StatusFailed || run.Error != "interrupted" {
		t.Fatalf("unexpected stale run %+v", run)
	}
}

func TestRepository_CreateRunRejectsEmptyID(t *testing.T) {
	r := setupRepo(t)
	if err := r.CreateRun(NewRun{Workflow: "release", Source: "cli"}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
