package pipeline

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/VoxDroid/pyship/internal/project"
	"github.com/VoxDroid/pyship/internal/provision"
	"github.com/VoxDroid/pyship/internal/trigger"
	"github.com/VoxDroid/pyship/internal/workflow"
)

// RunContext carries all state through one pipeline run. It lives for a
// single execution and is never persisted as a whole.
type RunContext struct {
	Dispatch trigger.Dispatch
	Workflow *workflow.Workflow
	Log      zerolog.Logger

	// ProjectDir is where the run was requested; WorkDir is the snapshot
	// the stages operate on (the same directory unless a ref was cloned).
	ProjectDir string
	WorkDir    string
	Ref        string
	Revision   string

	DryRun bool
	Force  bool

	Stdout io.Writer
	Stderr io.Writer

	Runtime   *provision.Runtime
	Metadata  project.Metadata
	Artifacts []project.Artifact
	Uploaded  []project.Artifact

	Results []StageResult

	cleanups []func()
}

// NewRunContext creates a RunContext for wf rooted at dir.
func NewRunContext(d trigger.Dispatch, wf *workflow.Workflow, dir string, stdout, stderr io.Writer) *RunContext {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &RunContext{
		Dispatch:   d,
		Workflow:   wf,
		Log:        zerolog.Nop(),
		ProjectDir: dir,
		WorkDir:    dir,
		Stdout:     stdout,
		Stderr:     stderr,
	}
}

// OnCleanup registers f to run when Close is called.
func (rc *RunContext) OnCleanup(f func()) {
	rc.cleanups = append(rc.cleanups, f)
}

// Close runs cleanups in reverse registration order.
func (rc *RunContext) Close() {
	for i := len(rc.cleanups) - 1; i >= 0; i-- {
		rc.cleanups[i]()
	}
	rc.cleanups = nil
}

// Failed returns the first failed stage result, if any.
func (rc *RunContext) Failed() (StageResult, bool) {
	for _, r := range rc.Results {
		if r.Status == StatusFailed {
			return r, true
		}
	}
	return StageResult{}, false
}

// Env returns environment entries every stage command receives: the
// provisioned runtime first on PATH.
func (rc *RunContext) Env() []string {
	if rc.Runtime == nil || rc.Runtime.Dir == "" {
		return nil
	}
	return []string{rc.Runtime.PathEnv()}
}
