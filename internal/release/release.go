// Package release runs the build-and-publish pipeline: checkout, setup,
// install, build and publish in that order, then the success notice.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/VoxDroid/pyship/internal/executor"
	"github.com/VoxDroid/pyship/internal/history"
	"github.com/VoxDroid/pyship/internal/metrics"
	"github.com/VoxDroid/pyship/internal/pipeline"
	"github.com/VoxDroid/pyship/internal/project"
	"github.com/VoxDroid/pyship/internal/secrets"
	"github.com/VoxDroid/pyship/internal/security"
	"github.com/VoxDroid/pyship/internal/trigger"
	"github.com/VoxDroid/pyship/internal/ui"
	"github.com/VoxDroid/pyship/internal/workflow"
)

// Plan describes an upload about to happen, for confirmation prompts.
type Plan struct {
	Package  string
	Version  string
	IndexURL string
	Files    []string
}

// ConfirmFunc approves or declines an upload.
type ConfirmFunc func(Plan) (bool, error)

// Options configure a Runner.
type Options struct {
	// Exec runs stage commands. A dry-run executor prints instead.
	Exec executor.Runner
	// DryExec replaces Exec for dry runs. Defaults to a printing executor.
	DryExec executor.Runner
	// Inspect runs read-only helper commands (git, interpreter discovery)
	// and always executes, even for dry runs. Defaults to Exec.
	Inspect executor.Runner

	Secrets secrets.Store
	// History is optional; without it runs are not recorded.
	History *history.Repository
	Confirm ConfirmFunc
	Log     zerolog.Logger
	// PathList overrides PATH for interpreter discovery.
	PathList string
	// Color forces styled stage output on or off; nil detects the terminal.
	Color *bool
}

// Request is one pipeline invocation.
type Request struct {
	Dispatch trigger.Dispatch
	Workflow *workflow.Workflow
	Dir      string
	Ref      string
	DryRun   bool
	Force    bool
	Stdout   io.Writer
	Stderr   io.Writer
}

// Result summarises a finished run.
type Result struct {
	RunID     string
	Status    string
	Revision  string
	Runtime   string
	Package   string
	Version   string
	Artifacts []project.Artifact
	Uploaded  []project.Artifact
	Stages    []pipeline.StageResult
	// FailedStage names the stage that stopped a failed run. It is empty
	// when the run was cancelled between stages.
	FailedStage string
	// NotifyErr is set when the success notice could not be written. It
	// never changes Status.
	NotifyErr error
}

// Runner executes release pipelines. A Runner is safe for sequential use;
// callers serialise runs.
type Runner struct {
	opts    Options
	inspect executor.Runner
	dry     executor.Runner
}

// NewRunner validates opts and returns a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Exec == nil {
		return nil, errors.New("release: executor is required")
	}
	if opts.Secrets == nil {
		return nil, errors.New("release: secret store is required")
	}
	r := &Runner{opts: opts, inspect: opts.Inspect, dry: opts.DryExec}
	if r.inspect == nil {
		r.inspect = opts.Exec
	}
	if r.dry == nil {
		r.dry = executor.New(true, true)
	}
	return r, nil
}

func (r *Runner) runner(rc *pipeline.RunContext) executor.Runner {
	if rc.DryRun {
		return r.dry
	}
	return r.opts.Exec
}

// Stages returns the pipeline stages in execution order.
func (r *Runner) Stages() []pipeline.Stage {
	return []pipeline.Stage{
		checkoutStage{r},
		setupStage{r},
		installStage{r},
		buildStage{r},
		publishStage{r},
	}
}

// CheckCommands rejects workflow commands matching a destructive pattern.
func CheckCommands(wf *workflow.Workflow) error {
	if err := security.CheckAll(wf.Commands()); err != nil {
		return fmt.Errorf("workflow %s: %w (use --force to run anyway)", wf.Name, err)
	}
	return nil
}

// Run executes the pipeline for req. The returned error is non-nil exactly
// when the run failed. A nil Result means the run was rejected before any
// stage started.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Workflow == nil {
		return nil, errors.New("release: workflow is required")
	}
	if !req.Force {
		if err := CheckCommands(req.Workflow); err != nil {
			return nil, err
		}
	}

	rc := pipeline.NewRunContext(req.Dispatch, req.Workflow, req.Dir, req.Stdout, req.Stderr)
	defer rc.Close()
	rc.Ref = req.Ref
	rc.DryRun = req.DryRun
	rc.Force = req.Force
	rc.Log = r.opts.Log.With().Str("run", trigger.ShortID(req.Dispatch.ID)).Logger()

	printer := ui.New(rc.Stdout)
	if r.opts.Color != nil {
		printer = ui.NewWithColor(rc.Stdout, *r.opts.Color)
	}

	r.recordStart(rc)

	p := pipeline.New(r.Stages()...)
	p.Observe(&runObserver{r: r, printer: printer, total: len(p.Names())})
	rc.Log.Info().Str("workflow", req.Workflow.Name).Str("actor", req.Dispatch.Actor).Strs("stages", p.Names()).Bool("dry_run", req.DryRun).Msg("run started")
	err := p.Run(ctx, rc)

	res := &Result{
		RunID:     req.Dispatch.ID,
		Status:    history.StatusSucceeded,
		Revision:  rc.Revision,
		Package:   rc.Metadata.Name,
		Version:   rc.Metadata.Version,
		Artifacts: rc.Artifacts,
		Uploaded:  rc.Uploaded,
		Stages:    rc.Results,
	}
	if rc.Runtime != nil {
		res.Runtime = rc.Runtime.Version.String()
	}

	if err != nil {
		res.Status = history.StatusFailed
		if failed, ok := rc.Failed(); ok {
			res.FailedStage = failed.Name
		}
		printer.Failure(fmt.Sprintf("release failed: %v", err))
		rc.Log.Error().Err(err).Msg("run failed")
	} else {
		res.NotifyErr = r.notify(rc, printer)
	}

	r.recordFinish(rc, res.Status, err)
	metrics.RecordRun(res.Status)
	return res, err
}

// notify prints the success message. Its failure is logged and reported on
// the Result only.
func (r *Runner) notify(rc *pipeline.RunContext, printer *ui.Printer) error {
	start := time.Now()
	msg := rc.Workflow.Notify.Message
	if rc.DryRun {
		msg = "dry-run: " + msg + " (nothing was uploaded)"
	}
	err := printer.Success(msg)
	status := history.StatusSucceeded
	errMsg := ""
	if err != nil {
		status = history.StatusFailed
		errMsg = err.Error()
		rc.Log.Warn().Err(err).Msg("could not write success notice")
	}
	if r.opts.History != nil {
		if herr := r.opts.History.RecordStage(rc.Dispatch.ID, len(r.Stages()), StageNotify, status, errMsg, start, time.Now()); herr != nil {
			rc.Log.Warn().Err(herr).Msg("could not record notify stage")
		}
	}
	return err
}

func (r *Runner) warnIfPublished(rc *pipeline.RunContext) {
	if r.opts.History == nil || rc.Metadata.Name == "" || rc.Metadata.Version == "" {
		return
	}
	prev, err := r.opts.History.FindPublished(project.NormalizeName(rc.Metadata.Name), rc.Metadata.Version, rc.Workflow.Publish.RepositoryURL)
	if err != nil {
		rc.Log.Warn().Err(err).Msg("could not consult run history")
		return
	}
	if len(prev) > 0 {
		rc.Log.Warn().
			Str("package", rc.Metadata.Name).
			Str("version", rc.Metadata.Version).
			Str("previous_run", trigger.ShortID(prev[0].ID)).
			Msg("this version was already published; the index will reject the upload")
	}
}

func (r *Runner) recordStart(rc *pipeline.RunContext) {
	if r.opts.History == nil {
		return
	}
	err := r.opts.History.CreateRun(history.NewRun{
		ID:        rc.Dispatch.ID,
		Workflow:  rc.Workflow.Name,
		Source:    string(rc.Dispatch.Source),
		Actor:     rc.Dispatch.Actor,
		IndexURL:  rc.Workflow.Publish.RepositoryURL,
		DryRun:    rc.DryRun,
		StartedAt: rc.Dispatch.At,
	})
	if err != nil {
		rc.Log.Warn().Err(err).Msg("could not record run start")
	}
}

func (r *Runner) recordFinish(rc *pipeline.RunContext, status string, runErr error) {
	if r.opts.History == nil {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := r.opts.History.FinishRun(rc.Dispatch.ID, status, msg, time.Now()); err != nil {
		rc.Log.Warn().Err(err).Msg("could not record run result")
	}
}

// runObserver prints stage progress and records stage outcomes.
type runObserver struct {
	r       *Runner
	printer *ui.Printer
	total   int
}

func (o *runObserver) StageStarted(rc *pipeline.RunContext, position int, name string) {
	o.printer.StageHeader(position, o.total, name)
	rc.Log.Debug().Str("stage", name).Msg("stage started")
}

func (o *runObserver) StageFinished(rc *pipeline.RunContext, res pipeline.StageResult) {
	o.printer.StageDone(res.Name, res.Duration(), res.Err)
	metrics.RecordStage(res.Name, string(res.Status), res.Duration())

	if res.Err == nil {
		switch res.Name {
		case StageBuild:
			arts := make([]ui.Artifact, len(rc.Artifacts))
			for i, a := range rc.Artifacts {
				arts[i] = ui.Artifact{Name: a.Name, Kind: string(a.Kind()), Size: a.Size}
			}
			o.printer.Artifacts(arts)
		case StagePublish:
			if n := len(rc.Uploaded); n > 0 {
				metrics.RecordUploaded(n)
			}
		}
	}

	h := o.r.opts.History
	if h == nil {
		return
	}
	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	if err := h.RecordStage(rc.Dispatch.ID, res.Position, res.Name, string(res.Status), errMsg, res.StartedAt, res.FinishedAt); err != nil {
		rc.Log.Warn().Err(err).Msg("could not record stage")
	}
	if res.Err != nil {
		return
	}
	switch res.Name {
	case StageCheckout, StageSetup:
		d := history.Details{Revision: rc.Revision}
		if rc.Runtime != nil {
			d.Runtime = rc.Runtime.Version.String()
		}
		if err := h.SetDetails(rc.Dispatch.ID, d); err != nil {
			rc.Log.Warn().Err(err).Msg("could not record run details")
		}
	case StageBuild:
		if err := h.SetDetails(rc.Dispatch.ID, history.Details{
			Package: project.NormalizeName(rc.Metadata.Name),
			Version: rc.Metadata.Version,
		}); err != nil {
			rc.Log.Warn().Err(err).Msg("could not record run details")
		}
		if err := h.RecordArtifacts(rc.Dispatch.ID, toHistory(rc.Artifacts)); err != nil {
			rc.Log.Warn().Err(err).Msg("could not record artifacts")
		}
	case StagePublish:
		if len(rc.Uploaded) == 0 {
			return
		}
		names := make([]string, len(rc.Uploaded))
		for i, a := range rc.Uploaded {
			names[i] = a.Name
		}
		if err := h.MarkUploaded(rc.Dispatch.ID, names); err != nil {
			rc.Log.Warn().Err(err).Msg("could not record upload")
		}
	}
}

func toHistory(arts []project.Artifact) []history.Artifact {
	out := make([]history.Artifact, len(arts))
	for i, a := range arts {
		out[i] = history.Artifact{Name: a.Name, Kind: string(a.Kind()), Size: a.Size, SHA256: a.SHA256}
	}
	return out
}
