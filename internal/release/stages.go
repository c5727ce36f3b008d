package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/VoxDroid/pyship/internal/executor"
	"github.com/VoxDroid/pyship/internal/pipeline"
	"github.com/VoxDroid/pyship/internal/project"
	"github.com/VoxDroid/pyship/internal/provision"
	"github.com/VoxDroid/pyship/internal/secrets"
	"github.com/VoxDroid/pyship/internal/security"
	"github.com/VoxDroid/pyship/internal/workflow"
)

// Stage names in execution order.
const (
	StageCheckout = "checkout"
	StageSetup    = "setup"
	StageInstall  = "install"
	StageBuild    = "build"
	StagePublish  = "publish"
	StageNotify   = "notify"
)

// ErrPublishDeclined is returned when the upload confirmation is refused.
var ErrPublishDeclined = errors.New("publish declined")

// checkoutStage snapshots the source tree and records its revision.
type checkoutStage struct{ r *Runner }

func (checkoutStage) Name() string { return StageCheckout }

func (s checkoutStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	wf := rc.Workflow
	ref := rc.Ref
	if ref == "" {
		ref = wf.Source.Ref
	}
	if wf.Source.Repository != "" || ref != "" {
		src := wf.Source.Repository
		if src == "" {
			src = rc.ProjectDir
		}
		tmp, err := os.MkdirTemp("", "pyship-checkout-")
		if err != nil {
			return fmt.Errorf("create checkout dir: %w", err)
		}
		rc.OnCleanup(func() { _ = os.RemoveAll(tmp) })

		rc.Log.Info().Str("repository", src).Str("ref", ref).Msg("cloning source")
		if err := s.r.inspect.Execute(ctx, workflow.Quote("git", "clone", "--quiet", src, tmp), "", nil, rc.Stdout, rc.Stderr); err != nil {
			return fmt.Errorf("clone %s: %w", src, err)
		}
		if ref != "" {
			if err := s.r.inspect.Execute(ctx, workflow.Quote("git", "-c", "advice.detachedHead=false", "checkout", "--quiet", ref), tmp, nil, rc.Stdout, rc.Stderr); err != nil {
				return fmt.Errorf("checkout %s: %w", ref, err)
			}
		}
		rc.WorkDir = tmp
	}

	var out bytes.Buffer
	if err := s.r.inspect.Execute(ctx, "git rev-parse HEAD", rc.WorkDir, nil, &out, &out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rc.Log.Warn().Str("dir", rc.WorkDir).Msg("not a git checkout, revision unknown")
		return nil
	}
	rc.Revision = strings.TrimSpace(out.String())
	rc.Log.Info().Str("revision", rc.Revision).Msg("source ready")
	return nil
}

// setupStage resolves the interpreter.
type setupStage struct{ r *Runner }

func (setupStage) Name() string { return StageSetup }

func (s setupStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	p := provision.Provisioner{Runner: s.r.inspect, Log: rc.Log, PathList: s.r.opts.PathList, DryRun: rc.DryRun}
	rt, err := p.Resolve(ctx, rc.Workflow.Runtime.Python, rc.Workflow.Runtime.Interpreter)
	if err != nil {
		return err
	}
	rc.Runtime = rt
	rc.Log.Info().Str("interpreter", rt.Interpreter).Str("version", rt.Version.String()).Msg("runtime ready")
	return nil
}

// installStage upgrades the installer and installs the build and upload
// tools.
type installStage struct{ r *Runner }

func (installStage) Name() string { return StageInstall }

func (s installStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	params := baseParams(rc)
	for i, raw := range rc.Workflow.Build.Install {
		cmd, err := workflow.Expand(raw, params)
		if err != nil {
			return fmt.Errorf("install command %d: %w", i+1, err)
		}
		if err := s.r.runner(rc).Execute(ctx, cmd, rc.WorkDir, rc.Env(), rc.Stdout, rc.Stderr); err != nil {
			return fmt.Errorf("install command %d: %w", i+1, err)
		}
	}
	return nil
}

// buildStage produces the distribution files.
type buildStage struct{ r *Runner }

func (buildStage) Name() string { return StageBuild }

func (s buildStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	meta, err := project.ReadMetadata(rc.WorkDir)
	if err != nil {
		return err
	}
	rc.Metadata = meta

	outDir := filepath.Join(rc.WorkDir, rc.Workflow.Build.OutputDir)
	if rc.Workflow.Build.CleanOutput() && !rc.DryRun {
		if err := project.Clean(outDir); err != nil {
			return fmt.Errorf("clean %s: %w", rc.Workflow.Build.OutputDir, err)
		}
	}

	cmd, err := workflow.Expand(rc.Workflow.Build.Command, baseParams(rc))
	if err != nil {
		return err
	}
	if err := s.r.runner(rc).Execute(ctx, cmd, rc.WorkDir, rc.Env(), rc.Stdout, rc.Stderr); err != nil {
		return err
	}

	if rc.DryRun && rc.Workflow.Build.CleanOutput() {
		// a real run empties the output dir first, so nothing in it now would be uploaded
		if stale, err := project.Collect(outDir); err == nil && len(stale) > 0 {
			rc.Log.Info().Int("files", len(stale)).Str("output_dir", rc.Workflow.Build.OutputDir).Msg("dry run: existing files would be removed before the build")
		}
		return nil
	}

	arts, err := project.Collect(outDir)
	if err != nil {
		return fmt.Errorf("collect artifacts: %w", err)
	}
	if len(arts) == 0 {
		if rc.DryRun {
			rc.Log.Info().Str("output_dir", rc.Workflow.Build.OutputDir).Msg("dry run: nothing was built")
			return nil
		}
		return fmt.Errorf("%w: %s", project.ErrNoArtifacts, rc.Workflow.Build.OutputDir)
	}
	rc.Artifacts = arts

	if rc.Metadata.Version == "" {
		if v, err := project.VersionFromArtifacts(rc.Metadata.Name, arts); err == nil {
			rc.Metadata.Version = v
		} else {
			rc.Log.Warn().Err(err).Msg("could not determine the built version")
		}
	}
	if rc.Metadata.Name == "" {
		if n, _, ok := project.SplitDistName(arts[0].Name); ok {
			rc.Metadata.Name = n
		}
	}
	rc.Log.Info().Int("artifacts", len(arts)).Str("package", rc.Metadata.Name).Str("version", rc.Metadata.Version).Msg("build complete")
	return nil
}

// publishStage uploads every collected artifact.
type publishStage struct{ r *Runner }

func (publishStage) Name() string { return StagePublish }

func (s publishStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	wf := rc.Workflow
	if len(rc.Artifacts) == 0 && !rc.DryRun {
		return project.ErrNoArtifacts
	}

	// fetched here so the value lives only for the duration of this stage
	token, err := s.r.opts.Secrets.Lookup(wf.Publish.TokenSecret)
	if err != nil {
		if !rc.DryRun || !errors.Is(err, secrets.ErrNotFound) {
			return fmt.Errorf("publish credential: %w", err)
		}
		rc.Log.Warn().Str("secret", wf.Publish.TokenSecret).Msg("dry run: credential not set")
	}

	files := make([]string, 0, len(rc.Artifacts))
	for _, a := range rc.Artifacts {
		files = append(files, filepath.Join(wf.Build.OutputDir, a.Name))
	}
	params := baseParams(rc)
	if len(files) > 0 {
		params[workflow.ParamArtifacts] = workflow.Quote(files...)
	} else {
		params[workflow.ParamArtifacts] = workflow.Quote(filepath.Join(wf.Build.OutputDir, "*"))
	}
	cmd, err := workflow.Expand(wf.Publish.Command, params)
	if err != nil {
		return err
	}

	s.r.warnIfPublished(rc)

	if s.r.opts.Confirm != nil && !rc.DryRun {
		ok, err := s.r.opts.Confirm(Plan{
			Package:  rc.Metadata.Name,
			Version:  rc.Metadata.Version,
			IndexURL: wf.Publish.RepositoryURL,
			Files:    files,
		})
		if err != nil {
			return fmt.Errorf("confirm publish: %w", err)
		}
		if !ok {
			return ErrPublishDeclined
		}
	}

	env := append(rc.Env(),
		wf.Publish.UsernameEnv+"="+wf.Publish.Username,
		wf.Publish.PasswordEnv+"="+token,
	)
	if wf.Publish.RepositoryURL != "" {
		env = append(env, workflow.DefaultRepositoryEnv+"="+wf.Publish.RepositoryURL)
	}

	stdout := security.NewRedactor(rc.Stdout, token)
	stderr := security.NewRedactor(rc.Stderr, token)
	err = s.r.runner(rc).Execute(ctx, cmd, rc.WorkDir, env, stdout, stderr)
	_ = stdout.Flush()
	_ = stderr.Flush()
	if err != nil {
		return fmt.Errorf("upload failed: %w", redactError(err, token))
	}
	if !rc.DryRun {
		rc.Uploaded = append([]project.Artifact(nil), rc.Artifacts...)
	}
	return nil
}

// baseParams returns the placeholders every stage command may use.
func baseParams(rc *pipeline.RunContext) map[string]string {
	python := "python"
	if rc.Runtime != nil {
		python = rc.Runtime.Interpreter
	}
	return map[string]string{
		workflow.ParamPython:    workflow.Quote(python),
		workflow.ParamOutputDir: workflow.Quote(rc.Workflow.Build.OutputDir),
	}
}

// redactError scrubs the credential from captured command output.
func redactError(err error, token string) error {
	if token == "" {
		return err
	}
	var ee *executor.ExitError
	if errors.As(err, &ee) {
		cp := *ee
		cp.Command = security.RedactString(cp.Command, token)
		cp.Tail = security.RedactString(cp.Tail, token)
		return &cp
	}
	if strings.Contains(err.Error(), token) {
		return errors.New(security.RedactString(err.Error(), token))
	}
	return err
}
