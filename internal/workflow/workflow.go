// Package workflow defines the release workflow: which interpreter to
// provision, how to build, where to publish and what to print on success.
package workflow

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/VoxDroid/pyship/internal/nameutil"
	"github.com/VoxDroid/pyship/internal/provision"
)

// TriggerManual is the only trigger a workflow can be wired to.
const TriggerManual = "manual"

// Defaults applied to fields a workflow file leaves empty.
const (
	DefaultName           = "release"
	DefaultPython         = "3.x"
	DefaultOutputDir      = "dist"
	DefaultBuildCommand   = "{{python}} -m build --outdir {{output_dir}}"
	DefaultPublishCommand = "{{python}} -m twine upload --non-interactive {{artifacts}}"
	DefaultUsername       = "__token__"
	DefaultTokenSecret    = "PYPI_API_TOKEN"
	DefaultUsernameEnv    = "TWINE_USERNAME"
	DefaultPasswordEnv    = "TWINE_PASSWORD"
	DefaultRepositoryEnv  = "TWINE_REPOSITORY_URL"
	DefaultMessage        = "Package published successfully"
)

// DefaultInstall upgrades the installer and installs the build and upload
// tools.
var DefaultInstall = []string{
	"{{python}} -m pip install --upgrade pip",
	"{{python}} -m pip install build twine",
}

// Workflow is a parsed release workflow.
type Workflow struct {
	Name    string      `yaml:"name"`
	Trigger string      `yaml:"trigger"`
	Runtime RuntimeSpec `yaml:"runtime"`
	Source  SourceSpec  `yaml:"source,omitempty"`
	Build   BuildSpec   `yaml:"build"`
	Publish PublishSpec `yaml:"publish"`
	Notify  NotifySpec  `yaml:"notify"`
}

// RuntimeSpec selects the interpreter.
type RuntimeSpec struct {
	// Python is a version selector such as "3.x", "3.12" or "3.12.4".
	Python string `yaml:"python"`
	// Interpreter pins an explicit executable and skips discovery.
	Interpreter string `yaml:"interpreter,omitempty"`
}

// SourceSpec optionally points at a repository to snapshot instead of the
// working directory.
type SourceSpec struct {
	Repository string `yaml:"repository,omitempty"`
	Ref        string `yaml:"ref,omitempty"`
}

// BuildSpec describes the install and build steps.
type BuildSpec struct {
	Install   []string `yaml:"install"`
	Command   string   `yaml:"command"`
	OutputDir string   `yaml:"output_dir"`
	Clean     *bool    `yaml:"clean,omitempty"`
}

// CleanOutput reports whether the output directory is emptied before the
// build. Defaults to true.
func (b BuildSpec) CleanOutput() bool {
	return b.Clean == nil || *b.Clean
}

// PublishSpec describes the upload step and its credential.
type PublishSpec struct {
	Command       string `yaml:"command"`
	Username      string `yaml:"username"`
	TokenSecret   string `yaml:"token_secret"`
	UsernameEnv   string `yaml:"username_env"`
	PasswordEnv   string `yaml:"password_env"`
	RepositoryURL string `yaml:"repository_url,omitempty"`
}

// NotifySpec holds the success message.
type NotifySpec struct {
	Message string `yaml:"message"`
}

// Default returns the stock workflow: manual trigger, latest 3.x
// interpreter, build sdist and wheel into dist/, upload everything with a
// token from PYPI_API_TOKEN.
func Default() *Workflow {
	w := &Workflow{}
	w.ApplyDefaults()
	return w
}

// ApplyDefaults fills every empty field with its default.
func (w *Workflow) ApplyDefaults() {
	w.Name, _ = nameutil.SanitizeName(w.Name)
	if w.Name == "" {
		w.Name = DefaultName
	}
	if w.Trigger == "" {
		w.Trigger = TriggerManual
	}
	if w.Runtime.Python == "" {
		w.Runtime.Python = DefaultPython
	}
	if w.Build.Install == nil {
		w.Build.Install = append([]string(nil), DefaultInstall...)
	}
	if w.Build.Command == "" {
		w.Build.Command = DefaultBuildCommand
	}
	if w.Build.OutputDir == "" {
		w.Build.OutputDir = DefaultOutputDir
	}
	if w.Publish.Command == "" {
		w.Publish.Command = DefaultPublishCommand
	}
	if w.Publish.Username == "" {
		w.Publish.Username = DefaultUsername
	}
	if w.Publish.TokenSecret == "" {
		w.Publish.TokenSecret = DefaultTokenSecret
	}
	if w.Publish.UsernameEnv == "" {
		w.Publish.UsernameEnv = DefaultUsernameEnv
	}
	if w.Publish.PasswordEnv == "" {
		w.Publish.PasswordEnv = DefaultPasswordEnv
	}
	if w.Notify.Message == "" {
		w.Notify.Message = DefaultMessage
	}
}

// Validate checks the semantic rules the schema cannot express.
func (w *Workflow) Validate() error {
	if err := nameutil.ValidateName(w.Name); err != nil {
		return fmt.Errorf("workflow name: %w", err)
	}
	if w.Trigger != TriggerManual {
		return fmt.Errorf("unsupported trigger %q: only %q is available", w.Trigger, TriggerManual)
	}
	if _, err := provision.ParseSelector(w.Runtime.Python); err != nil {
		return fmt.Errorf("runtime.python: %w", err)
	}
	out := filepath.Clean(w.Build.OutputDir)
	if filepath.IsAbs(out) || out == "." || out == ".." || strings.HasPrefix(out, ".."+string(filepath.Separator)) {
		return fmt.Errorf("build.output_dir %q must be a relative path inside the project", w.Build.OutputDir)
	}
	for i, c := range w.Build.Install {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("build.install[%d] is empty", i)
		}
	}
	if err := nameutil.ValidateSecretName(w.Publish.TokenSecret); err != nil {
		return fmt.Errorf("publish.token_secret: %w", err)
	}
	for field, v := range map[string]string{"publish.username_env": w.Publish.UsernameEnv, "publish.password_env": w.Publish.PasswordEnv} {
		if err := nameutil.ValidateSecretName(v); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	for i, c := range w.Build.Install {
		if err := checkParams(fmt.Sprintf("build.install[%d]", i), c, ParamPython, ParamOutputDir); err != nil {
			return err
		}
	}
	if err := checkParams("build.command", w.Build.Command, ParamPython, ParamOutputDir); err != nil {
		return err
	}
	if err := checkParams("publish.command", w.Publish.Command, ParamPython, ParamOutputDir, ParamArtifacts); err != nil {
		return err
	}
	if !slices.Contains(FindParams(w.Publish.Command), ParamArtifacts) {
		return fmt.Errorf("publish.command must reference {{%s}} so every built file is uploaded", ParamArtifacts)
	}
	return nil
}

// checkParams rejects placeholders the stage cannot fill.
func checkParams(field, cmd string, allowed ...string) error {
	for _, p := range FindParams(cmd) {
		if !slices.Contains(allowed, p) {
			return fmt.Errorf("%s: unknown parameter {{%s}} (available: %s)", field, p, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// Commands lists every command string in execution order, for safety checks
// and display.
func (w *Workflow) Commands() []string {
	out := append([]string(nil), w.Build.Install...)
	out = append(out, w.Build.Command, w.Publish.Command)
	return out
}
