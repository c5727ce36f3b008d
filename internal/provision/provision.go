// Package provision resolves a Python interpreter matching a version
// selector and makes sure its package installer is usable.
package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"

	"github.com/VoxDroid/pyship/internal/executor"
)

// ErrNoRuntime is returned when no interpreter satisfies the selector.
var ErrNoRuntime = errors.New("no matching python runtime")

// Runtime is a resolved interpreter.
type Runtime struct {
	Interpreter string
	Version     Version
	// Dir is prepended to PATH for later stages so `python` and `pip`
	// resolve to this runtime.
	Dir string
}

// PathEnv returns a PATH entry with Dir first.
func (r *Runtime) PathEnv() string {
	cur := os.Getenv("PATH")
	if cur == "" {
		return "PATH=" + r.Dir
	}
	return "PATH=" + r.Dir + string(os.PathListSeparator) + cur
}

// Provisioner discovers interpreters on PATH.
type Provisioner struct {
	Runner executor.Runner
	Log    zerolog.Logger
	// PathList defaults to the PATH environment variable.
	PathList string
	// DryRun reports a missing pip instead of bootstrapping it.
	DryRun bool
}

var candidateRe = regexp.MustCompile(`^python(3(\.\d+)?)?(\.exe)?$`)

// Resolve returns the newest interpreter matching selector. An explicit
// interpreter path skips discovery but must still match the selector.
func (p *Provisioner) Resolve(ctx context.Context, selector, interpreter string) (*Runtime, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}

	var candidates []string
	if interpreter != "" {
		abs, err := p.locate(interpreter)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoRuntime, err)
		}
		candidates = []string{abs}
	} else {
		candidates = p.candidates()
	}

	var best *Runtime
	for _, c := range candidates {
		v, err := p.queryVersion(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.Log.Debug().Str("interpreter", c).Err(err).Msg("skipping interpreter")
			continue
		}
		p.Log.Debug().Str("interpreter", c).Str("version", v.String()).Msg("found interpreter")
		if !sel.Matches(v) {
			continue
		}
		if best == nil || best.Version.Less(v) {
			best = &Runtime{Interpreter: c, Version: v, Dir: filepath.Dir(c)}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w for selector %s (checked %d candidates)", ErrNoRuntime, sel, len(candidates))
	}
	if err := p.ensurePip(ctx, best); err != nil {
		return nil, err
	}
	return best, nil
}

// locate turns an explicit interpreter into an absolute path. Bare names
// are looked up in the PATH list, never in the working directory.
func (p *Provisioner) locate(interpreter string) (string, error) {
	if strings.ContainsAny(interpreter, `/\`) {
		return filepath.Abs(interpreter)
	}
	names := []string{interpreter}
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(interpreter), ".exe") {
		names = append(names, interpreter+".exe")
	}
	for _, dir := range filepath.SplitList(p.pathList()) {
		if dir == "" || dir == "." {
			continue
		}
		for _, n := range names {
			full := filepath.Join(dir, n)
			if isExecutable(full) {
				return filepath.Abs(full)
			}
		}
	}
	return "", fmt.Errorf("interpreter %s not found in PATH", interpreter)
}

func (p *Provisioner) pathList() string {
	if p.PathList != "" {
		return p.PathList
	}
	return os.Getenv("PATH")
}

// candidates lists python executables in PATH order, de-duplicated by
// resolved path.
func (p *Provisioner) candidates() []string {
	seen := map[string]bool{}
	var out []string
	for _, dir := range filepath.SplitList(p.pathList()) {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !candidateRe.MatchString(e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, n := range names {
			full := filepath.Join(dir, n)
			if !isExecutable(full) {
				continue
			}
			key := full
			if resolved, err := filepath.EvalSymlinks(full); err == nil {
				key = resolved
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, full)
		}
	}
	return out
}

func isExecutable(path string) bool {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return strings.HasSuffix(strings.ToLower(path), ".exe")
	}
	return st.Mode().Perm()&0o111 != 0
}

func (p *Provisioner) queryVersion(ctx context.Context, interpreter string) (Version, error) {
	var out bytes.Buffer
	// python 2 prints its version on stderr
	if err := p.Runner.Execute(ctx, shellquote.Join(interpreter, "--version"), "", nil, &out, &out); err != nil {
		return Version{}, err
	}
	return ParseVersionOutput(out.String())
}

// ensurePip checks for the package installer and bootstraps it once with
// ensurepip when missing.
func (p *Provisioner) ensurePip(ctx context.Context, rt *Runtime) error {
	var out bytes.Buffer
	check := shellquote.Join(rt.Interpreter, "-m", "pip", "--version")
	if err := p.Runner.Execute(ctx, check, "", nil, &out, &out); err == nil {
		return nil
	}
	if p.DryRun {
		p.Log.Warn().Str("interpreter", rt.Interpreter).Msg("dry run: pip not available, a real run bootstraps it with ensurepip")
		return nil
	}
	p.Log.Warn().Str("interpreter", rt.Interpreter).Msg("pip not available, bootstrapping with ensurepip")
	out.Reset()
	if err := p.Runner.Execute(ctx, shellquote.Join(rt.Interpreter, "-m", "ensurepip", "--upgrade"), "", nil, &out, &out); err != nil {
		return fmt.Errorf("%w: %s has no usable pip: %v", ErrNoRuntime, rt.Interpreter, err)
	}
	out.Reset()
	if err := p.Runner.Execute(ctx, check, "", nil, &out, &out); err != nil {
		return fmt.Errorf("%w: %s has no usable pip after ensurepip: %v", ErrNoRuntime, rt.Interpreter, err)
	}
	return nil
}
