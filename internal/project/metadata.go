// Package project reads Python project metadata and inspects the
// distributions a build leaves in the output directory.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNoMetadata is returned when a directory has neither pyproject.toml nor
// a setup script.
var ErrNoMetadata = errors.New("no project metadata (pyproject.toml, setup.cfg or setup.py)")

// Metadata is the subset of project metadata pyship cares about.
type Metadata struct {
	Name    string
	Version string
	// DynamicVersion is set when the build backend computes the version.
	DynamicVersion bool
	// Source is the file the metadata came from.
	Source string
	// BuildBackend is [build-system].build-backend, if declared.
	BuildBackend string
}

// Known reports whether both name and version are known before the build.
func (m Metadata) Known() bool {
	return m.Name != "" && m.Version != ""
}

type pyprojectFile struct {
	BuildSystem struct {
		Requires     []string `toml:"requires"`
		BuildBackend string   `toml:"build-backend"`
	} `toml:"build-system"`
	Project *struct {
		Name    string   `toml:"name"`
		Version string   `toml:"version"`
		Dynamic []string `toml:"dynamic"`
	} `toml:"project"`
}

// ReadMetadata loads metadata from dir. A pyproject.toml with a [project]
// table must name the project and either pin a version or list it as
// dynamic. Legacy setup.py/setup.cfg projects are accepted with empty
// metadata; the build backend validates them.
func ReadMetadata(dir string) (Metadata, error) {
	path := filepath.Join(dir, "pyproject.toml")
	var raw pyprojectFile
	meta, err := toml.DecodeFile(path, &raw)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return legacyMetadata(dir)
	default:
		return Metadata{}, fmt.Errorf("parse %s: %w", path, err)
	}

	m := Metadata{Source: path, BuildBackend: strings.TrimSpace(raw.BuildSystem.BuildBackend)}
	if raw.Project == nil || !meta.IsDefined("project") {
		// build-system only; the backend reads setup.cfg/setup.py
		if _, lerr := legacyMetadata(dir); lerr != nil {
			return Metadata{}, fmt.Errorf("%s has no [project] table: %w", path, ErrNoMetadata)
		}
		return m, nil
	}

	m.Name = strings.TrimSpace(raw.Project.Name)
	if m.Name == "" {
		return Metadata{}, fmt.Errorf("%s: [project].name is required", path)
	}
	if !validName(m.Name) {
		return Metadata{}, fmt.Errorf("%s: invalid project name %q", path, m.Name)
	}
	for _, d := range raw.Project.Dynamic {
		if d == "version" {
			m.DynamicVersion = true
		}
	}
	m.Version = strings.TrimSpace(raw.Project.Version)
	switch {
	case m.Version != "" && m.DynamicVersion:
		return Metadata{}, fmt.Errorf("%s: version is both static and dynamic", path)
	case m.Version == "" && !m.DynamicVersion:
		return Metadata{}, fmt.Errorf("%s: [project].version is required unless listed in dynamic", path)
	}
	return m, nil
}

func legacyMetadata(dir string) (Metadata, error) {
	for _, name := range []string{"setup.cfg", "setup.py"} {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return Metadata{Source: p, DynamicVersion: true}, nil
		}
	}
	return Metadata{}, ErrNoMetadata
}

var nameRe = regexp.MustCompile(`(?i)^([A-Z0-9]|[A-Z0-9][A-Z0-9._-]*[A-Z0-9])$`)

func validName(name string) bool {
	return nameRe.MatchString(name)
}

var normalizeRe = regexp.MustCompile(`[-_.]+`)

// NormalizeName lowercases name and collapses runs of "-", "_" and "." to a
// single "-", the comparison form package indexes use.
func NormalizeName(name string) string {
	return strings.ToLower(normalizeRe.ReplaceAllString(name, "-"))
}

// DistName is the form used in distribution file names: normalized with
// "_" as separator.
func DistName(name string) string {
	return strings.ReplaceAll(NormalizeName(name), "-", "_")
}
