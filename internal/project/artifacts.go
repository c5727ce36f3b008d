package project

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoArtifacts is returned when the output directory holds nothing to
// upload.
var ErrNoArtifacts = errors.New("no artifacts in output directory")

// Kind classifies a distribution file.
type Kind string

// Artifact kinds.
const (
	KindSdist Kind = "sdist"
	KindWheel Kind = "wheel"
	KindOther Kind = "other"
)

// Artifact is one file in the output directory.
type Artifact struct {
	Name   string
	Path   string
	Size   int64
	SHA256 string
}

// Kind classifies the artifact by file name.
func (a Artifact) Kind() Kind {
	switch {
	case strings.HasSuffix(a.Name, ".whl"):
		return KindWheel
	case strings.HasSuffix(a.Name, ".tar.gz"), strings.HasSuffix(a.Name, ".zip"):
		return KindSdist
	default:
		return KindOther
	}
}

// Collect returns every regular file directly inside dir, sorted by name.
// This is the `dir/*` wildcard the upload step consumes; hidden files are
// included because the wildcard is applied verbatim.
func Collect(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		size, sum, err := hashFile(p)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", p, err)
		}
		out = append(out, Artifact{Name: e.Name(), Path: p, Size: size, SHA256: sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hashFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// Clean empties dir, creating it if needed. Only the directory's contents
// are removed.
func Clean(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// SplitDistName recovers the project and version from a distribution file
// name: "pkg-1.0.0.tar.gz" or "pkg-1.0.0-py3-none-any.whl".
func SplitDistName(file string) (name, version string, ok bool) {
	base := file
	switch {
	case strings.HasSuffix(base, ".whl"):
		parts := strings.Split(strings.TrimSuffix(base, ".whl"), "-")
		if len(parts) < 5 {
			return "", "", false
		}
		return parts[0], parts[1], true
	case strings.HasSuffix(base, ".tar.gz"):
		base = strings.TrimSuffix(base, ".tar.gz")
	case strings.HasSuffix(base, ".zip"):
		base = strings.TrimSuffix(base, ".zip")
	default:
		return "", "", false
	}
	i := strings.LastIndex(base, "-")
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	return base[:i], base[i+1:], true
}

// VersionFromArtifacts returns the version shared by the distributions of
// the named project. An empty name accepts any project.
func VersionFromArtifacts(name string, arts []Artifact) (string, error) {
	want := ""
	if name != "" {
		want = DistName(name)
	}
	version := ""
	for _, a := range arts {
		n, v, ok := SplitDistName(a.Name)
		if !ok {
			continue
		}
		if want != "" && DistName(n) != want {
			continue
		}
		if version != "" && v != version {
			return "", fmt.Errorf("artifacts disagree on version: %s and %s", version, v)
		}
		version = v
	}
	if version == "" {
		return "", fmt.Errorf("no distribution in %d artifacts names a version", len(arts))
	}
	return version, nil
}

// ExpectedNames returns the sdist and generic wheel names a standard build
// of m produces.
func ExpectedNames(m Metadata) []string {
	if !m.Known() {
		return nil
	}
	n := DistName(m.Name)
	return []string{
		fmt.Sprintf("%s-%s.tar.gz", n, m.Version),
		fmt.Sprintf("%s-%s-py3-none-any.whl", n, m.Version),
	}
}
