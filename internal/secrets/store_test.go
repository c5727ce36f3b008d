package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileStoreRoundTripAndPermissions(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "secrets.json")
	fs := NewFileStore(p)

	if _, err := fs.Lookup("PYPI_API_TOKEN"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}
	if err := fs.Set("PYPI_API_TOKEN", "pypi-abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := fs.Lookup("PYPI_API_TOKEN")
	if err != nil || v != "pypi-abc" {
		t.Fatalf("Lookup = %q, %v", v, err)
	}
	if runtime.GOOS != "windows" {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if st.Mode().Perm() != 0o600 {
			t.Fatalf("expected 0600 permissions, got %v", st.Mode().Perm())
		}
	}

	names, err := fs.Names()
	if err != nil || len(names) != 1 || names[0] != "PYPI_API_TOKEN" {
		t.Fatalf("Names = %v, %v", names, err)
	}
	if err := fs.Delete("PYPI_API_TOKEN"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := fs.Delete("PYPI_API_TOKEN"); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if _, err := fs.Lookup("PYPI_API_TOKEN"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFileStoreRejectsBadInput(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "s.json"))
	if err := fs.Set("lower", "x"); err == nil {
		t.Fatalf("expected invalid name to be rejected")
	}
	if err := fs.Set("OK", ""); err == nil {
		t.Fatalf("expected empty value to be rejected")
	}
}

func TestEnvStore(t *testing.T) {
	env := map[string]string{"PYPI_API_TOKEN": "from-env", "EMPTY": ""}
	s := EnvStore{Getenv: func(k string) (string, bool) { v, ok := env[k]; return v, ok }}
	if v, err := s.Lookup("PYPI_API_TOKEN"); err != nil || v != "from-env" {
		t.Fatalf("Lookup = %q, %v", v, err)
	}
	if _, err := s.Lookup("EMPTY"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty env value should count as missing, got %v", err)
	}
}

func TestChainPrefersEarlierStores(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "s.json"))
	if err := fs.Set("PYPI_API_TOKEN", "from-file"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := fs.Set("ONLY_FILE", "file-only"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	env := EnvStore{Getenv: func(k string) (string, bool) {
		if k == "PYPI_API_TOKEN" {
			return "from-env", true
		}
		return "", false
	}}
	c := Chain{env, fs}
	if v, _ := c.Lookup("PYPI_API_TOKEN"); v != "from-env" {
		t.Fatalf("expected env to win, got %q", v)
	}
	if v, _ := c.Lookup("ONLY_FILE"); v != "file-only" {
		t.Fatalf("expected file fallback, got %q", v)
	}
	if _, err := c.Lookup("MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Lookup("bad-name"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected validation error for bad name, got %v", err)
	}
}
