// Package secrets resolves credentials by name at run time. Values are
// returned to the caller and never written to logs or the history database.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/VoxDroid/pyship/internal/config"
	"github.com/VoxDroid/pyship/internal/nameutil"
)

// ErrNotFound is returned when no store knows the requested secret.
var ErrNotFound = errors.New("secret not found")

// Store looks up a secret value by name.
type Store interface {
	Lookup(name string) (string, error)
}

// EnvStore reads secrets from the process environment, which is how CI
// platforms inject them.
type EnvStore struct {
	// Getenv defaults to os.LookupEnv.
	Getenv func(string) (string, bool)
}

// Lookup implements Store.
func (e EnvStore) Lookup(name string) (string, error) {
	get := e.Getenv
	if get == nil {
		get = os.LookupEnv
	}
	if v, ok := get(name); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

// FileStore keeps secrets in a JSON object on disk, readable only by the
// owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The file is created lazily
// on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFileStore returns the store in the pyship data directory.
func DefaultFileStore() (*FileStore, error) {
	p, err := config.SecretsPath()
	if err != nil {
		return nil, err
	}
	return NewFileStore(p), nil
}

func (f *FileStore) load() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse secret store %s: %w", f.path, err)
	}
	return m, nil
}

func (f *FileStore) save(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Lookup implements Store.
func (f *FileStore) Lookup(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return "", err
	}
	if v, ok := m[name]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Set stores value under name, replacing any previous value.
func (f *FileStore) Set(name, value string) error {
	if err := nameutil.ValidateSecretName(name); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("refusing to store empty value for %s", name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	m[name] = value
	return f.save(m)
}

// Delete removes name. Deleting an unknown name is not an error.
func (f *FileStore) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := m[name]; !ok {
		return nil
	}
	delete(m, name)
	return f.save(m)
}

// Names returns the stored secret names in sorted order.
func (f *FileStore) Names() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Chain consults each store in order and returns the first hit.
type Chain []Store

// Lookup implements Store.
func (c Chain) Lookup(name string) (string, error) {
	if err := nameutil.ValidateSecretName(name); err != nil {
		return "", err
	}
	for _, s := range c {
		v, err := s.Lookup(name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Default returns the environment store followed by the file store in the
// data directory.
func Default() (Store, error) {
	fs, err := DefaultFileStore()
	if err != nil {
		return nil, err
	}
	return Chain{EnvStore{}, fs}, nil
}
