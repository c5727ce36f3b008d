// Package config resolves where pyship keeps its state and which workflow
// file a project uses.
package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvPyshipHome overrides the data directory (default ~/.pyship).
	EnvPyshipHome = "PYSHIP_HOME"
	// EnvPyshipDB overrides the full path of the history database.
	EnvPyshipDB = "PYSHIP_DB"

	// WorkflowFile is the default workflow file name inside a project.
	WorkflowFile = ".pyship.yaml"
)

// DataDir returns the directory used to store pyship data.
func DataDir() (string, error) {
	if d := os.Getenv(EnvPyshipHome); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pyship"), nil
}

// EnsureDataDir returns DataDir after creating it with owner-only permissions.
func EnsureDataDir() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d, 0o700); err != nil {
		return "", err
	}
	return d, nil
}

// DBPath returns the full path to the SQLite history database.
func DBPath() (string, error) {
	if p := os.Getenv(EnvPyshipDB); p != "" {
		return p, nil
	}
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "pyship.db"), nil
}

// SecretsPath returns the location of the file-backed secret store.
func SecretsPath() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "secrets.json"), nil
}

// WorkflowPath resolves the workflow file for a project directory. An
// explicit path wins; otherwise the default file name inside dir is used.
func WorkflowPath(dir, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(dir, WorkflowFile)
}
