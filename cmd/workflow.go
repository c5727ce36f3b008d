package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/VoxDroid/pyship/internal/config"
	"github.com/VoxDroid/pyship/internal/logging"
	"github.com/VoxDroid/pyship/internal/workflow"
)

// projectDir resolves --dir to an absolute path, defaulting to the working
// directory.
func projectDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// loadWorkflow loads the workflow for dir. An explicit --workflow must
// exist; otherwise a missing .pyship.yaml means the default workflow.
func loadWorkflow(dir, explicit string) (*workflow.Workflow, string, error) {
	path := config.WorkflowPath(dir, explicit)
	if explicit != "" {
		wf, err := workflow.Load(path)
		return wf, path, err
	}
	wf, found, err := workflow.LoadOrDefault(path)
	if err != nil {
		return nil, path, err
	}
	if !found {
		l := logging.L()
		l.Debug().Str("path", path).Msg("no workflow file, using defaults")
		path = ""
	}
	return wf, path, nil
}
