// Package testlog configures logging for package tests.
package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/VoxDroid/pyship/internal/logging"
)

// Start installs the test logger and returns it tagged with the test name.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	l := logging.L().With().Str("test", t.Name()).Logger()
	l.Debug().Msg("start")
	return l
}
