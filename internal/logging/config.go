// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read once by Configure.
const (
	// EnvLogLevel pins the level (trace, debug, info, warn, error, off).
	// A pinned level is not raised by --verbose.
	EnvLogLevel = "PYSHIP_LOG_LEVEL"
	// EnvLogTimestamp turns timestamps on or off.
	EnvLogTimestamp = "PYSHIP_LOG_TIMESTAMP"
	// EnvLogNoColor disables ANSI colour.
	EnvLogNoColor = "PYSHIP_LOG_NOCOLOR"
)

// Profile selects the defaults Configure starts from.
type Profile int

const (
	// ProfileRuntime logs at info for the CLI and server.
	ProfileRuntime Profile = iota
	// ProfileTest logs everything at debug.
	ProfileTest
)

// Config controls the console logger.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

var (
	configureOnce sync.Once
	levelFromEnv  bool
)

// ConfigureRuntime installs the CLI logger.
func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

// ConfigureTests installs the debug logger used by package tests.
func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the global logger once. Later calls are no-ops.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		levelFromEnv = applyEnvOverrides(&cfg)
		log.Logger = New(cfg)
		zerolog.SetGlobalLevel(cfg.Level)
	})
}

// EnableDebug lowers the logger and global level to debug unless the level
// was pinned through the environment.
func EnableDebug() {
	if levelFromEnv {
		return
	}
	log.Logger = log.Logger.Level(zerolog.DebugLevel)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// L returns the configured logger.
func L() zerolog.Logger {
	return log.Logger
}

// New builds a console logger from cfg. Logs go to stderr so tool output
// on stdout stays clean.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	cw := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !cfg.Timestamp {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	return zerolog.New(cw).Level(cfg.Level).With().Timestamp().Logger()
}

func defaultConfig(profile Profile) Config {
	cfg := Config{NoColor: os.Getenv("NO_COLOR") != ""}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = false
	}
	return cfg
}

// applyEnvOverrides reports whether the level was set explicitly.
func applyEnvOverrides(cfg *Config) bool {
	pinned := false
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
		pinned = true
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	return pinned
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
