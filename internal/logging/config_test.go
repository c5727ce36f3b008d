package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"error":   zerolog.ErrorLevel,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q) = %v, %v; want %v", raw, got, ok, want)
		}
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("unknown level should not be accepted")
	}
	if _, ok := parseLevel(""); ok {
		t.Fatalf("empty level should not override")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogTimestamp, "nope")
	cfg := defaultConfig(ProfileRuntime)
	if !applyEnvOverrides(&cfg) {
		t.Fatalf("level from env should be reported as pinned")
	}
	if cfg.Level != zerolog.ErrorLevel || !cfg.NoColor || cfg.Timestamp {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestNewWritesConsoleLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})
	l.Debug().Msg("hidden")
	l.Info().Str("stage", "build").Msg("stage started")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
	if !strings.Contains(out, "stage started") || !strings.Contains(out, "stage=build") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEnableDebugRaisesConfiguredLogger(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	ConfigureRuntime()
	l := L()
	if l.Debug().Enabled() {
		t.Fatalf("runtime profile should not log debug before EnableDebug")
	}
	EnableDebug()
	l = L()
	if !l.Debug().Enabled() {
		t.Fatalf("EnableDebug should let debug events through")
	}
}

func TestTestProfileLogsDebug(t *testing.T) {
	if cfg := defaultConfig(ProfileTest); cfg.Level != zerolog.DebugLevel {
		t.Fatalf("test profile level = %v", cfg.Level)
	}
	if cfg := defaultConfig(ProfileRuntime); cfg.Level != zerolog.InfoLevel {
		t.Fatalf("runtime profile level = %v", cfg.Level)
	}
}
