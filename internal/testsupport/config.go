// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"shrinkray/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The throttle ticker is disabled so scheduler tests drive thermal checks
// explicitly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.History.Path = filepath.Join(base, "logs", "history.db")
	cfg.Scheduler.ThrottleCheckSeconds = 0
	cfg.Scheduler.MaxConcurrent = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMaxConcurrent overrides the concurrency ceiling on the test config.
func WithMaxConcurrent(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.MaxConcurrent = n
	}
}

// WithAckTimeout overrides the engine acknowledgment timeout in seconds.
func WithAckTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.AckTimeoutSeconds = seconds
	}
}

// WithAutoStartQueue toggles automatic admission from the queue.
func WithAutoStartQueue(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.AutoStartQueue = enabled
	}
}
