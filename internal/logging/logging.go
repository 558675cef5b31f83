// Package logging provides structured logging built on log/slog, rotated
// with lumberjack, matching the conventions the rest of the engine expects
// from a service-scoped logger.
package logging

import (
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu           sync.RWMutex
	structured   *slog.Logger
	level        = new(slog.LevelVar)
	initOnce     sync.Once
	rotatingFile *lumberjack.Logger
)

// Config controls where and how the engine logs.
type Config struct {
	FilePath   string // rotated JSON log destination; empty disables file logging
	Level      slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init sets up the package-level logger. Safe to call multiple times; only
// the first call takes effect.
func Init(cfg Config) {
	initOnce.Do(func() {
		level.Set(cfg.Level)

		var handler slog.Handler
		if cfg.FilePath != "" {
			rotatingFile = &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    orDefault(cfg.MaxSizeMB, 100),
				MaxBackups: orDefault(cfg.MaxBackups, 3),
				MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			}
			handler = slog.NewJSONHandler(rotatingFile, &slog.HandlerOptions{Level: level})
		} else {
			handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		}

		mu.Lock()
		structured = slog.New(handler)
		mu.Unlock()
		slog.SetDefault(structured)
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SetLevel changes the active log level for all loggers derived from this
// package.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ForService returns a logger tagged with the given service/component name.
// Returns slog.Default() if Init has not been called, so callers never need
// a nil check — matching the teacher's fallback idiom.
func ForService(name string) *slog.Logger {
	mu.RLock()
	base := structured
	mu.RUnlock()
	if base == nil {
		return slog.Default().With("service", name)
	}
	return base.With("service", name)
}

// Close releases the rotating file handle, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotatingFile != nil {
		return rotatingFile.Close()
	}
	return nil
}
