package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lethe-mem/lethe/internal/config"
	"github.com/lethe-mem/lethe/internal/engine"
	"github.com/lethe-mem/lethe/internal/store"
)

// loadConfig loads configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath, nil)
}

// openStore opens the configured persistence backend.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Backend {
	case "badger":
		dir := cfg.Database.Path
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("get home dir: %w", err)
			}
			dir = home + "/.lethe/badger"
		}
		return store.OpenBadger(dir)
	default:
		path := cfg.Database.Path
		if path == "" {
			var err error
			path, err = store.DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("resolve db path: %w", err)
			}
		}
		return store.Open(path)
	}
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newEngine wires up an engine from config with logging attached.
func newEngine(cfg *config.Config, st store.Store) *engine.Engine {
	eng := engine.New(st, cfg.Memory)
	eng.SetLogger(newLogger(cfg))
	return eng
}
