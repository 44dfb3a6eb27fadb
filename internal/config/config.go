// Package config holds lethe configuration, including the retention policy
// tables the engine runs on. Values are loaded from defaults, an optional
// YAML file, and LETHE_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"time"
)

// Config holds all lethe configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Memory   Policy         `koanf:"memory"`
}

type ServerConfig struct {
	Bind string `koanf:"bind" validate:"required"`
	Port int    `koanf:"port" validate:"gt=0,lte=65535"`
}

type DatabaseConfig struct {
	Backend string `koanf:"backend" validate:"oneof=sqlite badger"`
	Path    string `koanf:"path"` // empty = default location
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Policy is the static policy table set: per-category TTLs and caps, tier
// time constants, reinforcement strengths, consolidation and pruning
// thresholds, and retrieval budgets. Pure data, no behavior.
type Policy struct {
	// Ingestion
	ValueMaxLen  int `koanf:"value_max_len" validate:"gt=0"`
	MinIngestLen int `koanf:"min_ingest_len" validate:"gte=0"`

	// Capacity
	TotalCap     int                      `koanf:"total_cap" validate:"gt=0"`
	CategoryCaps map[string]int           `koanf:"category_caps" validate:"dive,gte=0"`
	CategoryTTL  map[string]time.Duration `koanf:"category_ttl"` // 0 = never expires

	// Tier time constants
	TauWorking  time.Duration `koanf:"tau_working" validate:"gt=0"`
	TauSemantic time.Duration `koanf:"tau_semantic" validate:"gt=0"`

	// Reinforcement
	EtaConfirmed float64 `koanf:"eta_confirmed" validate:"gte=0"`
	EtaInferred  float64 `koanf:"eta_inferred" validate:"gte=0"`

	// Consolidation
	WorkingWindow     int     `koanf:"working_window" validate:"gt=0"`
	MergeOverlap      float64 `koanf:"merge_overlap" validate:"gte=0,lte=1"`
	RepeatOverlap     float64 `koanf:"repeat_overlap" validate:"gte=0,lte=1"`
	MinRepeats        int     `koanf:"min_repeats" validate:"gte=0"`
	MinImportance     float64 `koanf:"min_importance" validate:"gte=0,lte=1"`
	MinActivation     float64 `koanf:"min_activation" validate:"gte=0,lte=1"`
	TriggerImportance float64 `koanf:"trigger_importance" validate:"gte=0,lte=1"`

	// Retention
	WorkingKeep     int     `koanf:"working_keep" validate:"gt=0"`
	PruneActivation float64 `koanf:"prune_activation" validate:"gte=0,lte=1"`
	PruneImportance float64 `koanf:"prune_importance" validate:"gte=0,lte=1"`

	// Retrieval budgets
	PinnedLimit    int     `koanf:"pinned_limit" validate:"gt=0"`
	SemanticLimit  int     `koanf:"semantic_limit" validate:"gt=0"`
	WorkingLimit   int     `koanf:"working_limit" validate:"gte=0"`
	UncertainBelow float64 `koanf:"uncertain_below" validate:"gte=0,lte=1"`

	// Maintenance throttle
	MaintenanceInterval time.Duration `koanf:"maintenance_interval" validate:"gt=0"`
}

// TTLFor resolves a category's TTL. Unknown categories never expire.
func (p Policy) TTLFor(category string) time.Duration {
	return p.CategoryTTL[category]
}

// CapFor resolves a category's cap. 0 means no per-category cap.
func (p Policy) CapFor(category string) int {
	return p.CategoryCaps[category]
}

// Default returns a Config with the stock policy tables.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37741,
		},
		Database: DatabaseConfig{
			Backend: "sqlite",
			Path:    "", // resolved at runtime via store.DefaultDBPath()
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Memory: DefaultPolicy(),
	}
}

// DefaultPolicy returns the stock retention policy.
func DefaultPolicy() Policy {
	return Policy{
		ValueMaxLen:  600,
		MinIngestLen: 6,

		TotalCap: 600,
		CategoryCaps: map[string]int{
			"fact":            150,
			"preference":      100,
			"semantic":        200,
			"working":         50,
			"user":            100,
			"emotion_pattern": 50,
			"event":           100,
		},
		CategoryTTL: map[string]time.Duration{
			"fact":            0,
			"preference":      0,
			"user":            0,
			"semantic":        0,
			"working":         72 * time.Hour,
			"emotion_pattern": 90 * 24 * time.Hour,
			"event":           30 * 24 * time.Hour,
		},

		TauWorking:  6 * time.Hour,
		TauSemantic: 21 * 24 * time.Hour,

		EtaConfirmed: 0.9,
		EtaInferred:  0.25,

		WorkingWindow:     15,
		MergeOverlap:      0.45,
		RepeatOverlap:     0.6,
		MinRepeats:        2,
		MinImportance:     0.25,
		MinActivation:     0.35,
		TriggerImportance: 0.6,

		WorkingKeep:     15,
		PruneActivation: 0.25,
		PruneImportance: 0.55,

		PinnedLimit:    4,
		SemanticLimit:  8,
		WorkingLimit:   1,
		UncertainBelow: 0.8,

		MaintenanceInterval: 30 * time.Second,
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
