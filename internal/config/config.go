// Package config provides configuration types for the policy decision
// engine: the policy document to load, solver resource limits, and the
// artifact cache location. It intentionally excludes an HTTP surface --
// the engine is exercised via cmd/policyctl or embedded as a library.
package config

import "time"

// EngineConfig is the top-level configuration for the decision engine.
type EngineConfig struct {
	// PolicyPath is the path to the policy YAML document to compile.
	// Required; also settable via the POLICY_PATH environment variable.
	PolicyPath string `yaml:"policy_path" mapstructure:"policy_path" validate:"required"`

	// Solver configures the bounded DPLL(T) solver's resource limits.
	Solver SolverConfig `yaml:"solver" mapstructure:"solver"`

	// Cache configures the precompiled policy artifact cache.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// HotReload recompiles the policy in the background when PolicyPath
	// changes on disk. An operational convenience, not a correctness
	// requirement -- in-flight Check calls always finish against the
	// policy snapshot they started with.
	HotReload bool `yaml:"hot_reload" mapstructure:"hot_reload"`

	// LogLevel controls the engine's slog verbosity: debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// SolverConfig bounds the resources a single Check call may consume.
type SolverConfig struct {
	// Deadline bounds one solver invocation; exceeding it is folded into
	// an unsat verdict with an empty core (spec.md §4.4).
	Deadline time.Duration `yaml:"deadline" mapstructure:"deadline" validate:"required"`

	// MaxBranchAndBoundNodes bounds the integer branch-and-bound search;
	// exhausting it is treated as solver "unknown", folded into unsat.
	MaxBranchAndBoundNodes int `yaml:"max_branch_and_bound_nodes" mapstructure:"max_branch_and_bound_nodes" validate:"required,gt=0"`

	// MaxCoreResolves bounds the deletion-based unsat-core minimization
	// loop's re-solve count, so a pathological policy cannot make core
	// extraction unbounded.
	MaxCoreResolves int `yaml:"max_core_resolves" mapstructure:"max_core_resolves" validate:"required,gt=0"`
}

// CacheConfig configures the precompiled policy artifact cache.
type CacheConfig struct {
	// Dir is the cache root directory; content-addressed subdirectories
	// and the artifacts.db index live underneath it.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`

	// Enabled is decoded with the rest of the config; no command reads it
	// (`cache warm` always writes, and `decide` never uses the cache).
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SetDefaults fills in values left unset after decoding.
func (c *EngineConfig) SetDefaults() {
	if c.Solver.Deadline == 0 {
		c.Solver.Deadline = 500 * time.Millisecond
	}
	if c.Solver.MaxBranchAndBoundNodes == 0 {
		c.Solver.MaxBranchAndBoundNodes = 256
	}
	if c.Solver.MaxCoreResolves == 0 {
		c.Solver.MaxCoreResolves = 64
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = ".policyforge-cache"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
