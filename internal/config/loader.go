// Package config provides configuration loading for the decision engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for policyforge.yaml/.yml
// in standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("policyforge")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: POLICYFORGE_SOLVER_DEADLINE, etc.
	viper.SetEnvPrefix("POLICYFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()

	// POLICY_PATH (unprefixed, per spec.md §6) takes precedence over any
	// policy_path set in a config file.
	if p := os.Getenv("POLICY_PATH"); p != "" {
		viper.Set("policy_path", p)
	}
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".policyforge"),
		"/etc/policyforge",
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "policyforge"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment variable support.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("policy_path")
	_ = viper.BindEnv("solver.deadline")
	_ = viper.BindEnv("solver.max_branch_and_bound_nodes")
	_ = viper.BindEnv("solver.max_core_resolves")
	_ = viper.BindEnv("cache.dir")
	_ = viper.BindEnv("cache.enabled")
	_ = viper.BindEnv("hot_reload")
	_ = viper.BindEnv("log_level")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates.
func LoadConfig() (*EngineConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg EngineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigForPolicy loads configuration exactly as LoadConfig does, but
// first defaults policy_path to policyPath if no config file or
// environment variable has already set it. The CLI commands always carry
// the document to compile as a positional argument rather than through
// policy_path, which would otherwise trip EngineConfig's `required` tag
// on every invocation that has no policyforge.yaml/POLICY_PATH configured.
func LoadConfigForPolicy(policyPath string) (*EngineConfig, error) {
	viper.SetDefault("policy_path", policyPath)
	return LoadConfig()
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or an empty string if none was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
