// Package config provides the small set of tunable defaults cryptarc reads
// from an optional YAML file: the default KDF cost, agent behavior, and
// logging. It deliberately does not own key-file path resolution -- that is
// a one-line platform rule (see DefaultKeyPaths in paths.go), not something a
// user should need to override in a config file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds cryptarc's configurable defaults. Every field has a sane
// zero-config default via Default(); a config file only needs to set the
// fields it wants to override.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	KDF   KDFConfig   `yaml:"kdf"`
	Agent AgentConfig `yaml:"agent"`
}

// KDFConfig controls the default cost of the secret-key-protection KDF.
type KDFConfig struct {
	// IterationExponent is used by `keygen` when --iterations is not
	// given explicitly on the command line. Valid range is 5..31.
	IterationExponent int `yaml:"iteration_exponent"`
}

// AgentConfig controls the background key agent's default behavior.
type AgentConfig struct {
	// Enabled is the default for --agent / --no-agent when neither flag
	// is passed.
	Enabled bool `yaml:"enabled"`
	// IdleTimeout is how long a spawned agent waits between accepts
	// before exiting.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// Default returns cryptarc's built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		KDF: KDFConfig{
			IterationExponent: 18,
		},
		Agent: AgentConfig{
			Enabled:     true,
			IdleTimeout: 180 * time.Second,
		},
	}
}

// Load reads and parses a configuration file. A missing file is an error;
// callers that want an optional config file use LoadOptional instead.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOptional loads path if it exists, otherwise returns Default().
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	return Load(path)
}

// Parse parses configuration from YAML bytes, starting from Default() so an
// incomplete file only overrides the fields it mentions.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values,
// leaving unset variables in place unexpanded.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

// Validate checks that the configuration's values are within the ranges the
// rest of cryptarc assumes.
func (c *Config) Validate() error {
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	if !isValidLogFormat(c.LogFormat) {
		return fmt.Errorf("invalid log_format: %q", c.LogFormat)
	}
	if c.KDF.IterationExponent != 0 {
		if c.KDF.IterationExponent < 5 || c.KDF.IterationExponent > 31 {
			return fmt.Errorf("kdf.iteration_exponent must be between 5 and 31, got %d", c.KDF.IterationExponent)
		}
	}
	if c.Agent.IdleTimeout < 0 {
		return fmt.Errorf("agent.idle_timeout must not be negative")
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func isValidLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	}
	return false
}

// String renders the configuration as YAML, for --help-style diagnostics.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
