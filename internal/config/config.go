// Package config resolves loresmith's runtime settings (environment, .env
// files, CLI overrides) and the YAML rules file holding vocabularies and
// scoring weights.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment variable, e.g. LORESMITH_OUTPUT_DIR.
const EnvPrefix = "LORESMITH"

// Config is the process configuration read from LORESMITH_* variables.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	InputDirs []string `envconfig:"INPUT_DIRS" default:"data/raw"`
	Recursive bool     `envconfig:"RECURSIVE" default:"false"`
	OutputDir string   `envconfig:"OUTPUT_DIR" default:"data/processed"`
	DBPath    string   `envconfig:"DB_PATH" default:"data/processed/lore.db"`
	RulesPath string   `envconfig:"RULES_PATH" default:""`

	TokenizerPath string `envconfig:"TOKENIZER_PATH" default:""`
	MaxSeqLength  int    `envconfig:"MAX_SEQ_LENGTH" default:"512"`
	Persona       string `envconfig:"PERSONA" default:"XY Elder"`

	HTTPHost string `envconfig:"HTTP_HOST" default:"127.0.0.1"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, err
	}
	cfg.InputDirs = cfg.InputDirsList()
	return &cfg, nil
}

// Validate rejects settings the commands cannot run with.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel))); err != nil {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.LogLevel)
	}
	if len(c.InputDirsList()) == 0 {
		return fmt.Errorf("INPUT_DIRS requires at least one directory")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	if c.MaxSeqLength < 1 {
		return fmt.Errorf("MAX_SEQ_LENGTH must be >= 1")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Persona) == "" {
		return fmt.Errorf("PERSONA is required")
	}
	return nil
}

// InputDirsList returns the trimmed, de-duplicated input directories.
func (c *Config) InputDirsList() []string {
	if c == nil {
		return nil
	}
	dirs := make([]string, 0, len(c.InputDirs))
	seen := make(map[string]struct{}, len(c.InputDirs))
	for _, part := range c.InputDirs {
		dir := strings.TrimSpace(part)
		if dir == "" {
			continue
		}
		if _, exists := seen[dir]; exists {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}

