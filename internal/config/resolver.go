package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
)

type ResolvedValue struct {
	Key    string      `json:"key"`
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Overrides are CLI flag values. Empty strings, zero numbers and nil
// pointers leave the environment value in place.
type Overrides struct {
	InputDirs     []string
	Recursive     *bool
	OutputDir     string
	DBPath        string
	RulesPath     string
	TokenizerPath string
	MaxSeqLength  int
	Persona       string
	HTTPHost      string
	HTTPPort      int
	LogLevel      string
}

// Resolve applies defaults < env < CLI and validates the result.
func Resolve(o Overrides) (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}
	cfg.Apply(o)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Apply copies every set override onto c.
func (c *Config) Apply(o Overrides) {
	if len(o.InputDirs) > 0 {
		c.InputDirs = o.InputDirs
		c.InputDirs = c.InputDirsList()
	}
	if o.Recursive != nil {
		c.Recursive = *o.Recursive
	}
	apply(&c.OutputDir, o.OutputDir)
	apply(&c.DBPath, o.DBPath)
	apply(&c.RulesPath, o.RulesPath)
	apply(&c.TokenizerPath, o.TokenizerPath)
	apply(&c.HTTPHost, o.HTTPHost)
	apply(&c.LogLevel, o.LogLevel)
	apply(&c.Persona, o.Persona)
	if o.MaxSeqLength > 0 {
		c.MaxSeqLength = o.MaxSeqLength
	}
	if o.HTTPPort > 0 {
		c.HTTPPort = o.HTTPPort
	}

	c.DBPath = expandUserPath(c.DBPath)
	c.RulesPath = expandUserPath(c.RulesPath)
	c.TokenizerPath = expandUserPath(c.TokenizerPath)
}

// Explain reports every setting with where its value came from.
func Explain(c *Config, o Overrides) []ResolvedValue {
	rows := []struct {
		key   string
		value string
		cli   bool
		flag  string
	}{
		{"ENVIRONMENT", c.Environment, false, ""},
		{"LOG_LEVEL", c.LogLevel, o.LogLevel != "", "--log-level"},
		{"INPUT_DIRS", strings.Join(c.InputDirs, ","), len(o.InputDirs) > 0, "--input"},
		{"RECURSIVE", strconv.FormatBool(c.Recursive), o.Recursive != nil, "--recursive"},
		{"OUTPUT_DIR", c.OutputDir, o.OutputDir != "", "--out"},
		{"DB_PATH", c.DBPath, o.DBPath != "", "--db"},
		{"RULES_PATH", c.RulesPath, o.RulesPath != "", "--rules"},
		{"TOKENIZER_PATH", c.TokenizerPath, o.TokenizerPath != "", "--tokenizer"},
		{"MAX_SEQ_LENGTH", strconv.Itoa(c.MaxSeqLength), o.MaxSeqLength > 0, "--max-length"},
		{"PERSONA", c.Persona, o.Persona != "", "--persona"},
		{"HTTP_HOST", c.HTTPHost, o.HTTPHost != "", "--host"},
		{"HTTP_PORT", strconv.Itoa(c.HTTPPort), o.HTTPPort > 0, "--port"},
	}

	out := make([]ResolvedValue, 0, len(rows))
	for _, r := range rows {
		v := ResolvedValue{Key: r.key, Value: r.value, Source: SourceDefault, From: "built-in default"}
		envKey := EnvPrefix + "_" + r.key
		if _, ok := os.LookupEnv(envKey); ok {
			v.Source, v.From = SourceEnv, envKey
		}
		if r.cli {
			v.Source, v.From = SourceCLI, r.flag
		}
		out = append(out, v)
	}
	return out
}

func apply(dst *string, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		*dst = v
	}
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
