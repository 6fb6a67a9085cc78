// Package config layers the conductor CLI's settings: built-in defaults,
// overridden by a YAML file, overridden by environment variables, overridden
// by flags (highest precedence). Only the first three layers live here;
// cobra applies the flag layer at the call site since flags are parsed
// per-command.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is conductor's full layered configuration.
type Config struct {
	Mock       bool   `yaml:"mock" env:"CONDUCTOR_MOCK"`
	LogLevel   string `yaml:"log_level" env:"CONDUCTOR_LOG_LEVEL"`
	DBPath     string `yaml:"db_path" env:"CONDUCTOR_DB_PATH"`

	MaxIterations    int    `yaml:"max_iterations"`
	ConcurrencyLimit int    `yaml:"concurrency_limit"`
	TargetBranch     string `yaml:"target_branch"`
	MergeMethod      string `yaml:"merge_method"`
	Sequential       bool   `yaml:"sequential"`
	SkipRebase       bool   `yaml:"skip_rebase"`

	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	AWS       AWSConfig       `yaml:"aws"`
}

// AnthropicConfig holds Anthropic API credentials, read from the provider's
// canonical environment variable.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
}

// OpenAIConfig holds OpenAI API credentials.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key" env:"OPENAI_API_KEY"`
}

// AWSConfig holds the credentials and region Bedrock's rate-limit probe and
// model client need.
type AWSConfig struct {
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `yaml:"session_token" env:"AWS_SESSION_TOKEN"`
	Region          string `yaml:"region" env:"AWS_REGION"`
}

// Defaults returns a Config populated with conductor's built-in defaults,
// the base of the layering order.
func Defaults() *Config {
	return &Config{
		LogLevel:         "info",
		DBPath:           "conductor.db",
		MaxIterations:    25,
		ConcurrencyLimit: 8,
		MergeMethod:      "merge",
	}
}

// Load builds a Config from defaults, an optional YAML file, and the
// environment, in that precedence order. path may be empty, in which case
// the file layer is skipped; a missing file is not an error (mirrors the
// teacher's "config file is an optional override" posture).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("config: decode env: %w", err)
		}
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
