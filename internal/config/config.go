// Package config loads and validates the bot configuration from a JSON or
// YAML file, with ${VAR} / ${VAR:-default} environment substitution.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	General   GeneralConfig   `json:"general" yaml:"general"`
	Telegram  TelegramConfig  `json:"telegram" yaml:"telegram"`
	Merchant  MerchantConfig  `json:"merchant" yaml:"merchant"`
	Webhook   WebhookConfig   `json:"webhook" yaml:"webhook"`
	Directory DirectoryConfig `json:"directory" yaml:"directory"`
	State     StateConfig     `json:"state" yaml:"state"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel             string `json:"logLevel" yaml:"logLevel"`
	LogFile              string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	MaxConcurrentUpdates int    `json:"maxConcurrentUpdates" yaml:"maxConcurrentUpdates"`
}

type TelegramConfig struct {
	Token     string `json:"token" yaml:"token"`
	ParseMode string `json:"parseMode" yaml:"parseMode"`
}

type MerchantConfig struct {
	APIBase            string `json:"apiBase" yaml:"apiBase"`
	TimeoutSeconds     int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	InfoTimeoutSeconds int    `json:"infoTimeoutSeconds" yaml:"infoTimeoutSeconds"`
	// InsecureSkipVerify disables TLS verification for private deployments
	// with self-signed certificates.
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

type WebhookConfig struct {
	Host   string `json:"host" yaml:"host"`
	Port   int    `json:"port" yaml:"port"`
	Path   string `json:"path" yaml:"path"`
	Secret string `json:"secret" yaml:"secret"`
}

type DirectoryConfig struct {
	// TokensFile is a JSON table: credential -> list of chat identities.
	TokensFile string `json:"tokensFile" yaml:"tokensFile"`
}

type StateConfig struct {
	// DBPath enables the persistent SQLite state store; empty keeps
	// conversation state in memory.
	DBPath string `json:"dbPath,omitempty" yaml:"dbPath,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.merchantbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".merchantbot"
	}
	return filepath.Join(home, ".merchantbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, expands and validates a config file. The format follows the
// file extension: .yaml/.yml is YAML, anything else JSON.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Directory.TokensFile = ExpandPath(cfg.Directory.TokensFile)
	cfg.State.DBPath = ExpandPath(cfg.State.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// Save writes the config as indented JSON.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.MaxConcurrentUpdates < 1 || cfg.General.MaxConcurrentUpdates > 100 {
		errs = append(errs, "general.maxConcurrentUpdates must be between 1 and 100")
	}

	if cfg.Merchant.APIBase == "" {
		errs = append(errs, "merchant.apiBase is required")
	}
	if cfg.Merchant.TimeoutSeconds < 1 {
		errs = append(errs, "merchant.timeoutSeconds must be >= 1")
	}
	if cfg.Merchant.InfoTimeoutSeconds < 1 {
		errs = append(errs, "merchant.infoTimeoutSeconds must be >= 1")
	}

	if cfg.Webhook.Port < 0 || cfg.Webhook.Port > 65535 {
		errs = append(errs, "webhook.port must be between 0 and 65535")
	}
	if cfg.Webhook.Path != "" && !strings.HasPrefix(cfg.Webhook.Path, "/") {
		errs = append(errs, "webhook.path must start with /")
	}

	if cfg.Directory.TokensFile == "" {
		errs = append(errs, "directory.tokensFile is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
