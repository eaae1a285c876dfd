package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeTemp(t, "config.json", `{
		"telegram": {"token": "tg-token"},
		"merchant": {"apiBase": "https://pay.example.com/api/v1/"},
		"webhook": {"secret": "hook-secret", "port": 9090},
		"directory": {"tokensFile": "tokens.json"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "tg-token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Webhook.Port != 9090 {
		t.Errorf("port = %d", cfg.Webhook.Port)
	}
	// Defaults survive a partial file.
	if cfg.Merchant.TimeoutSeconds != 10 {
		t.Errorf("timeoutSeconds default = %d", cfg.Merchant.TimeoutSeconds)
	}
	if cfg.General.MaxConcurrentUpdates != 10 {
		t.Errorf("maxConcurrentUpdates default = %d", cfg.General.MaxConcurrentUpdates)
	}
	if cfg.Telegram.ParseMode != "HTML" {
		t.Errorf("parseMode default = %q", cfg.Telegram.ParseMode)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
telegram:
  token: tg-token
merchant:
  apiBase: https://pay.example.com/api/v1/
webhook:
  secret: hook-secret
directory:
  tokensFile: tokens.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "tg-token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Merchant.APIBase != "https://pay.example.com/api/v1/" {
		t.Errorf("apiBase = %q", cfg.Merchant.APIBase)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("MB_TEST_TOKEN", "env-token")
	path := writeTemp(t, "config.json", `{
		"telegram": {"token": "${MB_TEST_TOKEN}"},
		"merchant": {"apiBase": "${MB_TEST_BASE:-http://localhost:8000/api/}"},
		"directory": {"tokensFile": "tokens.json"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.Telegram.Token)
	}
	if cfg.Merchant.APIBase != "http://localhost:8000/api/" {
		t.Errorf("apiBase = %q, want fallback default", cfg.Merchant.APIBase)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MB_SET", "value")
	os.Unsetenv("MB_UNSET")

	tests := []struct {
		in, want string
	}{
		{"${MB_SET}", "value"},
		{"${MB_SET:-fallback}", "value"},
		{"${MB_UNSET:-fallback}", "fallback"},
		{"${MB_UNSET}", "${MB_UNSET}"},
		{"prefix-${MB_SET}-suffix", "prefix-value-suffix"},
		{"no vars here", "no vars here"},
	}
	for _, tt := range tests {
		if got := ExpandEnvVars(tt.in); got != tt.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Merchant.APIBase = ""
	cfg.General.LogLevel = "verbose"
	cfg.Webhook.Path = "webhook"
	cfg.Directory.TokensFile = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"merchant.apiBase", "general.logLevel", "webhook.path", "directory.tokensFile"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateDefaults(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := Defaults()
	cfg.Telegram.Token = "saved-token"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Telegram.Token != "saved-token" {
		t.Errorf("token = %q", loaded.Telegram.Token)
	}
}
