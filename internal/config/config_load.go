package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Company: CompanyConfig{
			Name:          "Kakak",
			ToneAndManner: "friendly and professional",
			Timezone:      "Asia/Singapore",
		},
		Agents: AgentsConfig{
			Provider:          "anthropic",
			MaxTokens:         4096,
			Temperature:       0.7,
			MaxToolIterations: 10,
		},
		Telegram: TelegramConfig{
			Mode:           "polling",
			SendRatePerSec: 1,
			SendBurst:      5,
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "~/.kakak/kakak.db",
		},
		Worker: WorkerConfig{
			PollInterval:     Duration(5 * time.Second),
			InvokeTimeout:    Duration(2 * time.Minute),
			HistoryThreshold: 4000,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18890,
		},
		Digest: DigestConfig{
			Cron: "0 9 * * *",
		},
		Telemetry: TelemetryConfig{
			Protocol: "http",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults + env apply.
// A .env file next to the config is loaded first (never overrides real env).
func Load(path string) (*Config, error) {
	if path != "" {
		_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides overlays KAKAK_* env vars onto the config.
// Env always wins over file values; secrets are env-only.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KAKAK_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("KAKAK_TELEGRAM_WEBHOOK_SECRET"); v != "" {
		c.Telegram.WebhookSecret = v
	}
	if v := os.Getenv("KAKAK_POSTGRES_DSN"); v != "" {
		c.Database.PostgresDSN = v
	}
	if v := os.Getenv("KAKAK_DB_MODE"); v != "" {
		c.Database.Mode = v
	}
	if v := os.Getenv("KAKAK_SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("KAKAK_ANTHROPIC_API_KEY"); v != "" {
		c.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("KAKAK_OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("KAKAK_API_TOKEN"); v != "" {
		c.Gateway.AuthToken = v
	}
	if v := os.Getenv("KAKAK_HOST"); v != "" {
		c.Gateway.Host = v
	}
	if v := os.Getenv("KAKAK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}
	if v := os.Getenv("KAKAK_COMPANY_NAME"); v != "" {
		c.Company.Name = v
	}
	if v := os.Getenv("KAKAK_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("KAKAK_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv("KAKAK_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
