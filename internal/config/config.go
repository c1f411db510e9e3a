package config

import (
	"time"
)

// Config is the root configuration for the Kakak gateway and worker.
type Config struct {
	Company   CompanyConfig   `json:"company"`
	Agents    AgentsConfig    `json:"agents"`
	Providers ProvidersConfig `json:"providers"`
	Telegram  TelegramConfig  `json:"telegram"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Worker    WorkerConfig    `json:"worker,omitempty"`
	Gateway   GatewayConfig   `json:"gateway,omitempty"`
	Digest    DigestConfig    `json:"digest,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// CompanyConfig describes the business the agents act for. Injected into
// every agent system prompt.
type CompanyConfig struct {
	Name          string      `json:"name"`
	ToneAndManner string      `json:"tone_and_manner,omitempty"`
	Timezone      string      `json:"timezone,omitempty"`
	KnowledgeBase []KBArticle `json:"knowledge_base,omitempty"`
}

// KBArticle is one knowledge base entry the chat agent can search.
type KBArticle struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// AgentsConfig holds shared agent-loop settings.
type AgentsConfig struct {
	Provider          string  `json:"provider"`        // "anthropic" or "openai"
	Model             string  `json:"model,omitempty"` // empty = provider default
	MaxTokens         int     `json:"max_tokens,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	MaxToolIterations int     `json:"max_tool_iterations,omitempty"`
}

// ProvidersConfig configures LLM backends. API keys come from env only.
type ProvidersConfig struct {
	Anthropic ProviderSpec `json:"anthropic,omitempty"`
	OpenAI    ProviderSpec `json:"openai,omitempty"`
}

// ProviderSpec is one LLM backend endpoint.
type ProviderSpec struct {
	APIKey  string `json:"-"` // env only: KAKAK_ANTHROPIC_API_KEY / KAKAK_OPENAI_API_KEY
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// TelegramConfig configures the inbound channel. Token from env only.
type TelegramConfig struct {
	Token          string  `json:"-"` // env KAKAK_TELEGRAM_TOKEN only
	Mode           string  `json:"mode,omitempty"` // "polling" (default) or "webhook"
	WebhookSecret  string  `json:"-"`              // env KAKAK_TELEGRAM_WEBHOOK_SECRET
	SendRatePerSec float64 `json:"send_rate_per_sec,omitempty"`
	SendBurst      int     `json:"send_burst,omitempty"`
}

// DatabaseConfig selects the storage backend.
// PostgresDSN is NEVER read from config.json (secret) — env KAKAK_POSTGRES_DSN only.
type DatabaseConfig struct {
	Mode        string `json:"mode,omitempty"` // "standalone" (SQLite, default) or "managed" (Postgres)
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"`
}

// WorkerConfig tunes the queue worker loop.
type WorkerConfig struct {
	PollInterval     Duration `json:"poll_interval,omitempty"`     // idle sleep between empty polls
	InvokeTimeout    Duration `json:"invoke_timeout,omitempty"`    // upper bound on one orchestrator run
	HistoryThreshold int      `json:"history_threshold,omitempty"` // chars of history before summarization
}

// GatewayConfig configures the HTTP server.
type GatewayConfig struct {
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	AuthToken string `json:"-"` // env KAKAK_API_TOKEN only; empty disables auth
}

// DigestConfig schedules the daily digest agent.
type DigestConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Cron    string `json:"cron,omitempty"` // gronx expression, default "0 9 * * *"
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // host:port of the OTLP collector
	Protocol string `json:"protocol,omitempty"` // "http" (default) or "grpc"
	Insecure bool   `json:"insecure,omitempty"`
}

// Duration is a time.Duration that unmarshals from JSON strings like "5s".
// Bare numbers are interpreted as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		parsed, err := time.ParseDuration(s[1 : len(s)-1])
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	parsed, err := time.ParseDuration(s + "s")
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// HasAnyProvider reports whether at least one LLM API key is configured.
func (c *Config) HasAnyProvider() bool {
	return c.Providers.Anthropic.APIKey != "" || c.Providers.OpenAI.APIKey != ""
}

// IsManagedMode reports whether Postgres-backed storage is active.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}
