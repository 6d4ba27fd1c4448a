package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ragserve server.
type Config struct {
	Port      int
	Version   string
	DataDir   string
	Database  DatabaseConfig
	Telemetry TelemetryConfig
	Logging   LoggingConfig
	Auth      AuthConfig
	Providers ProviderConfig
	Inference InferenceConfig
	Events    EventsConfig
	Retention RetentionConfig
}

type DatabaseConfig struct {
	// URL selects the gorm/postgres store; empty keeps the in-memory store.
	URL            string
	MaxConnections int
	// PgvectorURL selects the pgvector index; empty keeps the embedded index.
	PgvectorURL string
	// RedisURL selects the Redis chat store; empty keeps go-cache.
	RedisURL string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
	// SampleRatio applies to root spans only; sampled parents are honored.
	SampleRatio  float64
}

type LoggingConfig struct {
	Level  string
	Format string // console | json
	File   string
}

type AuthConfig struct {
	APIKeys string
}

type ProviderConfig struct {
	OpenAIKey     string
	OpenAIBaseURL string
	AnthropicKey  string
	OllamaURL     string
	RerankURL     string
	RerankModel   string
	RerankKey     string
	CatalogFile   string
}

type InferenceConfig struct {
	DefaultSystem      string
	DefaultCensorship  string
	DefaultK           int
	DefaultScore       float64
	AgentMaxIterations int
	ChatTokenLimit     int
	ChatSessionTTL     time.Duration
	EvalLLM            string
	VisionSlots        int
}

type EventsConfig struct {
	NatsURL string
}

type RetentionConfig struct {
	Days     int
	Interval time.Duration
	// ArchiveDir enables the JSONL archiver; empty purges without archiving.
	ArchiveDir string
	Compress   bool
}

// Load reads configuration from a .env file (when present) and environment
// variables, with sensible defaults.
func Load() *Config {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	return &Config{
		Port:    envInt("PORT", 9000),
		Version: envStr("RAGSERVE_VERSION", "0.4.0"),
		DataDir: envStr("RAGSERVE_DATA_DIR", ""),
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 25),
			PgvectorURL:    envStr("PGVECTOR_URL", ""),
			RedisURL:       envStr("REDIS_URL", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "ragserve"),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Logging: LoggingConfig{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "console"),
			File:   envStr("LOG_FILE", ""),
		},
		Auth: AuthConfig{
			APIKeys: envStr("RAGSERVE_API_KEYS", ""),
		},
		Providers: ProviderConfig{
			OpenAIKey:     envStr("OPENAI_API_KEY", ""),
			OpenAIBaseURL: envStr("OPENAI_BASE_URL", ""),
			AnthropicKey:  envStr("ANTHROPIC_API_KEY", ""),
			OllamaURL:     envStr("OLLAMA_URL", "http://localhost:11434"),
			RerankURL:     envStr("RERANK_URL", ""),
			RerankModel:   envStr("RERANK_MODEL", "colbert-v2"),
			RerankKey:     envStr("RERANK_API_KEY", ""),
			CatalogFile:   envStr("LLM_CATALOG_FILE", ""),
		},
		Inference: InferenceConfig{
			DefaultSystem:      envStr("DEFAULT_SYSTEM", "You are a helpful assistant."),
			DefaultCensorship:  envStr("DEFAULT_CENSORSHIP", "I'm sorry, I don't know the answer to that."),
			DefaultK:           envInt("DEFAULT_K", 4),
			DefaultScore:       envFloat("DEFAULT_SCORE", 0.0),
			AgentMaxIterations: envInt("AGENT_MAX_ITERATIONS", 20),
			ChatTokenLimit:     envInt("CHAT_TOKEN_LIMIT", 3000),
			ChatSessionTTL:     envDuration("CHAT_SESSION_TTL", 24*time.Hour),
			EvalLLM:            envStr("EVAL_LLM", "gpt-4o"),
			VisionSlots:        envInt("VISION_SLOTS", 1),
		},
		Events: EventsConfig{
			NatsURL: envStr("NATS_URL", ""),
		},
		Retention: RetentionConfig{
			Days:       envInt("LOG_RETENTION_DAYS", 30),
			Interval:   envDuration("LOG_RETENTION_INTERVAL", time.Hour),
			ArchiveDir: envStr("LOG_ARCHIVE_DIR", ""),
			Compress:   envBool("LOG_ARCHIVE_COMPRESS", true),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
