package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the DocLens server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Blob     BlobConfig
	AI       AIConfig
	Dispatch DispatchConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type BlobConfig struct {
	Endpoint       string // empty means the default AWS endpoint
	Region         string
	Bucket         string
	ForcePathStyle bool
}

type AIConfig struct {
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
	MaxAttempts      int
	BackoffBase      time.Duration
	InferenceTimeout time.Duration
	MaxInputChars    int
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type DispatchConfig struct {
	// InternalBaseURL is where the dispatcher reaches this service's own
	// internal trigger endpoint (usually the service itself).
	InternalBaseURL string
	InternalToken   string
	Timeout         time.Duration
	MaxAttempts     int
	BackoffBase     time.Duration
}

type RatePolicyConfig struct {
	Max    int
	Window time.Duration
}

type LimitsConfig struct {
	FreeTierJobs   int
	MaxUploadBytes int64
	PreviewChars   int
	UploadRate     RatePolicyConfig
	TriggerRate    RatePolicyConfig
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("DOCLENS_PORT", 8080),
			Env:  envString("DOCLENS_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Blob: BlobConfig{
			Endpoint:       os.Getenv("BLOB_ENDPOINT"),
			Region:         envString("BLOB_REGION", "us-east-1"),
			Bucket:         os.Getenv("BLOB_BUCKET"),
			ForcePathStyle: envBool("BLOB_FORCE_PATH_STYLE", false),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
			MaxAttempts:      envInt("AI_MAX_ATTEMPTS", 3),
			BackoffBase:      envDuration("AI_BACKOFF_BASE", time.Second),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			MaxInputChars:    envInt("AI_MAX_INPUT_CHARS", 12000),
		},
		Dispatch: DispatchConfig{
			InternalBaseURL: envString("DISPATCH_BASE_URL", "http://localhost:8080"),
			InternalToken:   os.Getenv("DISPATCH_INTERNAL_TOKEN"),
			Timeout:         envDuration("DISPATCH_TIMEOUT", 5*time.Second),
			MaxAttempts:     envInt("DISPATCH_MAX_ATTEMPTS", 3),
			BackoffBase:     envDuration("DISPATCH_BACKOFF_BASE", time.Second),
		},
		Limits: LimitsConfig{
			FreeTierJobs:   envInt("FREE_TIER_JOBS", 5),
			MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
			PreviewChars:   envInt("RESULT_PREVIEW_CHARS", 2000),
			UploadRate: RatePolicyConfig{
				Max:    envInt("RATE_UPLOAD_MAX", 10),
				Window: envDuration("RATE_UPLOAD_WINDOW", time.Minute),
			},
			TriggerRate: RatePolicyConfig{
				Max:    envInt("RATE_TRIGGER_MAX", 60),
				Window: envDuration("RATE_TRIGGER_WINDOW", time.Minute),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Blob.Bucket == "" {
		return fmt.Errorf("BLOB_BUCKET is required")
	}
	if c.Blob.Endpoint != "" &&
		!strings.HasPrefix(c.Blob.Endpoint, "http://") && !strings.HasPrefix(c.Blob.Endpoint, "https://") {
		return fmt.Errorf("BLOB_ENDPOINT must start with http:// or https://, got %q", c.Blob.Endpoint)
	}

	if c.Dispatch.InternalToken == "" {
		return fmt.Errorf("DISPATCH_INTERNAL_TOKEN is required")
	}

	if c.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Limits.FreeTierJobs < 0 {
		return fmt.Errorf("FREE_TIER_JOBS must not be negative")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
