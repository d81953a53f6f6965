package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the release notes worker
type Config struct {
	// Worker configuration
	WorkerID string `env:"WORKER_ID" envDefault:"relnotes-1"`

	// Redis configuration
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration
	StreamKey     string        `env:"STREAM_KEY" envDefault:"relnotes.render"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"relnotes-workers"`
	ResultStream  string        `env:"RESULT_STREAM" envDefault:"relnotes.rendered"`
	BlockTime     time.Duration `env:"BLOCK_TIME" envDefault:"1s"`

	// Storage configuration
	TemplatePrefix string `env:"TEMPLATE_PREFIX" envDefault:"relnotes:template:"`
	StatePrefix    string `env:"STATE_PREFIX" envDefault:"graph:state:"`

	// Rendering configuration
	UnsafeExpressions    bool          `env:"UNSAFE_EXPRESSIONS" envDefault:"false"`
	// Custom helpers run as Go with the privileges of the worker, even when
	// UnsafeExpressions is off. Disable for untrusted requests.
	CustomHelpersEnabled bool          `env:"CUSTOM_HELPERS_ENABLED" envDefault:"true"`
	RenderTimeout        time.Duration `env:"RENDER_TIMEOUT" envDefault:"30s"`

	// LLM configuration, used only for polishing
	LLMProvider string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	LLMAPIKey   string        `env:"LLM_API_KEY"`
	LLMModel    string        `env:"LLM_MODEL" envDefault:"claude-sonnet-4-20250514"`
	LLMTimeout  time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	// Health check configuration
	HealthPort int `env:"HEALTH_PORT" envDefault:"8083"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadWith loads configuration from the given environment instead of the
// process environment
func LoadWith(environment map[string]string) (*Config, error) {
	return load(env.Options{Environment: environment})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.StreamKey == "" {
		return fmt.Errorf("STREAM_KEY is required")
	}

	if c.ConsumerGroup == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}

	if c.ResultStream == "" {
		return fmt.Errorf("RESULT_STREAM is required")
	}

	if c.ResultStream == c.StreamKey {
		return fmt.Errorf("RESULT_STREAM must differ from STREAM_KEY")
	}

	if c.TemplatePrefix == "" {
		return fmt.Errorf("TEMPLATE_PREFIX is required")
	}

	if c.StatePrefix == "" {
		return fmt.Errorf("STATE_PREFIX is required")
	}

	// LLM_API_KEY is optional, polishing is disabled without it

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	if c.RenderTimeout <= 0 {
		return fmt.Errorf("RENDER_TIMEOUT must be positive")
	}

	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME must be positive")
	}

	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be between 1 and 65535")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}

// PolishEnabled reports whether an LLM is configured for polishing
func (c *Config) PolishEnabled() bool {
	return c.LLMAPIKey != "" && c.LLMProvider != "" && c.LLMModel != ""
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, RedisAddr=%s, RedisDB=%d, StreamKey=%s, ConsumerGroup=%s, "+
			"ResultStream=%s, UnsafeExpressions=%v, CustomHelpers=%v, "+
			"LLMProvider=%s, LLMModel=%s, Polish=%v, HealthPort=%d, LogLevel=%s}",
		c.WorkerID,
		c.RedisAddr,
		c.RedisDB,
		c.StreamKey,
		c.ConsumerGroup,
		c.ResultStream,
		c.UnsafeExpressions,
		c.CustomHelpersEnabled,
		c.LLMProvider,
		c.LLMModel,
		c.PolishEnabled(),
		c.HealthPort,
		c.LogLevel,
	)
}
