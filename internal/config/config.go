package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	OpenRouter OpenRouterConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Session    SessionConfig
	Tracing    TracingConfig
}

type ServerConfig struct {
	Port     string `validate:"required,numeric"`
	Env      string `validate:"required"`
	LogLevel string `validate:"oneof=trace debug info warn error"`
}

// OpenRouterConfig describes the upstream completion endpoint.
// Timeout zero means the transport default (no deadline).
type OpenRouterConfig struct {
	APIKey      string
	BaseURL     string `validate:"required,url"`
	Model       string `validate:"required"`
	HTTPReferer string
	AppTitle    string
	Timeout     time.Duration `validate:"gte=0"`
}

type RedisConfig struct {
	Addr     string `validate:"required"`
	Password string
	DB       int `validate:"gte=0"`
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	GeneratePerMin int `validate:"gt=0"`
}

type SessionConfig struct {
	MaxIdle       time.Duration `validate:"gt=0"`
	SweepInterval time.Duration `validate:"gt=0"`
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string `validate:"required_if=Enabled true"`
	ServiceName string
	SampleRate  float64 `validate:"gte=0,lte=1"`
}

// IsConfigured reports whether a real upstream can be called.
func (c OpenRouterConfig) IsConfigured() bool {
	return c.APIKey != ""
}

func Load() (*Config, error) {
	// A missing .env is fine
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("OPENROUTER_API_KEY")
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openrouter.base_url", "OPENROUTER_BASE_URL")
	_ = v.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	_ = v.BindEnv("openrouter.http_referer", "OPENROUTER_HTTP_REFERER")
	_ = v.BindEnv("openrouter.app_title", "OPENROUTER_APP_TITLE")
	_ = v.BindEnv("openrouter.timeout", "OPENROUTER_TIMEOUT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("ratelimit.generate_per_min", "RATELIMIT_GENERATE_PER_MIN")
	_ = v.BindEnv("session.max_idle", "SESSION_MAX_IDLE")
	_ = v.BindEnv("session.sweep_interval", "SESSION_SWEEP_INTERVAL")
	_ = v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	_ = v.BindEnv("tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("tracing.service_name", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("tracing.sample_rate", "TRACING_SAMPLE_RATE")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("ratelimit.generate_per_min", 10)
	v.SetDefault("session.max_idle", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)

	// OpenRouter defaults
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "deepseek/deepseek-chat-v3.1:free")
	v.SetDefault("openrouter.http_referer", "http://localhost:8000")
	v.SetDefault("openrouter.app_title", "Movie Idea Generator")
	v.SetDefault("openrouter.timeout", time.Duration(0))

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.service_name", "moviegen")
	v.SetDefault("tracing.sample_rate", 1.0)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: strings.ToLower(v.GetString("server.log_level")),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:      v.GetString("openrouter.api_key"),
			BaseURL:     strings.TrimSuffix(v.GetString("openrouter.base_url"), "/"),
			Model:       v.GetString("openrouter.model"),
			HTTPReferer: v.GetString("openrouter.http_referer"),
			AppTitle:    v.GetString("openrouter.app_title"),
			Timeout:     v.GetDuration("openrouter.timeout"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerMin: v.GetInt("ratelimit.generate_per_min"),
		},
		Session: SessionConfig{
			MaxIdle:       v.GetDuration("session.max_idle"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			Endpoint:    v.GetString("tracing.endpoint"),
			ServiceName: v.GetString("tracing.service_name"),
			SampleRate:  v.GetFloat64("tracing.sample_rate"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the struct tags on every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
