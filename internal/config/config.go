package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	RedisURL    string        `mapstructure:"REDIS_URL"`
	SnapshotTTL time.Duration `mapstructure:"SNAPSHOT_TTL"`

	MQTTBrokerURL string `mapstructure:"MQTT_BROKER_URL"`
	MQTTClientID  string `mapstructure:"MQTT_CLIENT_ID"`

	AIBaseURL string        `mapstructure:"AI_BASE_URL"`
	AIAPIKey  string        `mapstructure:"AI_API_KEY"`
	AIModel   string        `mapstructure:"AI_MODEL"`
	AITimeout time.Duration `mapstructure:"AI_TIMEOUT"`

	ThresholdsFile string `mapstructure:"THRESHOLDS_FILE"`

	AlertWorkers    int `mapstructure:"ALERT_WORKERS"`
	AlertQueueSize  int `mapstructure:"ALERT_QUEUE_SIZE"`
	AlertMaxRetries int `mapstructure:"ALERT_MAX_RETRIES"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SNAPSHOT_TTL", "1h")
	v.SetDefault("MQTT_CLIENT_ID", "triage-server")
	v.SetDefault("AI_TIMEOUT", "10s")
	v.SetDefault("ALERT_WORKERS", 2)
	v.SetDefault("ALERT_QUEUE_SIZE", 64)
	v.SetDefault("ALERT_MAX_RETRIES", 3)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("SNAPSHOT_TTL")
	v.BindEnv("MQTT_BROKER_URL")
	v.BindEnv("MQTT_CLIENT_ID")
	v.BindEnv("AI_BASE_URL")
	v.BindEnv("AI_API_KEY")
	v.BindEnv("AI_MODEL")
	v.BindEnv("AI_TIMEOUT")
	v.BindEnv("THRESHOLDS_FILE")
	v.BindEnv("ALERT_WORKERS")
	v.BindEnv("ALERT_QUEUE_SIZE")
	v.BindEnv("ALERT_MAX_RETRIES")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run with.
func (c *Config) Validate() error {
	switch c.Env {
	case "development", "production", "test":
	default:
		return fmt.Errorf("ENV must be \"development\", \"production\", or \"test\", got %q", c.Env)
	}
	if c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS out of range: %d/%d", c.DBMinConns, c.DBMaxConns)
	}
	if c.SnapshotTTL < 0 {
		return fmt.Errorf("SNAPSHOT_TTL must not be negative")
	}
	if c.AIBaseURL != "" && c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive when AI_BASE_URL is set")
	}
	if c.AlertWorkers < 1 {
		return fmt.Errorf("ALERT_WORKERS must be at least 1")
	}
	if c.AlertQueueSize < 1 {
		return fmt.Errorf("ALERT_QUEUE_SIZE must be at least 1")
	}
	if c.AlertMaxRetries < 1 {
		return fmt.Errorf("ALERT_MAX_RETRIES must be at least 1")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit settings out of range: rps=%v burst=%d", c.RateLimitRPS, c.RateLimitBurst)
	}
	return nil
}
