// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTIssuer   string `mapstructure:"JWT_ISSUER"`
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	RedisURL string `mapstructure:"REDIS_URL"`

	PushTransport string        `mapstructure:"PUSH_TRANSPORT"`
	AMQPURL       string        `mapstructure:"AMQP_URL"`
	PushQueueSize int           `mapstructure:"PUSH_QUEUE_SIZE"`
	PushWorkers   int           `mapstructure:"PUSH_WORKERS"`
	PushTimeout   time.Duration `mapstructure:"PUSH_TIMEOUT"`

	RetentionDays     int           `mapstructure:"RETENTION_DAYS"`
	RetentionInterval time.Duration `mapstructure:"RETENTION_INTERVAL"`
	UnreadCacheTTL    time.Duration `mapstructure:"UNREAD_CACHE_TTL"`

	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// Push transports accepted by PUSH_TRANSPORT.
const (
	PushTransportRedis = "redis"
	PushTransportAMQP  = "amqp"
	PushTransportLocal = "local"
)

// SetDefaults registers development defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8380")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "quill-api")
	v.SetDefault("JWT_AUDIENCE", "quill-client")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "quill")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "quill.db")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("PUSH_TRANSPORT", PushTransportRedis)
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("PUSH_QUEUE_SIZE", 256)
	v.SetDefault("PUSH_WORKERS", 2)
	v.SetDefault("PUSH_TIMEOUT", 3*time.Second)
	v.SetDefault("RETENTION_DAYS", 30)
	v.SetDefault("RETENTION_INTERVAL", 24*time.Hour)
	v.SetDefault("UNREAD_CACHE_TTL", 30*time.Second)
	v.SetDefault("TRACING_EXPORTER", "none")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

// LoadConfig loads application configuration from .env, config files and
// environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	env := v.GetString("APP_ENV")
	if env != "" && env != "development" && env != "test" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// IsProduction reports whether the config targets production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	switch strings.ToLower(c.PushTransport) {
	case PushTransportRedis, PushTransportLocal:
	case PushTransportAMQP:
		if c.AMQPURL == "" {
			return errors.New("AMQP_URL is required when PUSH_TRANSPORT is amqp")
		}
	default:
		return fmt.Errorf("unknown PUSH_TRANSPORT %q", c.PushTransport)
	}

	if c.PushQueueSize <= 0 {
		return errors.New("PUSH_QUEUE_SIZE must be positive")
	}
	if c.PushWorkers <= 0 {
		return errors.New("PUSH_WORKERS must be positive")
	}
	if c.RetentionDays <= 0 {
		return errors.New("RETENTION_DAYS must be positive")
	}

	// Strict checks for production
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
