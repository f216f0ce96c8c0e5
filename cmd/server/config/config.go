// Package config loads the server's settings from the environment.
// Required keys fail startup with a message naming the variable;
// optional keys leave the zero value or a documented default in place.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// PostgresConfig holds the database connection settings.
type PostgresConfig struct {
	URL          string
	MaxOpenConns *int
	MaxIdleConns *int
}

// RedisConfig holds cache connection settings. URL empty means the
// service runs without a cache.
type RedisConfig struct {
	URL                string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	EnableOTel         bool
}

// KafkaConfig holds event publishing settings. Empty brokers disable
// publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret []byte
}

// ObservabilityConfig holds the metrics listener address.
type ObservabilityConfig struct {
	Addr string
}

// Config is everything the server needs to start.
type Config struct {
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// Load reads the full configuration from env.
func Load() (Config, error) {
	var cfg Config
	var err error

	if cfg.HTTP, err = loadHTTP(); err != nil {
		return cfg, err
	}
	if cfg.Postgres, err = loadPostgres(); err != nil {
		return cfg, err
	}
	if cfg.Redis, err = loadRedis(); err != nil {
		return cfg, err
	}
	if cfg.Kafka, err = loadKafka(); err != nil {
		return cfg, err
	}
	if cfg.Auth, err = loadAuth(); err != nil {
		return cfg, err
	}
	if cfg.Observability, err = loadObservability(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadHTTP() (HTTPConfig, error) {
	cfg := HTTPConfig{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
	}
	if addr := strings.TrimSpace(os.Getenv("HTTP_ADDR")); addr != "" {
		cfg.Addr = addr
	}
	timeout, err := optionalDuration("HTTP_SHUTDOWN_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if timeout != nil {
		cfg.ShutdownTimeout = *timeout
	}
	return cfg, nil
}

func loadPostgres() (PostgresConfig, error) {
	var cfg PostgresConfig
	var err error

	if cfg.URL, err = requiredString("DATABASE_URL"); err != nil {
		return cfg, err
	}
	if cfg.MaxOpenConns, err = optionalInt("DATABASE_MAX_OPEN_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxIdleConns, err = optionalInt("DATABASE_MAX_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		URL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
		HealthcheckTimeout: 5 * time.Second,
	}
	if cfg.URL == "" {
		return cfg, nil
	}

	var err error
	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, err
	}
	if timeout, err := optionalDuration("REDIS_HEALTHCHECK_TIMEOUT"); err != nil {
		return cfg, err
	} else if timeout != nil {
		cfg.HealthcheckTimeout = *timeout
	}
	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadKafka() (KafkaConfig, error) {
	cfg := KafkaConfig{Topic: "storefront.orders"}
	raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if raw == "" {
		return cfg, nil
	}
	for _, broker := range strings.Split(raw, ",") {
		if b := strings.TrimSpace(broker); b != "" {
			cfg.Brokers = append(cfg.Brokers, b)
		}
	}
	if len(cfg.Brokers) == 0 {
		return cfg, fmt.Errorf("KAFKA_BROKERS contains no addresses")
	}
	if topic := strings.TrimSpace(os.Getenv("KAFKA_TOPIC")); topic != "" {
		cfg.Topic = topic
	}
	return cfg, nil
}

func loadAuth() (AuthConfig, error) {
	secret, err := requiredString("JWT_SECRET")
	if err != nil {
		return AuthConfig{}, err
	}
	return AuthConfig{JWTSecret: []byte(secret)}, nil
}

func loadObservability() (ObservabilityConfig, error) {
	cfg := ObservabilityConfig{Addr: ":9090"}
	if addr := strings.TrimSpace(os.Getenv("METRICS_ADDR")); addr != "" {
		cfg.Addr = addr
	}
	return cfg, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}
