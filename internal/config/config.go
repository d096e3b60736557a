package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backends for the durable bid collection
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

type Config struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Store    StoreConfig    `mapstructure:"store"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
}

type RabbitMQConfig struct {
	URL     string `mapstructure:"url"`
	Host    string `mapstructure:"host"`
	Queue   string `mapstructure:"queue"`
	AckMode string `mapstructure:"ack_mode"`
}

type StoreConfig struct {
	Backend           string        `mapstructure:"backend"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MaxInFlightWrites int64         `mapstructure:"max_inflight_writes"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from defaults, an optional config.yaml and the
// environment (after .env files are loaded into it). Environment wins.
func Load() (*Config, error) {
	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.queue", "bidsQueue")
	v.SetDefault("rabbitmq.ack_mode", "auto")
	v.SetDefault("store.backend", BackendMongo)
	v.SetDefault("store.write_timeout", time.Duration(0))
	v.SetDefault("store.max_inflight_writes", 0)
	v.SetDefault("store.shutdown_timeout", 10*time.Second)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "auctiondb")
	v.SetDefault("mongo.collection", "bids")
	v.SetDefault("postgres.url", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	bindings := map[string]string{
		"rabbitmq.url":              "RABBITMQ_URL",
		"rabbitmq.host":             "RABBIT_HOST",
		"rabbitmq.queue":            "BIDS_QUEUE",
		"rabbitmq.ack_mode":         "BIDS_ACK_MODE",
		"store.backend":             "STORE_BACKEND",
		"store.write_timeout":       "STORE_WRITE_TIMEOUT",
		"store.max_inflight_writes": "STORE_MAX_INFLIGHT_WRITES",
		"store.shutdown_timeout":    "SHUTDOWN_TIMEOUT",
		"mongo.uri":                 "MONGO_URI",
		"mongo.database":            "MONGO_DATABASE",
		"mongo.collection":          "MONGO_COLLECTION",
		"postgres.url":              "BID_DB_URL",
		"http.addr":                 "HTTP_ADDR",
		"log.level":                 "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" || c.Mongo.Collection == "" {
			return fmt.Errorf("MONGO_URI, MONGO_DATABASE and MONGO_COLLECTION must be set")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("BID_DB_URL is not set")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.RabbitMQ.Queue == "" {
		return fmt.Errorf("BIDS_QUEUE is not set")
	}
	if c.Store.WriteTimeout < 0 || c.Store.MaxInFlightWrites < 0 {
		return fmt.Errorf("store write timeout and max in-flight writes must not be negative")
	}
	return nil
}

// AMQPURL returns RABBITMQ_URL, or a guest URL built from RABBIT_HOST
func (c RabbitMQConfig) AMQPURL() string {
	if c.URL != "" {
		return c.URL
	}
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("amqp://guest:guest@%s:5672/", host)
}
