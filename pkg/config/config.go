// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the index,
// search, service and backing-store settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document sources understood by the loaders.
const (
	SourceJSON     = "json"
	SourcePostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// IndexConfig locates the document collection, the stop-word list and the
// directory holding the persisted index.
type IndexConfig struct {
	CacheDir      string `yaml:"cacheDir"`
	Source        string `yaml:"source"`
	DocumentsPath string `yaml:"documentsPath"`
	StopWordsPath string `yaml:"stopWordsPath"`
}

// SearchConfig controls result limits and the BM25 tunables.
type SearchConfig struct {
	DefaultLimit int     `yaml:"defaultLimit"`
	MaxResults   int     `yaml:"maxResults"`
	TitleMatches int     `yaml:"titleMatches"`
	K1           float64 `yaml:"k1"`
	B            float64 `yaml:"b"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	Table           string        `yaml:"table"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			CacheDir:      "cache",
			Source:        SourceJSON,
			DocumentsPath: "data/movies.json",
		},
		Search: SearchConfig{
			DefaultLimit: 5,
			MaxResults:   100,
			TitleMatches: 4,
			K1:           1.2,
			B:            0.75,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "keywordsearch",
			User:            "keywordsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			Table:           "documents",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "keywordsearch-searcher",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate rejects settings the scoring code cannot work with.
func (c *Config) Validate() error {
	if c.Index.CacheDir == "" {
		return fmt.Errorf("index.cacheDir must not be empty")
	}
	switch c.Index.Source {
	case SourceJSON, SourcePostgres:
	default:
		return fmt.Errorf("index.source must be %q or %q, got %q", SourceJSON, SourcePostgres, c.Index.Source)
	}
	if c.Search.K1 < 0 {
		return fmt.Errorf("search.k1 must be non-negative, got %v", c.Search.K1)
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		return fmt.Errorf("search.b must be within [0, 1], got %v", c.Search.B)
	}
	if c.Search.DefaultLimit < 1 || c.Search.MaxResults < 1 {
		return fmt.Errorf("search limits must be positive")
	}
	if c.Search.DefaultLimit > c.Search.MaxResults {
		return fmt.Errorf("search.defaultLimit %d exceeds search.maxResults %d", c.Search.DefaultLimit, c.Search.MaxResults)
	}
	return nil
}

// applyEnvOverrides reads KS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KS_INDEX_CACHE_DIR"); v != "" {
		cfg.Index.CacheDir = v
	}
	if v := os.Getenv("KS_INDEX_SOURCE"); v != "" {
		cfg.Index.Source = v
	}
	if v := os.Getenv("KS_INDEX_DOCUMENTS_PATH"); v != "" {
		cfg.Index.DocumentsPath = v
	}
	if v := os.Getenv("KS_INDEX_STOPWORDS_PATH"); v != "" {
		cfg.Index.StopWordsPath = v
	}
	if v := os.Getenv("KS_SEARCH_K1"); v != "" {
		if k1, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.K1 = k1
		}
	}
	if v := os.Getenv("KS_SEARCH_B"); v != "" {
		if b, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.B = b
		}
	}
	if v := os.Getenv("KS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("KS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("KS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("KS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
