// Package config loads the service configuration from an optional YAML file
// and applies environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	MapperService = "service"
	MapperOpenAI  = "openai"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Store      StoreConfig      `yaml:"store"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Youtube    YoutubeConfig    `yaml:"youtube"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Mapper     MapperConfig     `yaml:"mapper"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Weaviate   WeaviateConfig   `yaml:"weaviate"`
	Feed       FeedConfig       `yaml:"feed"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlitePath"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type YoutubeConfig struct {
	APIKey            string  `yaml:"apiKey"`
	Endpoint          string  `yaml:"endpoint"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
}

type TranscriptConfig struct {
	URL string `yaml:"url"`
}

type MapperConfig struct {
	Backend     string `yaml:"backend"`
	URL         string `yaml:"url"`
	OpenAIKey   string `yaml:"openaiKey"`
	OpenAIModel string `yaml:"openaiModel"`
}

// IngestConfig holds the per-stage timeouts of the ingest chain. Zero means
// the stage only ends with the request context.
type IngestConfig struct {
	MetadataTimeout   time.Duration `yaml:"metadataTimeout"`
	TranscriptTimeout time.Duration `yaml:"transcriptTimeout"`
	MappingTimeout    time.Duration `yaml:"mappingTimeout"`
	PersistTimeout    time.Duration `yaml:"persistTimeout"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type WeaviateConfig struct {
	Scheme string `yaml:"scheme"`
	Host   string `yaml:"host"`
	APIKey string `yaml:"apiKey"`
}

type FeedConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads the YAML file at path, when given, over the defaults and then
// applies the environment.
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
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Backend:    StorePostgres,
			SQLitePath: "conceptube.db",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "conceptube",
			User:            "conceptube",
			Password:        "conceptube",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Transcript: TranscriptConfig{
			URL: "http://localhost:5001",
		},
		Mapper: MapperConfig{
			Backend:     MapperService,
			URL:         "http://localhost:5002",
			OpenAIModel: "gpt-4o-mini",
		},
		Ingest: IngestConfig{
			MetadataTimeout:   10 * time.Second,
			TranscriptTimeout: 30 * time.Second,
			MappingTimeout:    3 * time.Minute,
			PersistTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			CacheTTL: time.Minute,
		},
		Kafka: KafkaConfig{
			Topic: "video-events",
		},
		Weaviate: WeaviateConfig{
			Scheme: "https",
		},
		Feed: FeedConfig{
			Interval: time.Minute,
		},
	}
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Mapper.Backend {
	case MapperService:
		if c.Mapper.URL == "" {
			return errors.New("mapper url is required for the service backend")
		}
	case MapperOpenAI:
		if c.Mapper.OpenAIKey == "" {
			return errors.New("openai key is required for the openai mapper backend")
		}
	default:
		return fmt.Errorf("unknown mapper backend %q", c.Mapper.Backend)
	}
	if c.Youtube.APIKey == "" {
		return errors.New("youtube api key is required")
	}
	if c.Transcript.URL == "" {
		return errors.New("transcript url is required")
	}

	return nil
}

func applyEnv(cfg *Config) error {
	var err error
	setString := func(param string, target *string) {
		if val, ok := os.LookupEnv(param); ok {
			*target = val
		}
	}
	setInt := func(param string, target *int) {
		val, ok := os.LookupEnv(param)
		if !ok || err != nil {
			return
		}
		n, convErr := strconv.Atoi(val)
		if convErr != nil {
			err = fmt.Errorf("invalid %s: %w", param, convErr)
			return
		}
		*target = n
	}
	setDuration := func(param string, target *time.Duration) {
		val, ok := os.LookupEnv(param)
		if !ok || err != nil {
			return
		}
		d, parseErr := time.ParseDuration(val)
		if parseErr != nil {
			err = fmt.Errorf("invalid %s: %w", param, parseErr)
			return
		}
		*target = d
	}

	setInt("API_PORT", &cfg.Server.Port)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)
	setString("STORE_BACKEND", &cfg.Store.Backend)
	setString("SQLITE_PATH", &cfg.Store.SQLitePath)
	setString("POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("POSTGRES_PORT", &cfg.Postgres.Port)
	setString("POSTGRES_DB", &cfg.Postgres.Database)
	setString("POSTGRES_USER", &cfg.Postgres.User)
	setString("POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setString("YOUTUBE_API_KEY", &cfg.Youtube.APIKey)
	setString("TRANSCRIPT_SERVICE_URL", &cfg.Transcript.URL)
	setString("MAPPER_BACKEND", &cfg.Mapper.Backend)
	setString("AI_MAPPER_URL", &cfg.Mapper.URL)
	setString("OPENAI_API_KEY", &cfg.Mapper.OpenAIKey)
	setString("OPENAI_MODEL", &cfg.Mapper.OpenAIModel)
	setDuration("MAPPING_TIMEOUT", &cfg.Ingest.MappingTimeout)
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setDuration("REDIS_CACHE_TTL", &cfg.Redis.CacheTTL)
	if val, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(val)
	}
	setString("KAFKA_TOPIC", &cfg.Kafka.Topic)
	setString("WEAVIATE_HOST", &cfg.Weaviate.Host)
	setString("WEAVIATE_APIKEY", &cfg.Weaviate.APIKey)
	setString("MINIFLUX_ENDPOINT", &cfg.Feed.Endpoint)
	setString("MINIFLUX_APIKEY", &cfg.Feed.APIKey)
	setDuration("FEED_INTERVAL", &cfg.Feed.Interval)

	return err
}

func splitList(val string) []string {
	items := []string{}
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
