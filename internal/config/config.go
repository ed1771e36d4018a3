// Package config handles loading and parsing application configuration.
// The YAML file is located through (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// Every value can be overridden by the environment variable named in its
// env:"..." tag. A .env file in the working directory, when present, is
// loaded into the environment first.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
)

// Config is the root configuration structure.
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	HTTPServer `yaml:"http_server"`

	Storage  Storage  `yaml:"storage"`
	Realtime Realtime `yaml:"realtime"`
	Photos   Photos   `yaml:"photos"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	Addr         string        `yaml:"address"       env:"HTTP_SERVER_ADDR" env-required:"true"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  env:"HTTP_READ_TIMEOUT"  env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  env:"HTTP_IDLE_TIMEOUT"  env-default:"60s"`

	// RateLimit is the allowed requests per second per client IP.
	// Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit_rps"   env:"HTTP_RATE_LIMIT_RPS"   env-default:"0"`
	RateBurst int     `yaml:"rate_limit_burst" env:"HTTP_RATE_LIMIT_BURST" env-default:"20"`
}

// Storage selects and configures the record store backend.
type Storage struct {
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"sqlite"`

	// SQLitePath is the filesystem path to the SQLite .db file.
	SQLitePath string `yaml:"sqlite_path" env:"STORAGE_PATH" env-default:"storage/students.db"`

	PostgresDSN string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`

	// SnapshotPath is the JSON snapshot file of the "local" backend.
	SnapshotPath string `yaml:"snapshot_path" env:"SNAPSHOT_PATH" env-default:"storage/students.json"`

	Mongo Mongo `yaml:"mongo"`
	Redis Redis `yaml:"redis"`
}

type Mongo struct {
	URI        string        `yaml:"uri"        env:"MONGODB_URI"`
	Database   string        `yaml:"database"   env:"MONGODB_DATABASE"   env-default:"student_archive"`
	Collection string        `yaml:"collection" env:"MONGODB_COLLECTION" env-default:"students"`
	Timeout    time.Duration `yaml:"timeout"    env:"MONGODB_TIMEOUT"    env-default:"10s"`
}

// Redis is shared by the "redis" backend and the realtime relay.
type Redis struct {
	Addr     string `yaml:"address"  env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB" env-default:"0"`
	// Key holds the snapshot blob of the "redis" backend.
	Key string `yaml:"key" env:"REDIS_KEY" env-default:"student-storage"`
}

// Realtime configures the snapshot feed. Without Redis the feed only
// reaches clients of this process.
type Realtime struct {
	Redis   bool   `yaml:"redis"   env:"REALTIME_REDIS"`
	Channel string `yaml:"channel" env:"REALTIME_CHANNEL" env-default:"students:snapshots"`
}

// Photos configures photo uploads to MinIO.
type Photos struct {
	Enabled   bool          `yaml:"enabled"    env:"PHOTOS_ENABLED"`
	Endpoint  string        `yaml:"endpoint"   env:"MINIO_ENDPOINT"`
	AccessKey string        `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string        `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string        `yaml:"bucket"     env:"MINIO_BUCKET"    env-default:"student-photos"`
	UseSSL    bool          `yaml:"use_ssl"    env:"MINIO_USE_SSL"`
	URLTTL    time.Duration `yaml:"url_ttl"    env:"PHOTOS_URL_TTL"  env-default:"168h"`
	MaxBytes  int64         `yaml:"max_bytes"  env:"PHOTOS_MAX_BYTES" env-default:"5242880"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings the chosen features need are present.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	case BackendLocal:
		if c.Storage.SnapshotPath == "" {
			errs = append(errs, errors.New("storage.snapshot_path is required for the local backend"))
		}
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.address is required for the redis backend"))
		}
	case BackendMongo:
		if c.Storage.Mongo.URI == "" {
			errs = append(errs, errors.New("storage.mongo.uri is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Realtime.Redis && c.Storage.Redis.Addr == "" {
		errs = append(errs, errors.New("storage.redis.address is required when realtime.redis is on"))
	}
	if c.Photos.Enabled && c.Photos.Endpoint == "" {
		errs = append(errs, errors.New("photos.endpoint is required when photos are enabled"))
	}
	return errors.Join(errs...)
}

// MustLoad reads, validates, and returns the application config.
//
// The name "MustLoad" follows a Go convention: functions prefixed with
// "Must" are allowed to fatal on failure. If this function returns, the
// config is valid.
func MustLoad() *Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %s", err.Error())
	}

	return cfg
}
