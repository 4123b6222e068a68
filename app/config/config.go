// Package config loads service configuration from, in increasing priority:
// built-in defaults, an optional YAML file, a .env file and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env      string         `yaml:"env" validate:"oneof=development production test"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    CacheConfig    `yaml:"cache"`
	Auth     AuthConfig     `yaml:"auth"`
	Search   SearchConfig   `yaml:"search"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	DefaultPageSize int           `yaml:"default_page_size" validate:"min=1"`
	MaxPageSize     int           `yaml:"max_page_size" validate:"gtefield=DefaultPageSize"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// RedisConfig selects the shared cache. An empty Addr means the in-process
// memory cache is used instead.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" validate:"required,min=16"`
	AccessTTL  time.Duration `yaml:"access_ttl" validate:"gt=0"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" validate:"gtfield=AccessTTL"`
	Issuer     string        `yaml:"issuer"`
}

// SearchConfig holds the tunables of the query planner. The defaults are the
// values the catalog has always used.
type SearchConfig struct {
	ShortQueryMaxLen  int     `yaml:"short_query_max_len" validate:"min=0"`
	RankThreshold     float64 `yaml:"rank_threshold" validate:"gte=0"`
	NameWeight        float64 `yaml:"name_weight" validate:"gte=0"`
	BrandWeight       float64 `yaml:"brand_weight" validate:"gte=0"`
	DescriptionWeight float64 `yaml:"description_weight" validate:"gte=0"`
	CategoryWeight    float64 `yaml:"category_weight" validate:"gte=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env: EnvDevelopment,
		HTTP: HTTPConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"*"},
			DefaultPageSize: 30,
			MaxPageSize:     1000,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			DSN:    "host=localhost user=postgres password=postgres dbname=miran_search port=5432 sslmode=disable",
		},
		Cache: CacheConfig{TTL: 600 * time.Second},
		Auth: AuthConfig{
			JWTSecret:  "development-secret-change-in-production",
			AccessTTL:  5 * time.Minute,
			RefreshTTL: 24 * time.Hour,
			Issuer:     "miran-search",
		},
		Search: SearchConfig{
			ShortQueryMaxLen:  2,
			RankThreshold:     0.2,
			NameWeight:        2.0,
			BrandWeight:       1.0,
			DescriptionWeight: 0.5,
			CategoryWeight:    0.8,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration for the running process. file may be empty.
// A missing .env file is not an error.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(file, os.LookupEnv)
}

func load(file string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", file, err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = Default().Cache.TTL
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"APP_ENV":         &cfg.Env,
		"HTTP_ADDR":       &cfg.HTTP.Addr,
		"DATABASE_DRIVER": &cfg.Database.Driver,
		"DATABASE_DSN":    &cfg.Database.DSN,
		"REDIS_ADDR":      &cfg.Redis.Addr,
		"REDIS_PASSWORD":  &cfg.Redis.Password,
		"JWT_SECRET":      &cfg.Auth.JWTSecret,
		"JWT_ISSUER":      &cfg.Auth.Issuer,
		"LOG_LEVEL":       &cfg.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"REDIS_DB":                   &cfg.Redis.DB,
		"PAGE_SIZE":                  &cfg.HTTP.DefaultPageSize,
		"MAX_PAGE_SIZE":              &cfg.HTTP.MaxPageSize,
		"SEARCH_SHORT_QUERY_MAX_LEN": &cfg.Search.ShortQueryMaxLen,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"SEARCH_RANK_THRESHOLD":     &cfg.Search.RankThreshold,
		"SEARCH_NAME_WEIGHT":        &cfg.Search.NameWeight,
		"SEARCH_BRAND_WEIGHT":       &cfg.Search.BrandWeight,
		"SEARCH_DESCRIPTION_WEIGHT": &cfg.Search.DescriptionWeight,
		"SEARCH_CATEGORY_WEIGHT":    &cfg.Search.CategoryWeight,
	}
	for key, dst := range floats {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}

	durations := map[string]*time.Duration{
		"CACHE_TTL":        &cfg.Cache.TTL,
		"JWT_ACCESS_TTL":   &cfg.Auth.AccessTTL,
		"JWT_REFRESH_TTL":  &cfg.Auth.RefreshTTL,
		"SHUTDOWN_TIMEOUT": &cfg.HTTP.ShutdownTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}
