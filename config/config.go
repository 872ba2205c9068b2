package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store and cache backend names
const (
	StoreMemory    = "memory"
	StoreREST      = "rest"
	StoreFirestore = "firestore"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Collections CollectionsConfig `mapstructure:"collections"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Import      ImportConfig      `mapstructure:"import"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig selects and configures the document store backend
type StoreConfig struct {
	Type              string        `mapstructure:"type"` // "memory", "rest" or "firestore"
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	ProjectID         string        `mapstructure:"project_id"`
	EmulatorHost      string        `mapstructure:"emulator_host"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	SeedFile          string        `mapstructure:"seed_file"`
}

// CollectionsConfig names the store collections the service manages
type CollectionsConfig struct {
	Products string `mapstructure:"products"`
	Users    string `mapstructure:"users"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
	KitTTL   time.Duration `mapstructure:"kit_ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// CatalogConfig tunes querying and suggestions
type CatalogConfig struct {
	DefaultPageSize     int    `mapstructure:"default_page_size"`
	MaxPageSize         int    `mapstructure:"max_page_size"`
	SuggestLimit        int    `mapstructure:"suggest_limit"`
	FuzzyEditDistance   int    `mapstructure:"fuzzy_edit_distance"`
	FeatureDelimiter    string `mapstructure:"feature_delimiter"`
	ClientSideFiltering bool   `mapstructure:"client_side_filtering"`
}

// ImportConfig tunes the bulk importer
type ImportConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ManagedCollections returns the collections exposed through admin routes
func (c *Config) ManagedCollections() []string {
	var out []string
	for _, name := range []string{c.Collections.Products, c.Collections.Users} {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/kitbuilder/")

	v.SetEnvPrefix("KITBUILDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover everything
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory when present. Existing variables win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values.
// Every key needs a default so that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.base_url", "")
	v.SetDefault("store.api_key", "")
	v.SetDefault("store.project_id", "")
	v.SetDefault("store.emulator_host", "")
	v.SetDefault("store.timeout", "30s")
	v.SetDefault("store.requests_per_second", 10)
	v.SetDefault("store.seed_file", "")

	v.SetDefault("collections.products", "products")
	v.SetDefault("collections.users", "users")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.kit_ttl", "168h")

	v.SetDefault("ratelimit.per_ip", 100)

	v.SetDefault("catalog.default_page_size", 20)
	v.SetDefault("catalog.max_page_size", 100)
	v.SetDefault("catalog.suggest_limit", 10)
	v.SetDefault("catalog.fuzzy_edit_distance", 1)
	v.SetDefault("catalog.feature_delimiter", ",")
	v.SetDefault("catalog.client_side_filtering", false)

	v.SetDefault("import.concurrency", 4)

	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Store.Type {
	case StoreMemory:
	case StoreREST:
		if config.Store.BaseURL == "" {
			return fmt.Errorf("store base URL is required when store type is 'rest' (set KITBUILDER_STORE_BASE_URL)")
		}
	case StoreFirestore:
		if config.Store.ProjectID == "" && os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
			return fmt.Errorf("project ID is required when store type is 'firestore' (set KITBUILDER_STORE_PROJECT_ID)")
		}
	default:
		return fmt.Errorf("store type must be 'memory', 'rest' or 'firestore', got: %s", config.Store.Type)
	}

	if config.Cache.Type != CacheMemory && config.Cache.Type != CacheRedis {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == CacheRedis && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Collections.Products == "" {
		return fmt.Errorf("products collection name is required")
	}

	if config.Catalog.MaxPageSize > 0 && config.Catalog.DefaultPageSize > config.Catalog.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d",
			config.Catalog.DefaultPageSize, config.Catalog.MaxPageSize)
	}

	return nil
}
