package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the delivery service
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	SES      SESConfig      `yaml:"ses"`
	Delivery DeliveryConfig `yaml:"delivery"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the marketplace database connection settings.
// The delivery service only reads order data; it never writes.
type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// RedisConfig holds Redis connection settings for delivery deduplication
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DeliveryConfig holds the digital file delivery pipeline settings
type DeliveryConfig struct {
	// StorageHosts is the allow-list for outbound file fetches. Entries are
	// exact hostnames or wildcard-subdomain patterns like "*.supabase.co".
	StorageHosts []string `yaml:"storage_hosts"`

	FetchTimeoutSeconds int   `yaml:"fetch_timeout_seconds"`
	MaxFileBytes        int64 `yaml:"max_file_bytes"`

	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	ReplyTo   string `yaml:"reply_to"`

	// BrandMarkPath points at the PNG stamped alongside the license text.
	// Missing or unreadable asset is tolerated; watermarking proceeds
	// text-only.
	BrandMarkPath string `yaml:"brand_mark_path"`

	// Optional Liquid template overrides for the confirmation email.
	SubjectTemplate string `yaml:"subject_template"`

	DedupeTTLMinutes int `yaml:"dedupe_ttl_minutes"`
}

// FetchTimeout returns the outbound fetch timeout as a duration
func (c DeliveryConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// DedupeTTL returns the delivery claim TTL as a duration
func (c DeliveryConfig) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLMinutes) * time.Minute
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.Delivery.FetchTimeoutSeconds == 0 {
		cfg.Delivery.FetchTimeoutSeconds = 30
	}
	if cfg.Delivery.MaxFileBytes == 0 {
		cfg.Delivery.MaxFileBytes = 100 << 20 // 100 MB
	}
	if cfg.Delivery.FromName == "" {
		cfg.Delivery.FromName = "Stitchfolk"
	}
	if cfg.Delivery.BrandMarkPath == "" {
		cfg.Delivery.BrandMarkPath = "assets/brandmark.png"
	}
	if cfg.Delivery.DedupeTTLMinutes == 0 {
		cfg.Delivery.DedupeTTLMinutes = 60
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
		cfg.Database.Enabled = true
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.Redis.DB = n
		}
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if hosts := os.Getenv("DELIVERY_STORAGE_HOSTS"); hosts != "" {
		parts := strings.Split(hosts, ",")
		cfg.Delivery.StorageHosts = cfg.Delivery.StorageHosts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Delivery.StorageHosts = append(cfg.Delivery.StorageHosts, p)
			}
		}
	}
	if from := os.Getenv("DELIVERY_FROM_EMAIL"); from != "" {
		cfg.Delivery.FromEmail = from
	}

	return cfg, nil
}
