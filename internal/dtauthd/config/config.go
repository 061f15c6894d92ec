// Package config provides configuration management for the devtrack auth server
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the server
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	DeviceAuth DeviceAuthConfig `yaml:"deviceAuth"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	TLSCert      string        `yaml:"tlsCert"`
	TLSKey       string        `yaml:"tlsKey"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig holds settings for the device-list cache
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds session token settings
type AuthConfig struct {
	TokenSigningKey string        `yaml:"tokenSigningKey"`
	TokenTTL        time.Duration `yaml:"tokenTTL"`
	Issuer          string        `yaml:"issuer"`
}

// DeviceAuthConfig holds device authorization flow settings
type DeviceAuthConfig struct {
	CodeTTL            time.Duration `yaml:"codeTTL"`
	PollInterval       time.Duration `yaml:"pollInterval"`
	RetentionMargin    time.Duration `yaml:"retentionMargin"`
	CleanupInterval    time.Duration `yaml:"cleanupInterval"`
	FrontendURL        string        `yaml:"frontendURL"`
	DeviceListCacheTTL time.Duration `yaml:"deviceListCacheTTL"`
}

// ClassLimit configures the token bucket for one endpoint class
type ClassLimit struct {
	Capacity     int           `yaml:"capacity"`
	RefillAmount int           `yaml:"refillAmount"`
	RefillPeriod time.Duration `yaml:"refillPeriod"`
}

// RateLimitConfig holds admission control settings
type RateLimitConfig struct {
	Enabled bool                  `yaml:"enabled"`
	Classes map[string]ClassLimit `yaml:"classes"`
}

// Load builds a configuration from defaults overlaid with environment variables
func Load() (*Config, error) {
	cfg := defaultConfig()
	cfg.overlayEnv()
	return cfg, cfg.validate()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "devtrack",
			User:            "devtrack",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			Issuer:   "devtrack-auth",
		},
		DeviceAuth: DeviceAuthConfig{
			CodeTTL:            600 * time.Second,
			PollInterval:       5 * time.Second,
			RetentionMargin:    time.Hour,
			CleanupInterval:    10 * time.Minute,
			FrontendURL:        "http://localhost:3000",
			DeviceListCacheTTL: time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
		},
	}
}

// overlayEnv overlays environment variables on top of the current config
func (c *Config) overlayEnv() {
	// Server config
	if host := getEnv("DTAUTH_SERVER_HOST", ""); host != "" {
		c.Server.Host = host
	}
	if port := getEnvAsInt("DTAUTH_SERVER_PORT", 0); port != 0 {
		c.Server.Port = port
	}
	if readTimeout := getEnvAsDuration("DTAUTH_SERVER_READ_TIMEOUT", 0); readTimeout != 0 {
		c.Server.ReadTimeout = readTimeout
	}
	if writeTimeout := getEnvAsDuration("DTAUTH_SERVER_WRITE_TIMEOUT", 0); writeTimeout != 0 {
		c.Server.WriteTimeout = writeTimeout
	}
	if idleTimeout := getEnvAsDuration("DTAUTH_SERVER_IDLE_TIMEOUT", 0); idleTimeout != 0 {
		c.Server.IdleTimeout = idleTimeout
	}
	if tlsCert := getEnv("DTAUTH_TLS_CERT", ""); tlsCert != "" {
		c.Server.TLSCert = tlsCert
	}
	if tlsKey := getEnv("DTAUTH_TLS_KEY", ""); tlsKey != "" {
		c.Server.TLSKey = tlsKey
	}

	// Database config - check multiple env var names
	if host := getEnvMulti([]string{"DTAUTH_DB_HOST", "DB_HOST", "POSTGRES_HOST"}, ""); host != "" {
		c.Database.Host = host
	}
	if port := getEnvAsIntMulti([]string{"DTAUTH_DB_PORT", "DB_PORT", "POSTGRES_PORT"}, 0); port != 0 {
		c.Database.Port = port
	}
	if name := getEnvMulti([]string{"DTAUTH_DB_NAME", "DB_NAME", "POSTGRES_DB"}, ""); name != "" {
		c.Database.Name = name
	}
	if user := getEnvMulti([]string{"DTAUTH_DB_USER", "DB_USER", "POSTGRES_USER"}, ""); user != "" {
		c.Database.User = user
	}
	if password := getEnvMulti([]string{"DTAUTH_DB_PASSWORD", "DB_PASSWORD", "POSTGRES_PASSWORD"}, ""); password != "" {
		c.Database.Password = password
	}
	if sslmode := getEnv("DTAUTH_DB_SSLMODE", ""); sslmode != "" {
		c.Database.SSLMode = sslmode
	}

	// Redis config
	if addr := getEnv("DTAUTH_REDIS_ADDR", ""); addr != "" {
		c.Redis.Addr = addr
	}
	if password := getEnv("DTAUTH_REDIS_PASSWORD", ""); password != "" {
		c.Redis.Password = password
	}
	if db := getEnvAsInt("DTAUTH_REDIS_DB", -1); db >= 0 {
		c.Redis.DB = db
	}

	// Auth config
	if key := getEnv("DTAUTH_TOKEN_SIGNING_KEY", ""); key != "" {
		c.Auth.TokenSigningKey = key
	}
	if ttl := getEnvAsDuration("DTAUTH_TOKEN_TTL", 0); ttl != 0 {
		c.Auth.TokenTTL = ttl
	}
	if issuer := getEnv("DTAUTH_TOKEN_ISSUER", ""); issuer != "" {
		c.Auth.Issuer = issuer
	}

	// Device auth config
	if ttl := getEnvAsDuration("DTAUTH_DEVICE_CODE_TTL", 0); ttl != 0 {
		c.DeviceAuth.CodeTTL = ttl
	}
	if interval := getEnvAsDuration("DTAUTH_DEVICE_POLL_INTERVAL", 0); interval != 0 {
		c.DeviceAuth.PollInterval = interval
	}
	if margin := getEnvAsDuration("DTAUTH_DEVICE_RETENTION_MARGIN", 0); margin != 0 {
		c.DeviceAuth.RetentionMargin = margin
	}
	if interval := getEnvAsDuration("DTAUTH_DEVICE_CLEANUP_INTERVAL", 0); interval != 0 {
		c.DeviceAuth.CleanupInterval = interval
	}
	if url := getEnv("DTAUTH_FRONTEND_URL", ""); url != "" {
		c.DeviceAuth.FrontendURL = url
	}
	if ttl := getEnvAsDuration("DTAUTH_DEVICE_LIST_CACHE_TTL", 0); ttl != 0 {
		c.DeviceAuth.DeviceListCacheTTL = ttl
	}

	// Rate limit config
	if v := getEnv("DTAUTH_RATE_LIMIT_ENABLED", ""); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.RateLimit.Enabled = enabled
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvMulti(keys []string, fallback string) string {
	for _, key := range keys {
		if v := getEnv(key, ""); v != "" {
			return v
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsIntMulti(keys []string, fallback int) int {
	for _, key := range keys {
		if v := getEnv(key, ""); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := getEnv(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
