package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret    string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer    string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience  string `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	RequireToken bool   `mapstructure:"require_token" yaml:"require_token"`

	StoreTimeout        time.Duration `mapstructure:"store_timeout" yaml:"store_timeout"`
	TypingTTL           time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	TypingPurgeInterval time.Duration `mapstructure:"typing_purge_interval" yaml:"typing_purge_interval"`
	// TypingBackend is "sqlite" or "redis".
	TypingBackend string      `mapstructure:"typing_backend" yaml:"typing_backend"`
	Redis         RedisConfig `mapstructure:"redis" yaml:"redis"`

	MaxMessageBytes   int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessagesPerMinute int   `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	EventBuffer       int   `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// RedisConfig configures the optional Redis typing backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

const (
	TypingBackendSQLite = "sqlite"
	TypingBackendRedis  = "redis"
)

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                ":8080",
		ReadHeaderTimeout:   5 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		LogLevel:            "info",
		LogFormat:           "console",
		DatabasePath:        "supportchat.db",
		JWTSecret:           "change-me-in-production",
		JWTIssuer:           "supportchat",
		JWTAudience:         "supportchat-clients",
		StoreTimeout:        5 * time.Second,
		TypingTTL:           10 * time.Second,
		TypingPurgeInterval: time.Minute,
		TypingBackend:       TypingBackendSQLite,
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		MaxMessageBytes:   64 << 10,
		MessagesPerMinute: 120,
		EventBuffer:       64,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.RequireToken {
		c.RequireToken = true
	}
	if other.TypingBackend != "" {
		c.TypingBackend = other.TypingBackend
	}
	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
}
