package config

import (
	"errors"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// MaxMessageBytes caps a single inbound websocket frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// EventBuffer is the per-connection outbound queue length.
	EventBuffer  int  `mapstructure:"event_buffer" yaml:"event_buffer"`
	CookieSecure bool `mapstructure:"cookie_secure" yaml:"cookie_secure"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
	Relay RelayConfig `mapstructure:"relay" yaml:"relay"`
}

// RedisConfig configures the optional identity cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// RelayConfig holds messaging relay limits.
type RelayConfig struct {
	DirectPageSize int `mapstructure:"direct_page_size" yaml:"direct_page_size"`
	GroupPageSize  int `mapstructure:"group_page_size" yaml:"group_page_size"`
	MaxTextLength  int `mapstructure:"max_text_length" yaml:"max_text_length"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "wirechat.db",
		MaxMessageBytes:   1 << 20,
		EventBuffer:       64,
		JWTIssuer:         "wirechat",
		JWTAudience:       "wirechat-clients",
		JWTTTL:            24 * time.Hour,
		Redis: RedisConfig{
			CacheTTL: time.Minute,
		},
		Relay: RelayConfig{
			DirectPageSize: 50,
			GroupPageSize:  20,
			MaxTextLength:  4096,
		},
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
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required (set WIRECHAT_JWT_SECRET)"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("jwt_ttl must be positive"))
	}
	if c.Relay.DirectPageSize <= 0 || c.Relay.GroupPageSize <= 0 {
		errs = append(errs, errors.New("relay page sizes must be positive"))
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, errors.New("event_buffer must be positive"))
	}
	return errors.Join(errs...)
}
