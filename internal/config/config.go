// Package config defines all configuration for the FIX market-data Core.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via FIXMD_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	FIX     FIXConfig     `mapstructure:"fix"`
	Book    BookConfig    `mapstructure:"book"`
	Ingress IngressConfig `mapstructure:"ingress"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// FIXConfig holds the session/transport parameters spec.md §6 names.
//
//   - HeartBtIntervalS: the HeartBtInt (tag 108) negotiated at Logon.
//   - ReconnectBaseMS/ReconnectCapMS/ReconnectMaxAttempts: the transport's
//     exponential backoff schedule.
//   - LogonTimeoutMS: how long LogonSent waits for the Logon ack before
//     the session's timer check moves it to Disconnected and reports a
//     timeout error; no reconnect is started for it.
type FIXConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	SenderCompID         string `mapstructure:"sender_comp_id"`
	TargetCompID         string `mapstructure:"target_comp_id"`
	Username             string `mapstructure:"username"`
	Secret               string `mapstructure:"secret"`
	HeartBtIntervalS     int    `mapstructure:"heartbeat_interval_s"`
	ReconnectBaseMS      int    `mapstructure:"reconnect_base_ms"`
	ReconnectCapMS       int    `mapstructure:"reconnect_cap_ms"`
	ReconnectMaxAttempts int    `mapstructure:"reconnect_max_attempts"`
	LogonTimeoutMS       int    `mapstructure:"logon_timeout_ms"`
}

// Addr returns the host:port transport dial target.
func (c FIXConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogonTimeout converts LogonTimeoutMS to a time.Duration.
func (c FIXConfig) LogonTimeout() time.Duration {
	return time.Duration(c.LogonTimeoutMS) * time.Millisecond
}

// BookConfig tunes the order-book engine's validation thresholds.
type BookConfig struct {
	BufferSize            int     `mapstructure:"book_buffer_size"`
	InversionTolerancePct float64 `mapstructure:"inversion_tolerance_pct"`
	VolatilityThreshold   float64 `mapstructure:"volatility_threshold"`
}

// IngressConfig controls the optional Kraken-WS ingress.
type IngressConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	URL     string   `mapstructure:"url"`
	Pairs   []string `mapstructure:"pairs"`
}

// StoreConfig sets where the kvstore's pebble database is rooted.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FIXMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("fix.heartbeat_interval_s", 30)
	v.SetDefault("fix.reconnect_base_ms", 1000)
	v.SetDefault("fix.reconnect_cap_ms", 30000)
	v.SetDefault("fix.reconnect_max_attempts", 5)
	v.SetDefault("fix.logon_timeout_ms", 5000)
	v.SetDefault("book.book_buffer_size", 20)
	v.SetDefault("book.inversion_tolerance_pct", 1.0)
	v.SetDefault("book.volatility_threshold", 0.5)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if user := os.Getenv("FIXMD_FIX_USERNAME"); user != "" {
		cfg.FIX.Username = user
	}
	if secret := os.Getenv("FIXMD_FIX_SECRET"); secret != "" {
		cfg.FIX.Secret = secret
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.FIX.Host == "" {
		return fmt.Errorf("fix.host is required")
	}
	if c.FIX.Port <= 0 {
		return fmt.Errorf("fix.port must be > 0")
	}
	if c.FIX.SenderCompID == "" {
		return fmt.Errorf("fix.sender_comp_id is required")
	}
	if c.FIX.TargetCompID == "" {
		return fmt.Errorf("fix.target_comp_id is required")
	}
	if c.FIX.Username == "" {
		return fmt.Errorf("fix.username is required (set FIXMD_FIX_USERNAME)")
	}
	if c.FIX.Secret == "" {
		return fmt.Errorf("fix.secret is required (set FIXMD_FIX_SECRET)")
	}
	if c.FIX.HeartBtIntervalS <= 0 {
		return fmt.Errorf("fix.heartbeat_interval_s must be > 0")
	}
	if c.FIX.ReconnectBaseMS <= 0 {
		return fmt.Errorf("fix.reconnect_base_ms must be > 0")
	}
	if c.FIX.ReconnectCapMS < c.FIX.ReconnectBaseMS {
		return fmt.Errorf("fix.reconnect_cap_ms must be >= fix.reconnect_base_ms")
	}
	if c.FIX.ReconnectMaxAttempts <= 0 {
		return fmt.Errorf("fix.reconnect_max_attempts must be > 0")
	}
	if c.FIX.LogonTimeoutMS <= 0 {
		return fmt.Errorf("fix.logon_timeout_ms must be > 0")
	}
	if c.Book.BufferSize <= 0 {
		return fmt.Errorf("book.book_buffer_size must be > 0")
	}
	if c.Book.InversionTolerancePct < 0 {
		return fmt.Errorf("book.inversion_tolerance_pct must be >= 0")
	}
	if c.Book.VolatilityThreshold <= 0 {
		return fmt.Errorf("book.volatility_threshold must be > 0")
	}
	if c.Ingress.Enabled && c.Ingress.URL == "" {
		return fmt.Errorf("ingress.url is required when ingress.enabled is true")
	}
	if c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is required")
	}
	return nil
}
