package core

import (
	"fmt"
	"strings"
	"time"
)

type SyncConfig struct {
	Enabled     bool          `koanf:"enabled" mapstructure:"enabled"`
	Interval    time.Duration `koanf:"interval" mapstructure:"interval"`
	WarmupDelay time.Duration `koanf:"warmup_delay" mapstructure:"warmup_delay"`
}

type ProviderConfig struct {
	BaseURL     string        `koanf:"base_url" mapstructure:"base_url"`
	TokenURL    string        `koanf:"token_url" mapstructure:"token_url"`
	ClientID    string        `koanf:"client_id" mapstructure:"client_id"`
	Timeout     time.Duration `koanf:"timeout" mapstructure:"timeout"`
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type TokenConfig struct {
	ExpiryBuffer time.Duration `koanf:"expiry_buffer" mapstructure:"expiry_buffer"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Sync        SyncConfig     `koanf:"sync" mapstructure:"sync"`
	Provider    ProviderConfig `koanf:"provider" mapstructure:"provider"`
	Token       TokenConfig    `koanf:"token" mapstructure:"token"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "inventory-sync",
		Sync: SyncConfig{
			Enabled:     true,
			Interval:    time.Hour,
			WarmupDelay: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
		},
		Token: TokenConfig{
			ExpiryBuffer: 5 * time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("core: sync.interval must be positive")
	}
	if c.Sync.WarmupDelay < 0 {
		return fmt.Errorf("core: sync.warmup_delay must not be negative")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("core: provider.timeout must be positive")
	}
	if c.Provider.MaxAttempts < 1 {
		return fmt.Errorf("core: provider.max_attempts must be at least 1")
	}
	if c.Token.ExpiryBuffer < 0 {
		return fmt.Errorf("core: token.expiry_buffer must not be negative")
	}
	return nil
}
