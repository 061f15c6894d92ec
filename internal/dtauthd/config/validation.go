package config

import (
	"fmt"
	"time"
)

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if (c.Server.TLSCert != "") != (c.Server.TLSKey != "") {
		return fmt.Errorf("both TLS cert and key must be provided")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("invalid max open connections: %d", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns < 1 {
		return fmt.Errorf("invalid max idle connections: %d", c.Database.MaxIdleConns)
	}
	if c.Auth.TokenSigningKey == "" {
		return fmt.Errorf("token signing key is required")
	}
	if len(c.Auth.TokenSigningKey) < 32 {
		return fmt.Errorf("token signing key must be at least 32 bytes")
	}
	if c.Auth.TokenTTL < 1*time.Minute {
		return fmt.Errorf("token TTL must be at least 1 minute")
	}
	if c.DeviceAuth.CodeTTL < 1*time.Minute {
		return fmt.Errorf("device code TTL must be at least 1 minute")
	}
	if c.DeviceAuth.PollInterval < 1*time.Second {
		return fmt.Errorf("device poll interval must be at least 1 second")
	}
	if c.DeviceAuth.RetentionMargin < 0 {
		return fmt.Errorf("device retention margin must not be negative")
	}
	for class, limit := range c.RateLimit.Classes {
		if limit.Capacity < 1 {
			return fmt.Errorf("rate limit class %q: capacity must be positive", class)
		}
		if limit.RefillAmount < 1 {
			return fmt.Errorf("rate limit class %q: refill amount must be positive", class)
		}
		if limit.RefillPeriod < time.Second {
			return fmt.Errorf("rate limit class %q: refill period must be at least 1 second", class)
		}
	}
	return nil
}
