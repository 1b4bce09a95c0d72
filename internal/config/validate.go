package config

import (
	"fmt"
	"strings"
)

const minSecretLength = 16

// Validate performs business-rule validation on the loaded configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(strings.TrimSpace(c.Auth.TokenSecret)) < minSecretLength {
		return fmt.Errorf("auth.token_secret must be at least %d characters (got %d)", minSecretLength, len(c.Auth.TokenSecret))
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0 (got %s)", c.Auth.TokenTTL)
	}
	if c.Storage.MaxImageBytes <= 0 {
		return fmt.Errorf("storage.max_image_bytes must be > 0 (got %d)", c.Storage.MaxImageBytes)
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must be >= 0")
	}
	if c.Neo4j.URI != "" && c.Neo4j.Password == "" {
		return fmt.Errorf("neo4j.password is required when neo4j.uri is set")
	}
	return nil
}

// Origins splits the comma-separated CORS origin list.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
