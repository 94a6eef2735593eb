// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"strings"
)

// ValidateCore ensures critical configuration is present.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Redis.URL) == "" {
		missing = append(missing, "REDIS_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" || c.JWT.Secret == "change-this-secret" {
		missing = append(missing, "JWT_SECRET")
	}

	// Login identities live in postgres in both source modes.
	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}

	switch c.Affiliate.SourceMode {
	case SourcePostgres:
	case SourceUpstream:
		if strings.TrimSpace(c.Upstream.BaseURL) == "" {
			missing = append(missing, "UPSTREAM_BASE_URL")
		}
	default:
		return fmt.Errorf("unsupported SOURCE_MODE %q (want %s or %s)", c.Affiliate.SourceMode, SourcePostgres, SourceUpstream)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// GoogleEnabled reports whether Google OAuth login can be offered.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}
