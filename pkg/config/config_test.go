package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOURCE_MODE", "")
	t.Setenv("FALLBACK_CACHE_TTL", "")
	t.Setenv("COMMISSION_NEVER_INCREASE", "")
	t.Setenv("RATE_LIMIT_REQUESTS", "")
	t.Setenv("RATE_LIMIT_WINDOW", "")

	cfg := Load()

	assert.Equal(t, SourcePostgres, cfg.Affiliate.SourceMode)
	assert.True(t, cfg.Affiliate.CommissionNeverIncrease)
	assert.True(t, cfg.Fallback.EnableFallbackMode)
	assert.Equal(t, 5*time.Minute, cfg.Fallback.FallbackCacheTTL)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SOURCE_MODE", "Upstream")
	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")
	t.Setenv("COMMISSION_NEVER_INCREASE", "off")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	assert.Equal(t, SourceUpstream, cfg.Affiliate.SourceMode)
	assert.Equal(t, "https://api.example.com", cfg.Upstream.BaseURL)
	assert.False(t, cfg.Affiliate.CommissionNeverIncrease)
	assert.Equal(t, "cache:6379", cfg.Redis.URL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestValidateCore(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{Port: "8080"},
		Redis:     RedisConfig{URL: "localhost:6379"},
		JWT:       JWTConfig{Secret: "change-this-secret"},
		Affiliate: AffiliateConfig{SourceMode: SourcePostgres},
	}

	err := cfg.ValidateCore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.JWT.Secret = "s3cret"
	cfg.Database.URL = "postgres://localhost/bgref"
	assert.NoError(t, cfg.ValidateCore())

	cfg.Affiliate.SourceMode = SourceUpstream
	err = cfg.ValidateCore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_BASE_URL")

	cfg.Upstream.BaseURL = "https://api.example.com"
	assert.NoError(t, cfg.ValidateCore())

	cfg.Affiliate.SourceMode = "sqlite"
	assert.Error(t, cfg.ValidateCore())
}
