package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "REDIS_ADDR", "JWT_SECRET", "ACCESS_TOKEN_TTL", "BCRYPT_COST", "GOOGLE_CLIENT_ID"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.RedisAddr)
	assert.Equal(t, "http://localhost:8080", cfg.PublicURL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.True(t, cfg.InsecureSecret())
	assert.False(t, cfg.Google.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("FEED_BUFFER", "not-a-number")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, 16, cfg.FeedBuffer)
	assert.False(t, cfg.InsecureSecret())
	assert.True(t, cfg.GitHub.Enabled())
}
