package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CACHE_TTL", "")
	t.Setenv("PROJECTION_MODE", "")
	t.Setenv("AUTHZ_ENFORCED", "")

	cfg := Load()
	assert.Equal(t, 720*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "async", cfg.ProjectionMode)
	assert.True(t, cfg.AuthzEnforced)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
	assert.Equal(t, "iam.events", cfg.RabbitMQEventsExchange)
}

func TestLoadOverridesAndFallbacks(t *testing.T) {
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("PROJECTION_MODE", "sync")
	t.Setenv("PROJECTION_PARTITIONS", "not-a-number")
	t.Setenv("AUTHZ_ENFORCED", "false")
	t.Setenv("RESET_TOKEN_TTL", "bogus")
	t.Setenv("ELASTICSEARCH_ADDRS", " http://a:9200, ,http://b:9200 ")

	cfg := Load()
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "sync", cfg.ProjectionMode)
	assert.Equal(t, 8, cfg.ProjectionPartitions)
	assert.False(t, cfg.AuthzEnforced)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
	assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.ESAddrs())
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "accounts", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/accounts?sslmode=disable", cfg.PostgresDSN())
}
