package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("TOKEN_BACKEND", "")
	t.Setenv("FORM_TOKEN_TTL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("REDIS_ENABLED", "")
	t.Setenv("ENVIRONMENT", "")

	require.NoError(t, LoadConfig())
	require.Equal(t, BackendPostgres, AppConfig.StoreBackend)
	require.Equal(t, BackendRedis, AppConfig.TokenBackend)
	require.Equal(t, 20*time.Minute, AppConfig.FormTokenTTL)
	require.Equal(t, []string{"http://localhost:3000"}, AppConfig.CORSOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("TOKEN_BACKEND", "memory")
	t.Setenv("FORM_TOKEN_TTL", "15m")
	t.Setenv("DEFAULT_COUNTRY_CODE", "+44")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ISSUE_RATE_LIMIT", "not-a-number")
	t.Setenv("ENVIRONMENT", "")

	require.NoError(t, LoadConfig())
	require.Equal(t, BackendMemory, AppConfig.StoreBackend)
	require.Equal(t, 15*time.Minute, AppConfig.FormTokenTTL)
	require.Equal(t, "44", AppConfig.DefaultCountryCode)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, AppConfig.CORSOrigins)
	require.Equal(t, 3, AppConfig.IssueRateLimit)
}

func TestValidate(t *testing.T) {
	valid := Config{
		JWTSecret:    "secret",
		StoreBackend: BackendMemory,
		TokenBackend: BackendMemory,
		FormTokenTTL: 20 * time.Minute,
	}
	require.NoError(t, valid.Validate())

	for _, ttl := range []time.Duration{MinFormTokenTTL, MaxFormTokenTTL} {
		c := valid
		c.FormTokenTTL = ttl
		require.NoError(t, c.Validate(), ttl.String())
	}

	cases := map[string]func(c *Config){
		"no jwt secret":           func(c *Config) { c.JWTSecret = "" },
		"postgres without pw":     func(c *Config) { c.StoreBackend = BackendPostgres },
		"unknown store":           func(c *Config) { c.StoreBackend = "mongo" },
		"redis tokens, redis off": func(c *Config) { c.TokenBackend = BackendRedis },
		"postgres tokens, mem db": func(c *Config) { c.TokenBackend = BackendPostgres },
		"unknown token backend":   func(c *Config) { c.TokenBackend = "etcd" },
		"zero ttl":                func(c *Config) { c.FormTokenTTL = 0 },
		"ttl too short":           func(c *Config) { c.FormTokenTTL = 10 * time.Minute },
		"ttl too long":            func(c *Config) { c.FormTokenTTL = 31 * time.Minute },
		"production without key":  func(c *Config) { c.Environment = "production" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestMaskPassword(t *testing.T) {
	require.Equal(t, "host=db password=***** dbname=x", maskPassword("host=db password=hunter2 dbname=x"))
	require.Equal(t, "host=db password=*****", maskPassword("host=db password=hunter2"))
	require.Equal(t, "host=db", maskPassword("host=db"))
}
