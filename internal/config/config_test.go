package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.StoreBackend != BackendMemory || cfg.ArchiveBackend != BackendMemory {
		t.Errorf("backends = %s/%s", cfg.StoreBackend, cfg.ArchiveBackend)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("session ttl = %s", cfg.SessionTTL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("request timeout = %s", cfg.RequestTimeout)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected default max conns 20, got %d", cfg.DBMaxConns)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SIMULATED_LATENCY_MS", "800")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StoreBackend != BackendRedis {
		t.Errorf("store backend = %s", cfg.StoreBackend)
	}
	if cfg.SessionTTL != 90*time.Minute {
		t.Errorf("session ttl = %s", cfg.SessionTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("brokers = %q", cfg.KafkaBrokers)
	}
	if cfg.SimulatedLatency() != 800*time.Millisecond {
		t.Errorf("latency = %s", cfg.SimulatedLatency())
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}
}

func validConfig() *Config {
	return &Config{
		Env:            "development",
		StoreBackend:   BackendMemory,
		ArchiveBackend: BackendMemory,
		DBMaxConns:     20,
		DBMinConns:     2,
		KafkaTopic:     "consultation-events",
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"redis without url", func(c *Config) { c.StoreBackend = BackendRedis }, "REDIS_URL"},
		{"unknown store", func(c *Config) { c.StoreBackend = "etcd" }, "STORE_BACKEND"},
		{"postgres without url", func(c *Config) { c.ArchiveBackend = BackendPostgres }, "DATABASE_URL"},
		{"unknown archive", func(c *Config) { c.ArchiveBackend = "s3" }, "ARCHIVE_BACKEND"},
		{"pool bounds", func(c *Config) { c.DBMinConns = 30 }, "DB_MIN_CONNS"},
		{"brokers without topic", func(c *Config) { c.KafkaBrokers = []string{"k:9092"}; c.KafkaTopic = "" }, "KAFKA_TOPIC"},
		{"negative latency", func(c *Config) { c.SimulatedLatencyMS = -1 }, "SIMULATED_LATENCY_MS"},
		{"jwt without key", func(c *Config) { c.Env = "staging" }, "AUTH_SIGNING_KEY"},
		{"short key in production", func(c *Config) { c.Env = "production"; c.AuthSigningKey = "short" }, "32 bytes"},
		{"dev auth in production", func(c *Config) { c.Env = "production"; c.AuthMode = AuthModeDevelopment }, "not allowed"},
		{"unknown auth mode", func(c *Config) { c.AuthMode = "oauth" }, "AUTH_MODE"},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, "REQUEST_TIMEOUT"},
		{"tls without cert", func(c *Config) { c.TLSEnabled = true }, "TLS_CERT_FILE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("got %v, want error mentioning %s", err, tc.want)
			}
		})
	}
}

func TestValidate_JWTWithKey(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.AuthSigningKey = strings.Repeat("k", 32)
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResolvedAuthMode(t *testing.T) {
	c := &Config{Env: "development"}
	if c.ResolvedAuthMode() != AuthModeDevelopment {
		t.Error("development should default to dev auth")
	}
	c.Env = "production"
	if c.ResolvedAuthMode() != AuthModeJWT {
		t.Error("production should default to jwt")
	}
	c.AuthMode = AuthModeDevelopment
	if c.ResolvedAuthMode() != AuthModeDevelopment {
		t.Error("explicit AUTH_MODE should win")
	}
}
