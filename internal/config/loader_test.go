package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var knownVariables = []string{
	"CONFIG_FILE", "HTTP_ADDR", "SHUTDOWN_TIMEOUT", "REQUEST_TIMEOUT", "ALLOWED_ORIGINS", "LOG_LEVEL", "TIME_ZONE",
	"STORE_DRIVER", "SQLITE_PATH", "POSTGRES_DSN", "JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE",
	"SLOT_HORIZON_DAYS", "SLOT_LENGTH", "SLOT_MAX", "PENDING_EXPIRY", "CANCELLATION_CUTOFF",
	"COMPLETION_GRACE", "SWEEP_INTERVAL", "LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL", "LLM_TIMEOUT",
	"LLM_REQUESTS_PER_MINUTE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_TTL",
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL", "TOKEN_KEY", "METRICS_ENABLED",
}

// clearEnv blanks every variable Load reads; blank values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range knownVariables {
		t.Setenv(EnvPrefix+name, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ICEBREAKER_JWT_SECRET", "super-secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTP.Addr != ":8080" {
			t.Fatalf("expected default address :8080, got %q", cfg.HTTP.Addr)
		}
		if cfg.Store.Driver != "sqlite" || cfg.Store.SQLitePath != "icebreaker.db" {
			t.Fatalf("unexpected default store: %+v", cfg.Store)
		}
		if cfg.Slots.HorizonDays != 14 || cfg.Slots.SlotLength != time.Hour || cfg.Slots.MaxSlots != 20 {
			t.Fatalf("unexpected slot defaults: %+v", cfg.Slots)
		}
		if cfg.Meetings.CancellationCutoff != 48*time.Hour || cfg.Meetings.PendingExpiry != 96*time.Hour {
			t.Fatalf("unexpected meeting defaults: %+v", cfg.Meetings)
		}
		if cfg.Auth.JWTSecret != "super-secret" {
			t.Fatalf("expected jwt secret, got %q", cfg.Auth.JWTSecret)
		}
		if !cfg.Metrics.Enabled || cfg.Google.Enabled() {
			t.Fatalf("unexpected toggles: metrics=%v google=%v", cfg.Metrics.Enabled, cfg.Google.Enabled())
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required environment variables: ICEBREAKER_JWT_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("requires a token key when google is configured", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ICEBREAKER_JWT_SECRET", "secret")
		t.Setenv("ICEBREAKER_GOOGLE_CLIENT_ID", "client")
		t.Setenv("ICEBREAKER_GOOGLE_CLIENT_SECRET", "client-secret")
		t.Setenv("ICEBREAKER_GOOGLE_REDIRECT_URL", "https://icebreaker.example.com/oauth/google/callback")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "ICEBREAKER_TOKEN_KEY") {
			t.Fatalf("expected missing token key, got %v", err)
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ICEBREAKER_JWT_SECRET", "secret-value")
		t.Setenv("ICEBREAKER_HTTP_ADDR", ":9090")
		t.Setenv("ICEBREAKER_STORE_DRIVER", "postgres")
		t.Setenv("ICEBREAKER_POSTGRES_DSN", "postgres://localhost/icebreaker")
		t.Setenv("ICEBREAKER_SLOT_LENGTH", "30m")
		t.Setenv("ICEBREAKER_SLOT_MAX", "10")
		t.Setenv("ICEBREAKER_REDIS_DB", "2")
		t.Setenv("ICEBREAKER_METRICS_ENABLED", "false")
		t.Setenv("ICEBREAKER_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
		t.Setenv("ICEBREAKER_TIME_ZONE", "America/New_York")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTP.Addr != ":9090" || cfg.Store.Driver != "postgres" {
			t.Fatalf("unexpected values: %+v %+v", cfg.HTTP, cfg.Store)
		}
		if cfg.Slots.SlotLength != 30*time.Minute || cfg.Slots.MaxSlots != 10 {
			t.Fatalf("unexpected slots: %+v", cfg.Slots)
		}
		if cfg.Redis.DB != 2 || cfg.Metrics.Enabled {
			t.Fatalf("unexpected redis/metrics: %+v %+v", cfg.Redis, cfg.Metrics)
		}
		if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://b.example.com" {
			t.Fatalf("unexpected origins: %v", cfg.HTTP.AllowedOrigins)
		}
		loc, err := cfg.Location()
		if err != nil || loc.String() != "America/New_York" {
			t.Fatalf("unexpected location %v %v", loc, err)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ICEBREAKER_JWT_SECRET", "secret")
		t.Setenv("ICEBREAKER_SLOT_MAX", "zero")
		t.Setenv("ICEBREAKER_SWEEP_INTERVAL", "-5m")
		t.Setenv("ICEBREAKER_STORE_DRIVER", "mysql")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error")
		}
		expected := "invalid environment variable values: ICEBREAKER_SLOT_MAX, ICEBREAKER_SWEEP_INTERVAL, ICEBREAKER_STORE_DRIVER"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "icebreaker.yaml")
	content := `
http:
  addr: ":7000"
auth:
  jwt_secret: "${TEST_ICEBREAKER_SECRET}"
meetings:
  sweep_interval: 1m
llm:
  base_url: https://llm.example.com/v1
  requests_per_minute: 12
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TEST_ICEBREAKER_SECRET", "from-file")
	t.Setenv("ICEBREAKER_CONFIG_FILE", path)
	t.Setenv("ICEBREAKER_HTTP_ADDR", ":7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Fatalf("expected expanded secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.HTTP.Addr != ":7001" {
		t.Fatalf("environment must override the file, got %q", cfg.HTTP.Addr)
	}
	if cfg.Meetings.SweepInterval != time.Minute || cfg.LLM.RequestsPerMinute != 12 {
		t.Fatalf("unexpected file values: %+v %+v", cfg.Meetings, cfg.LLM)
	}
	if cfg.HTTP.ShutdownTimeout != 15*time.Second {
		t.Fatalf("defaults must survive the overlay, got %s", cfg.HTTP.ShutdownTimeout)
	}
}

func TestLoader_ConfigFileMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("ICEBREAKER_JWT_SECRET", "secret")
	t.Setenv("ICEBREAKER_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
