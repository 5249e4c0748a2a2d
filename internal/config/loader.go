package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "ICEBREAKER_"

// Config captures the service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	TimeZone string         `yaml:"time_zone"`
	Store    StoreConfig    `yaml:"store"`
	Auth     AuthConfig     `yaml:"auth"`
	Slots    SlotsConfig    `yaml:"slots"`
	Meetings MeetingsConfig `yaml:"meetings"`
	LLM      LLMConfig      `yaml:"llm"`
	Redis    RedisConfig    `yaml:"redis"`
	Google   GoogleConfig   `yaml:"google"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

type SlotsConfig struct {
	HorizonDays int           `yaml:"horizon_days"`
	SlotLength  time.Duration `yaml:"slot_length"`
	MaxSlots    int           `yaml:"max_slots"`
}

type MeetingsConfig struct {
	PendingExpiry      time.Duration `yaml:"pending_expiry"`
	CancellationCutoff time.Duration `yaml:"cancellation_cutoff"`
	CompletionGrace    time.Duration `yaml:"completion_grace"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
}

// LLMConfig configures the ranking gateway. An empty BaseURL disables it.
type LLMConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// RedisConfig configures the suggestion cache. An empty Addr selects the
// in-process cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	TokenKey     string `yaml:"token_key"`
}

// Enabled reports whether Google Calendar integration is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Log:      LogConfig{Level: "info"},
		TimeZone: "UTC",
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "icebreaker.db",
		},
		Slots: SlotsConfig{
			HorizonDays: 14,
			SlotLength:  time.Hour,
			MaxSlots:    20,
		},
		Meetings: MeetingsConfig{
			PendingExpiry:      96 * time.Hour,
			CancellationCutoff: 48 * time.Hour,
			CompletionGrace:    2 * time.Hour,
			SweepInterval:      5 * time.Minute,
		},
		LLM: LLMConfig{
			Model:             "gpt-4o-mini",
			Timeout:           30 * time.Second,
			RequestsPerMinute: 30,
		},
		Redis:   RedisConfig{TTL: 10 * time.Minute},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Location resolves TimeZone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Load builds the configuration from, in increasing precedence, the
// defaults, the YAML file named by ICEBREAKER_CONFIG_FILE and the process
// environment. A .env file in the working directory is loaded first when
// present; variables already set win over it.
//
// Missing required values and unparsable values are accumulated and
// reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv(EnvPrefix + "CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	env := &envReader{}
	env.string("HTTP_ADDR", &cfg.HTTP.Addr)
	env.duration("SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	env.duration("REQUEST_TIMEOUT", &cfg.HTTP.RequestTimeout)
	env.list("ALLOWED_ORIGINS", &cfg.HTTP.AllowedOrigins)
	env.string("LOG_LEVEL", &cfg.Log.Level)
	env.string("TIME_ZONE", &cfg.TimeZone)

	env.string("STORE_DRIVER", &cfg.Store.Driver)
	env.string("SQLITE_PATH", &cfg.Store.SQLitePath)
	env.string("POSTGRES_DSN", &cfg.Store.PostgresDSN)

	env.string("JWT_SECRET", &cfg.Auth.JWTSecret)
	env.string("JWT_ISSUER", &cfg.Auth.Issuer)
	env.string("JWT_AUDIENCE", &cfg.Auth.Audience)

	env.positiveInt("SLOT_HORIZON_DAYS", &cfg.Slots.HorizonDays)
	env.duration("SLOT_LENGTH", &cfg.Slots.SlotLength)
	env.positiveInt("SLOT_MAX", &cfg.Slots.MaxSlots)

	env.duration("PENDING_EXPIRY", &cfg.Meetings.PendingExpiry)
	env.duration("CANCELLATION_CUTOFF", &cfg.Meetings.CancellationCutoff)
	env.duration("COMPLETION_GRACE", &cfg.Meetings.CompletionGrace)
	env.duration("SWEEP_INTERVAL", &cfg.Meetings.SweepInterval)

	env.string("LLM_BASE_URL", &cfg.LLM.BaseURL)
	env.string("LLM_API_KEY", &cfg.LLM.APIKey)
	env.string("LLM_MODEL", &cfg.LLM.Model)
	env.duration("LLM_TIMEOUT", &cfg.LLM.Timeout)
	env.positiveInt("LLM_REQUESTS_PER_MINUTE", &cfg.LLM.RequestsPerMinute)

	env.string("REDIS_ADDR", &cfg.Redis.Addr)
	env.string("REDIS_PASSWORD", &cfg.Redis.Password)
	env.nonNegativeInt("REDIS_DB", &cfg.Redis.DB)
	env.duration("REDIS_TTL", &cfg.Redis.TTL)

	env.string("GOOGLE_CLIENT_ID", &cfg.Google.ClientID)
	env.string("GOOGLE_CLIENT_SECRET", &cfg.Google.ClientSecret)
	env.string("GOOGLE_REDIRECT_URL", &cfg.Google.RedirectURL)
	env.string("TOKEN_KEY", &cfg.Google.TokenKey)

	env.bool("METRICS_ENABLED", &cfg.Metrics.Enabled)

	cfg.validate(env)

	if len(env.missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(env.missing, ", "))
	}
	if len(env.invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(env.invalid, ", "))
	}

	return cfg, nil
}

func (c *Config) validate(env *envReader) {
	if c.Auth.JWTSecret == "" {
		env.missing = append(env.missing, EnvPrefix+"JWT_SECRET")
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			env.missing = append(env.missing, EnvPrefix+"SQLITE_PATH")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			env.missing = append(env.missing, EnvPrefix+"POSTGRES_DSN")
		}
	default:
		env.invalid = append(env.invalid, EnvPrefix+"STORE_DRIVER")
	}

	if c.Google.Enabled() && c.Google.TokenKey == "" {
		env.missing = append(env.missing, EnvPrefix+"TOKEN_KEY")
	}

	if _, err := c.Location(); err != nil {
		env.invalid = append(env.invalid, EnvPrefix+"TIME_ZONE")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		env.invalid = append(env.invalid, EnvPrefix+"LOG_LEVEL")
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// envReader applies ICEBREAKER_ variables and records the names of those
// that are missing or invalid.
type envReader struct {
	missing []string
	invalid []string
}

func (e *envReader) lookup(name string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(EnvPrefix + name))
	return value, value != ""
}

func (e *envReader) fail(name string) {
	e.invalid = append(e.invalid, EnvPrefix+name)
}

func (e *envReader) string(name string, dst *string) {
	if value, ok := e.lookup(name); ok {
		*dst = value
	}
}

func (e *envReader) list(name string, dst *[]string) {
	value, ok := e.lookup(name)
	if !ok {
		return
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (e *envReader) duration(name string, dst *time.Duration) {
	value, ok := e.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		e.fail(name)
		return
	}
	*dst = d
}

func (e *envReader) positiveInt(name string, dst *int) {
	value, ok := e.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		e.fail(name)
		return
	}
	*dst = n
}

func (e *envReader) nonNegativeInt(name string, dst *int) {
	value, ok := e.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		e.fail(name)
		return
	}
	*dst = n
}

func (e *envReader) bool(name string, dst *bool) {
	value, ok := e.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(name)
		return
	}
	*dst = b
}
