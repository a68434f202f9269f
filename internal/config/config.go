// Package config loads application settings from environment variables,
// applies defaults, and validates the result before the server starts.
// Parse failures on optional values fall back to the default; validation
// failures on the assembled config abort startup.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "bestias-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// GenAIConfig defines the text-generation backend settings.
type GenAIConfig struct {
	APIKey            string        // OPENAI_API_KEY
	BaseURL           string        // OPENAI_BASE_URL (optional gateway override)
	FastModel         string        // GENAI_FAST_MODEL (resolver + short profile)
	StrongModel       string        // GENAI_STRONG_MODEL (full profile + reports)
	Timeout           time.Duration // GENAI_TIMEOUT per request
	ResolverMaxTokens int           // GENAI_RESOLVER_MAX_TOKENS
	ShortMaxTokens    int           // GENAI_SHORT_MAX_TOKENS
	FullMaxTokens     int           // GENAI_FULL_MAX_TOKENS
	CompatMaxTokens   int           // GENAI_COMPAT_MAX_TOKENS
}

// GoogleConfig defines Google sign-in settings. An empty client id disables
// the provider.
type GoogleConfig struct {
	ClientID string // GOOGLE_CLIENT_ID
}

// TelegramConfig defines Telegram login-widget settings. An empty bot token
// disables the provider.
type TelegramConfig struct {
	BotToken    string        // TELEGRAM_BOT_TOKEN
	BotUsername string        // TELEGRAM_BOT_USERNAME
	RedirectURI string        // TELEGRAM_REDIRECT_URI
	MaxAuthAge  time.Duration // TELEGRAM_MAX_AUTH_AGE
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 60s (generation calls are slow)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath         string // SQLite path
	DeepLinkBase   string // invite link prefix, e.g. "https://t.me/bestias_bot?start"
	DevSeedEnabled bool   // enable the test-data seeding endpoint

	// Generation backend
	GenAI GenAIConfig

	// Auth providers
	Google   GoogleConfig
	Telegram TelegramConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load assembles the configuration from the environment, normalizes the
// enum-like fields, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              envStr("PORT", "8080"),
		ReadTimeout:       envDur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    envInt("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(envStr("GIN_MODE", "release")),

		LogLevel:  strings.ToLower(envStr("LOG_LEVEL", "info")),
		LogPretty: envBool("LOG_PRETTY", false),

		DBPath:         envStr("DB_PATH", "app.db"),
		DeepLinkBase:   envStr("DEEP_LINK_BASE", ""),
		DevSeedEnabled: envBool("DEV_SEED_ENABLED", false),

		GenAI: GenAIConfig{
			APIKey:            envStr("OPENAI_API_KEY", ""),
			BaseURL:           envStr("OPENAI_BASE_URL", ""),
			FastModel:         envStr("GENAI_FAST_MODEL", "gpt-4o-mini"),
			StrongModel:       envStr("GENAI_STRONG_MODEL", "gpt-4o"),
			Timeout:           envDur("GENAI_TIMEOUT", 60*time.Second),
			ResolverMaxTokens: envInt("GENAI_RESOLVER_MAX_TOKENS", 120),
			ShortMaxTokens:    envInt("GENAI_SHORT_MAX_TOKENS", 520),
			FullMaxTokens:     envInt("GENAI_FULL_MAX_TOKENS", 1200),
			CompatMaxTokens:   envInt("GENAI_COMPAT_MAX_TOKENS", 1200),
		},

		Google: GoogleConfig{
			ClientID: envStr("GOOGLE_CLIENT_ID", ""),
		},
		Telegram: TelegramConfig{
			BotToken:    envStr("TELEGRAM_BOT_TOKEN", ""),
			BotUsername: envStr("TELEGRAM_BOT_USERNAME", ""),
			RedirectURI: envStr("TELEGRAM_REDIRECT_URI", ""),
			MaxAuthAge:  envDur("TELEGRAM_MAX_AUTH_AGE", 24*time.Hour),
		},

		RateRPS:   envFloat("RATE_RPS", 5.0),
		RateBurst: envInt("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: csvList(envStr("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: envBool("ENABLE_HSTS", false),
			HSTSMaxAge: envDur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			Endpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: envStr("OTEL_SERVICE_NAME", "bestias-backend"),
			SampleRatio: envFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if cfg.GenAI.Timeout <= 0 {
		return errors.New("GENAI_TIMEOUT must be > 0")
	}
	if cfg.GenAI.ResolverMaxTokens <= 0 || cfg.GenAI.ShortMaxTokens <= 0 ||
		cfg.GenAI.FullMaxTokens <= 0 || cfg.GenAI.CompatMaxTokens <= 0 {
		return errors.New("GENAI token budgets must be > 0")
	}
	if cfg.Telegram.MaxAuthAge <= 0 {
		return errors.New("TELEGRAM_MAX_AUTH_AGE must be > 0")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// Env readers. An unset or empty variable yields the default; so does a
// value that fails to parse, keeping a typo from taking the server down.

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// csvList splits a comma-separated value, trimming whitespace and dropping
// empty entries. Returns nil for an empty input.
func csvList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
