package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

// Setenv leaks between tests through the process environment, so TestMain
// clears the one key the success tests depend on.
func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

func errContains(err error, want string) bool {
	return err != nil && strings.Contains(err.Error(), want)
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on invalid config", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		defer func() {
			if recover() == nil {
				t.Fatal("MustLoad should panic when Load fails")
			}
		}()
		_ = MustLoad()
	})

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := MustLoad()
		if cfg.Port == "" {
			t.Fatal("unexpected empty config from MustLoad")
		}
	})
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird")     // normalized to release
	t.Setenv("LOG_LEVEL", "warning")  // normalized to warn
	t.Setenv("LOG_PRETTY", "yes")

	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("DEEP_LINK_BASE", "https://t.me/bot?start")
	t.Setenv("DEV_SEED_ENABLED", "on")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://gateway:9009/v1")
	t.Setenv("GENAI_FAST_MODEL", "fast-1")
	t.Setenv("GENAI_STRONG_MODEL", "strong-1")
	t.Setenv("GENAI_TIMEOUT", "30s")
	t.Setenv("GENAI_RESOLVER_MAX_TOKENS", "100")
	t.Setenv("GENAI_SHORT_MAX_TOKENS", "500")
	t.Setenv("GENAI_FULL_MAX_TOKENS", "1000")
	t.Setenv("GENAI_COMPAT_MAX_TOKENS", "1100")

	t.Setenv("GOOGLE_CLIENT_ID", "cid.apps.googleusercontent.com")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_BOT_USERNAME", "bestias_bot")
	t.Setenv("TELEGRAM_REDIRECT_URI", "https://app.example/tg")
	t.Setenv("TELEGRAM_MAX_AUTH_AGE", "12h")

	// Unparseable numbers fall back to the defaults.
	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode should normalize to release, got %q", cfg.GinMode)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging unexpected: level=%q pretty=%v", cfg.LogLevel, cfg.LogPretty)
	}
	if cfg.DBPath != "db.sqlite" || cfg.DeepLinkBase != "https://t.me/bot?start" || !cfg.DevSeedEnabled {
		t.Fatalf("app fields unexpected: %+v", cfg)
	}

	wantGenAI := GenAIConfig{
		APIKey:            "sk-test",
		BaseURL:           "http://gateway:9009/v1",
		FastModel:         "fast-1",
		StrongModel:       "strong-1",
		Timeout:           30 * time.Second,
		ResolverMaxTokens: 100,
		ShortMaxTokens:    500,
		FullMaxTokens:     1000,
		CompatMaxTokens:   1100,
	}
	if cfg.GenAI != wantGenAI {
		t.Fatalf("genai fields unexpected: %+v", cfg.GenAI)
	}

	if cfg.Google.ClientID != "cid.apps.googleusercontent.com" {
		t.Fatalf("google fields unexpected: %+v", cfg.Google)
	}
	wantTG := TelegramConfig{
		BotToken:    "123:abc",
		BotUsername: "bestias_bot",
		RedirectURI: "https://app.example/tg",
		MaxAuthAge:  12 * time.Hour,
	}
	if cfg.Telegram != wantTG {
		t.Fatalf("telegram fields unexpected: %+v", cfg.Telegram)
	}

	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limits should fall back to defaults: rps=%v burst=%d", cfg.RateRPS, cfg.RateBurst)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure ||
		cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"blank PORT", "PORT", "   ", "PORT must not be empty"},
		{"zero timeout", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"zero header cap", "MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"blank DB_PATH", "DB_PATH", "   ", "DB_PATH must not be empty"},
		{"zero genai timeout", "GENAI_TIMEOUT", "0s", "GENAI_TIMEOUT"},
		{"negative token budget", "GENAI_SHORT_MAX_TOKENS", "-1", "token budgets"},
		{"zero telegram auth age", "TELEGRAM_MAX_AUTH_AGE", "0s", "TELEGRAM_MAX_AUTH_AGE"},
		{"negative rps", "RATE_RPS", "-1", "RATE_RPS"},
		{"zero burst", "RATE_BURST", "0", "RATE_BURST"},
		{"negative hsts age", "HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"sample ratio above one", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); !errContains(err, tc.wantErr) {
				t.Fatalf("want error containing %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestEnvReaders(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if envStr("X_EMPTY", "d") != "d" {
		t.Fatal("empty variable should yield the default")
	}
	t.Setenv("X_SET", "val")
	if envStr("X_SET", "d") != "val" {
		t.Fatal("set variable should win over the default")
	}

	t.Setenv("F_VALID", "3.14")
	t.Setenv("F_BAD", "nope")
	if envFloat("F_VALID", 0) != 3.14 || envFloat("F_BAD", 1.23) != 1.23 {
		t.Fatal("envFloat parse or fallback mismatch")
	}

	t.Setenv("I_VALID", "42")
	t.Setenv("I_BAD", "x")
	if envInt("I_VALID", 0) != 42 || envInt("I_BAD", 7) != 7 {
		t.Fatal("envInt parse or fallback mismatch")
	}

	t.Setenv("D_VALID", "150ms")
	t.Setenv("D_BAD", "zzz")
	if envDur("D_VALID", time.Second) != 150*time.Millisecond || envDur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatal("envDur parse or fallback mismatch")
	}
}

func TestEnvBool(t *testing.T) {
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"} {
		key := "B_T_" + strconv.Itoa(i)
		t.Setenv(key, v)
		if !envBool(key, false) {
			t.Fatalf("envBool(%q) = false, want true", v)
		}
	}
	for i, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off"} {
		key := "B_F_" + strconv.Itoa(i)
		t.Setenv(key, v)
		if envBool(key, true) {
			t.Fatalf("envBool(%q) = true, want false", v)
		}
	}

	// Empty and unrecognized values fall through to the default.
	t.Setenv("B_EMPTY", "")
	t.Setenv("B_JUNK", "maybe")
	if !envBool("B_EMPTY", true) || envBool("B_EMPTY", false) || !envBool("B_JUNK", true) {
		t.Fatal("envBool default behavior unexpected")
	}
}

func TestCSVList(t *testing.T) {
	if out := csvList(""); out != nil {
		t.Fatal("empty input should return nil")
	}
	got := csvList(" a, ,b ,  c  ,")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("csvList mismatch: %#v", got)
	}
}
