package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/health", func(c *gin.Context) {
		if v, ok := c.Get(requestIDKey); !ok || v == "" {
			t.Error("request id missing from context")
		}
		c.Status(http.StatusOK)
	})

	// Absent header: one is generated.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("no generated request id on response")
	}

	// Client-supplied ids are echoed back, whatever the header casing.
	for _, hdr := range []string{requestIDHeader, strings.ToLower(requestIDHeader)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(hdr, "client-rid-9")
		r.ServeHTTP(w, req)
		if got := w.Header().Get(requestIDHeader); got != "client-rid-9" {
			t.Fatalf("header %s: response id = %q", hdr, got)
		}
	}
}

func TestLogger_LevelsAndPathLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/users/me", func(c *gin.Context) { c.String(http.StatusOK, "me") })
	r.POST("/compatibility/check", func(c *gin.Context) {
		_ = c.Error(errGeneration)
		c.Status(http.StatusBadRequest)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))

	// 404 logs at warn with the raw path, since no route pattern matched.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unknown", nil))

	// A handler that attached a gin error logs at error level.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/compatibility/check", nil))

	logs := buf.String()
	if !strings.Contains(logs, `"level":"info"`) || !strings.Contains(logs, `"path":"/users/me"`) {
		t.Fatalf("missing info log for matched route:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"path":"/unknown"`) {
		t.Fatalf("missing warn log with raw-path fallback:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) {
		t.Fatalf("missing error log for handler with attached error:\n%s", logs)
	}
}

var errGeneration = errors.New("generation backend unreachable")

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Without Logger() installed, LoggerFrom falls back to the global logger
	// and carries no request fields.
	buf := captureLogger(t)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/probe", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("fallback write")
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if out := buf.String(); !strings.Contains(out, "fallback write") || strings.Contains(out, `"request_id"`) {
		t.Fatalf("fallback logger output:\n%s", out)
	}

	// With Logger() installed the request-scoped logger carries request_id.
	buf = captureLogger(t)
	r = gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/probe", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("scoped write")
		c.Status(http.StatusOK)
	})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if out := buf.String(); !strings.Contains(out, "scoped write") || !strings.Contains(out, `"request_id"`) {
		t.Fatalf("request-scoped logger output:\n%s", out)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.POST("/analyze/short", func(c *gin.Context) {
		panic("resolver blew up")
	})
	r.GET("/stream", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late failure")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/analyze/short", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "internal_error" {
		t.Fatalf("body = %v", body)
	}
	if out := buf.String(); !strings.Contains(out, "panic") {
		t.Fatalf("panic not logged:\n%s", out)
	}

	// When the response already started, Recovery must not append the JSON
	// envelope to the partial body.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("error envelope appended to partial body: %q", w.Body.String())
	}
}

func TestLogHelpers(t *testing.T) {
	if asString("abc") != "abc" || asString(42) != "" {
		t.Error("asString misbehaved")
	}
	if truncate("short", 10) != "short" {
		t.Error("truncate altered a short string")
	}
	if got := truncate("abcdefgh", 5); got != "abcde…" {
		t.Errorf("truncate = %q", got)
	}
	if truncate("abc", 0) != "abc" {
		t.Error("truncate with max<=0 should be a no-op")
	}
}
