package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestFail_ServerErrorLogsAndEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-analysis")
		c.Set("logger", &logger)
		c.Next()
	})
	r.POST("/analyze/short", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, ErrCodeAnalysisFailed, "generation failed")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/analyze/short", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RequestID != "rid-analysis" || resp.Code != ErrCodeAnalysisFailed || resp.Message != "generation failed" {
		t.Fatalf("envelope = %+v", resp)
	}
	// 5xx failures must leave an error-level trace in the request logger.
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func TestFail_ClientErrorSkipsErrorLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-credits")
		c.Set("logger", &logger)
		c.Next()
	})
	r.POST("/compatibility/check", func(c *gin.Context) {
		Fail(c, http.StatusPaymentRequired, ErrCodePaymentRequired, "not enough credits")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/compatibility/check", nil))

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Code != ErrCodePaymentRequired || resp.RequestID != "rid-credits" {
		t.Fatalf("envelope = %+v", resp)
	}
	if strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("4xx must not log at error level: %s", buf.String())
	}
}

func TestSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/result", func(c *gin.Context) {
		ok(c, http.StatusOK, gin.H{"type": "short", "result_id": "run-1"})
	})
	r.DELETE("/session", func(c *gin.Context) {
		noContent(c)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/result", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["type"] != "short" || body["result_id"] != "run-1" {
		t.Fatalf("body = %#v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/session", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent: status %d, body %q", w.Code, w.Body.String())
	}
}
