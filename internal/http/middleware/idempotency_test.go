package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reino-app/bestias-backend/internal/domain"
)

// serveIdem runs one request with the given header through a router composed
// of prep middleware (optional), the validator, and the supplied handler.
func serveIdem(t *testing.T, opts IdempotencyOptions, lookup IdempotencyLookup, prep gin.HandlerFunc, key string, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if prep != nil {
		r.Use(prep)
	}
	r.Use(IdempotencyValidator(opts, lookup))
	r.POST("/compatibility/check", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/compatibility/check", nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyAccessors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected no key on a fresh context, got %q", k)
	}
	if IsReplay(c) {
		t.Fatal("replay must default to false")
	}

	// Wrong-typed values read as absent, never panic.
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatal("non-string key must read as absent")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatal("non-bool replay flag must read as false")
	}

	c.Set(ctxKeyIdemReplay, true)
	if !IsReplay(c) {
		t.Fatal("expected replay after flag set")
	}
}

func TestIdempotencyValidator_NoHeaderIsNoOp(t *testing.T) {
	var lookupRuns int
	lookup := func(context.Context, uint, string, time.Time) (bool, error) {
		lookupRuns++
		return true, nil
	}

	w := serveIdem(t, IdempotencyOptions{}, lookup, nil, "", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatal("no header, no stashed key")
		}
		c.Status(http.StatusNoContent)
	})

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if lookupRuns != 0 {
		t.Fatal("lookup must not run when the header is absent")
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	t.Run("over max length", func(t *testing.T) {
		w := serveIdem(t, IdempotencyOptions{MaxLen: 5}, nil, nil, "abcdef",
			func(c *gin.Context) { c.Status(http.StatusOK) })
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if body["code"] != "bad_idempotency_key" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("custom pattern", func(t *testing.T) {
		opts := IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}
		w := serveIdem(t, opts, nil, nil, "abc123",
			func(c *gin.Context) { c.Status(http.StatusOK) })
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestIdempotencyValidator_StashesKeyWithoutLookup(t *testing.T) {
	// Zero options fall back to the 64-char limit and the default pattern,
	// which must accept a typical client request id.
	w := serveIdem(t, IdempotencyOptions{}, nil, nil, "req-2024.01:a_b~c", func(c *gin.Context) {
		key, ok := GetIdempotencyKey(c)
		if !ok || key != "req-2024.01:a_b~c" {
			t.Fatalf("stashed key mismatch: %q ok=%v", key, ok)
		}
		if IsReplay(c) || IsRateBypass(c) {
			t.Fatal("nil lookup must never flag a replay")
		}
		c.Status(http.StatusOK)
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestIdempotencyValidator_LookupFlow(t *testing.T) {
	asUser := func(id uint) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(ctxKeyUser, &domain.User{ID: id})
			c.Next()
		}
	}

	t.Run("anonymous request skips lookup", func(t *testing.T) {
		called := false
		lookup := func(context.Context, uint, string, time.Time) (bool, error) {
			called = true
			return true, nil
		}
		w := serveIdem(t, IdempotencyOptions{}, lookup, nil, "key-1", func(c *gin.Context) {
			if IsReplay(c) || IsRateBypass(c) {
				t.Fatal("no identity, no replay detection")
			}
			c.Status(http.StatusOK)
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if called {
			t.Fatal("lookup must not run for anonymous requests")
		}
	})

	t.Run("miss leaves flags unset", func(t *testing.T) {
		lookup := func(_ context.Context, userID uint, key string, now time.Time) (bool, error) {
			if userID != 9 || key != "key-2" || now.IsZero() {
				t.Fatalf("lookup args not populated: uid=%d key=%q now=%v", userID, key, now)
			}
			return false, nil
		}
		w := serveIdem(t, IdempotencyOptions{}, lookup, asUser(9), "key-2", func(c *gin.Context) {
			if IsReplay(c) || IsRateBypass(c) {
				t.Fatal("miss must not flag replay or bypass")
			}
			c.Status(http.StatusOK)
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("hit flags replay and rate bypass", func(t *testing.T) {
		lookup := func(_ context.Context, userID uint, key string, _ time.Time) (bool, error) {
			return userID == 9 && key == "k-9", nil
		}
		w := serveIdem(t, IdempotencyOptions{}, lookup, asUser(9), "k-9", func(c *gin.Context) {
			if !IsReplay(c) {
				t.Fatal("expected replay flag on hit")
			}
			if !IsRateBypass(c) {
				t.Fatal("expected rate bypass on hit")
			}
			c.Status(http.StatusOK)
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})
}
