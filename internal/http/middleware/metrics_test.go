package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RequestCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/result/short/:runId", func(c *gin.Context) {
		c.String(http.StatusOK, "profile text")
	})
	r.POST("/compatibility/check", func(c *gin.Context) {
		c.Status(http.StatusPaymentRequired)
	})

	// Baselines: the registry is process-global and shared across tests.
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/result/short/:runId", "200"))
	base402 := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/compatibility/check", "402"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/result/short/run-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("short result: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/compatibility/check", nil))
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("check: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing route: %d", w.Code)
	}

	// Matched routes are labeled by their registered pattern, so the run id
	// does not explode label cardinality.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/result/short/:runId", "200")); got != baseOK+1 {
		t.Fatalf("pattern-labeled counter = %v, want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/compatibility/check", "402")); got != base402+1 {
		t.Fatalf("402 counter = %v, want %v", got, base402+1)
	}
	// Unmatched requests fall back to the raw URL path.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")); got != base404+1 {
		t.Fatalf("404 fallback counter = %v, want %v", got, base404+1)
	}

	if inflight := testutil.ToFloat64(httpInflight); inflight != 0 {
		t.Fatalf("inflight gauge = %v after completion", inflight)
	}
}

func TestDomainMetricObservers(t *testing.T) {
	baseReady := testutil.ToFloat64(reportOutcomes.WithLabelValues("ready"))
	baseFailed := testutil.ToFloat64(reportOutcomes.WithLabelValues("failed"))
	baseCheck := testutil.ToFloat64(creditsSpent.WithLabelValues("check"))
	baseInvite := testutil.ToFloat64(creditsSpent.WithLabelValues("invite"))

	ObserveReportOutcome("ready")
	ObserveReportOutcome("failed")
	ObserveCreditSpent("check")
	ObserveCreditSpent("check")
	ObserveCreditSpent("invite")

	if got := testutil.ToFloat64(reportOutcomes.WithLabelValues("ready")); got != baseReady+1 {
		t.Fatalf("ready outcomes = %v, want %v", got, baseReady+1)
	}
	if got := testutil.ToFloat64(reportOutcomes.WithLabelValues("failed")); got != baseFailed+1 {
		t.Fatalf("failed outcomes = %v, want %v", got, baseFailed+1)
	}
	if got := testutil.ToFloat64(creditsSpent.WithLabelValues("check")); got != baseCheck+2 {
		t.Fatalf("check credits = %v, want %v", got, baseCheck+2)
	}
	if got := testutil.ToFloat64(creditsSpent.WithLabelValues("invite")); got != baseInvite+1 {
		t.Fatalf("invite credits = %v, want %v", got, baseInvite+1)
	}
}
