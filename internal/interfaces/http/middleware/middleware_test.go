package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordedObservation struct {
	method string
	route  string
	status int
}

type recordingMetrics struct {
	mu           sync.Mutex
	observations []recordedObservation
}

func (r *recordingMetrics) ObserveHTTPRequest(method, route string, status int, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = append(r.observations, recordedObservation{method, route, status})
}

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	rec := &recordingMetrics{}
	r := gin.New()
	r.Use(Metrics(rec))
	r.GET("/api/v1/citation-jobs/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/citation-jobs/job-1", nil))

	if len(rec.observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(rec.observations))
	}
	obs := rec.observations[0]
	if obs.route != "/api/v1/citation-jobs/:id" {
		t.Fatalf("expected route template, got %q", obs.route)
	}
	if obs.status != http.StatusOK || obs.method != http.MethodGet {
		t.Fatalf("unexpected observation: %+v", obs)
	}
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	rec := &recordingMetrics{}
	r := gin.New()
	r.Use(Metrics(rec))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if len(rec.observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(rec.observations))
	}
	if rec.observations[0].route != "unmatched" {
		t.Fatalf("expected unmatched bucket, got %q", rec.observations[0].route)
	}
}

func TestRequestLogging_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging(logging.NewNopLogger(), DefaultLoggingConfig()))
	r.GET("/x", func(c *gin.Context) {
		if RequestID(c) == "" {
			t.Error("expected request id in context")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID response header")
	}
}

func TestCORS_AllowAll(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{AllowAllOrigins: true}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected echoed origin, got %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("request itself should pass; got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for disallowed origin, got %q", got)
	}
}
