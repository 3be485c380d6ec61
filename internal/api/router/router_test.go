package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmiddleware "github.com/sudn2014/telegram-bot-teams/internal/http/middleware"
	"github.com/sudn2014/telegram-bot-teams/internal/observability/metrics"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

func TestRouterHealthEndpoint(t *testing.T) {
	router := New(&Config{Logger: logging.Default()})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewIntakeMetrics(reg).ObserveEvent("start")
	router := New(&Config{MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `teamsbot_intake_events_total{kind="start"} 1`) {
		t.Fatalf("metrics output missing counter:\n%s", rr.Body.String())
	}
}

func TestRouterWebhookRoute(t *testing.T) {
	calls := 0
	hook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	router := New(&Config{
		TelegramWebhook: hook,
		WebhookLimiter:  httpmiddleware.NewRateLimiter(0, 1),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{}")))
	if rr.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected webhook to be called, got status %d calls %d", rr.Code, calls)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{}")))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/telegram/webhook", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRouterWithoutOptionalRoutes(t *testing.T) {
	router := New(&Config{})
	for _, path := range []string{"/metrics", "/telegram/webhook"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected not found, got %d", path, rr.Code)
		}
	}
}
