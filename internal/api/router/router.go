package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/sudn2014/telegram-bot-teams/internal/http/middleware"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// TelegramWebhook serves POST /telegram/webhook when set.
	TelegramWebhook http.Handler
	// WebhookLimiter throttles the webhook per client IP when set.
	WebhookLimiter *httpmiddleware.RateLimiter
}

// New creates the intake agent's HTTP surface.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.TelegramWebhook != nil {
		r.Group(func(hook chi.Router) {
			if cfg.WebhookLimiter != nil {
				hook.Use(httpmiddleware.RateLimit(cfg.WebhookLimiter))
			}
			hook.Post("/telegram/webhook", cfg.TelegramWebhook.ServeHTTP)
		})
	}
	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
