package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sudn2014/telegram-bot-teams/internal/intake"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

// SecretHeader carries the secret registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// WebhookHandler accepts pushed updates and forwards their events to the
// same channel the agent consumes. Processing stays on the agent goroutine.
type WebhookHandler struct {
	secret string
	out    chan<- intake.Event
	logger *logging.Logger
}

func NewWebhookHandler(secret string, out chan<- intake.Event, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{secret: secret, out: out, logger: logger}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("telegram webhook rejected: bad secret", "remote_addr", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var update Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		h.logger.Warn("telegram webhook decode failed", "error", err)
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	for _, ev := range ToEvents(update) {
		select {
		case h.out <- ev:
		case <-r.Context().Done():
			h.logger.Warn("telegram webhook dropped events", "update_id", update.UpdateID)
			http.Error(w, "timeout", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
