package telegram

import (
	"context"
	"time"

	"github.com/sudn2014/telegram-bot-teams/internal/intake"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

type updatesClient interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	DeleteWebhook(ctx context.Context, dropPending bool) error
}

// Poller long-polls getUpdates and feeds the resulting events to a channel.
type Poller struct {
	client     updatesClient
	logger     *logging.Logger
	timeout    time.Duration
	errBackoff time.Duration
	offset     int64
}

func NewPoller(client updatesClient, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Poller{
		client:     client,
		logger:     logger,
		timeout:    30 * time.Second,
		errBackoff: 3 * time.Second,
	}
}

func (p *Poller) WithTimeout(d time.Duration) *Poller {
	if d > 0 {
		p.timeout = d
	}
	return p
}

func (p *Poller) WithErrorBackoff(d time.Duration) *Poller {
	if d > 0 {
		p.errBackoff = d
	}
	return p
}

// Run clears any registered webhook, then polls until ctx is done. Poll
// errors are logged and retried after a pause.
func (p *Poller) Run(ctx context.Context, out chan<- intake.Event) {
	if err := p.client.DeleteWebhook(ctx, false); err != nil {
		p.logger.Warn("delete webhook failed; polling anyway", "error", err)
	}
	p.logger.Info("telegram polling started", "timeout", p.timeout.String())

	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := p.client.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("getUpdates failed", "error", err, "offset", p.offset)
			if !sleepCtx(ctx, p.errBackoff) {
				return
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			for _, ev := range ToEvents(u) {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
