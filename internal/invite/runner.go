// Package invite implements the batch inviter: read the shared queue file,
// pick the addresses submitted recently, and add each one to the team.
package invite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
	"github.com/sudn2014/telegram-bot-teams/internal/directory"
	"github.com/sudn2014/telegram-bot-teams/internal/observability/metrics"
	"github.com/sudn2014/telegram-bot-teams/internal/queue"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

var (
	// ErrFetch means the queue file could not be read from the remote.
	ErrFetch = errors.New("invite: fetch queue file")
	// ErrAuth means no access token could be obtained.
	ErrAuth = errors.New("invite: acquire access token")
)

type source interface {
	Fetch(ctx context.Context) (queue.Snapshot, error)
}

// Directory adds one member to a team.
type Directory interface {
	AddMember(ctx context.Context, token, teamID string, m directory.Member) error
}

// Summary reports what one run did.
type Summary struct {
	RunID     string
	Parsed    int
	Skipped   int
	Selected  int
	Attempted int
	Succeeded int
	Failed    []string
}

// Runner performs one batch run. It keeps no state between runs: an
// unchanged file yields the same targets every time.
type Runner struct {
	source  source
	tokens  directory.TokenSource
	dir     Directory
	teamID  string
	window  time.Duration
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.InviteMetrics
	tracer  trace.Tracer
}

func NewRunner(src source, tokens directory.TokenSource, dir Directory, teamID string, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		source: src,
		tokens: tokens,
		dir:    dir,
		teamID: teamID,
		window: DefaultWindow,
		now:    time.Now,
		logger: logger,
		tracer: otel.Tracer("teamsbot.internal.invite"),
	}
}

func (r *Runner) WithWindow(d time.Duration) *Runner {
	if d > 0 {
		r.window = d
	}
	return r
}

func (r *Runner) WithClock(now func() time.Time) *Runner {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *Runner) WithMetrics(m *metrics.InviteMetrics) *Runner {
	r.metrics = m
	return r
}

// Run executes fetch, parse, select, authenticate and invite in order.
// Only fetch and authentication failures are returned; per-address failures
// are recorded in the summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", summary.RunID)

	ctx, span := r.tracer.Start(ctx, "invite.run")
	defer func() {
		span.SetAttributes(
			attribute.Int("invite.selected", summary.Selected),
			attribute.Int("invite.succeeded", summary.Succeeded),
			attribute.Int("invite.failed", len(summary.Failed)),
		)
		span.End()
		r.metrics.ObserveRunDuration(time.Since(started).Seconds())
	}()

	snap, err := r.source.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return summary, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if snap.Token == "" && len(snap.Content) == 0 {
		return summary, fmt.Errorf("%w: queue file is empty or missing", ErrFetch)
	}

	parsed, err := contacts.ParseCSV(bytes.NewReader(snap.Content))
	if err != nil {
		span.RecordError(err)
		return summary, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	summary.Parsed = len(parsed.Records)
	summary.Skipped = len(parsed.Skipped)
	r.metrics.ObserveSkipped(summary.Skipped)
	for _, skip := range parsed.Skipped {
		logger.Warn("skipping queue row", "line", skip.Line, "reason", skip.Reason)
	}

	targets := Select(parsed.Records, r.now(), r.window)
	summary.Selected = len(targets)
	r.metrics.ObserveSelected(summary.Selected)
	if len(targets) == 0 {
		logger.Info("no submissions in window, nothing to do", "parsed", summary.Parsed, "window", r.window.String())
		return summary, nil
	}

	token, err := r.tokens.Token(ctx)
	if err != nil {
		span.RecordError(err)
		return summary, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if token == "" {
		return summary, fmt.Errorf("%w: %w", ErrAuth, directory.ErrEmptyToken)
	}

	for _, target := range targets {
		summary.Attempted++
		member := directory.Member{Email: target.Email, DisplayName: target.Name}
		if err := r.dir.AddMember(ctx, token, r.teamID, member); err != nil {
			summary.Failed = append(summary.Failed, target.Email)
			r.metrics.ObserveInvite("failed")
			logger.Error("failed to add member", "email", target.Email, "error", err)
			continue
		}
		summary.Succeeded++
		r.metrics.ObserveInvite("ok")
		logger.Info("member added", "email", target.Email)
	}

	logger.Info(fmt.Sprintf("added %d/%d", summary.Succeeded, summary.Selected),
		"skipped", summary.Skipped,
		"failed", len(summary.Failed),
	)
	return summary, nil
}
