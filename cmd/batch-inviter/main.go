package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sudn2014/telegram-bot-teams/cmd/mainconfig"
	appconfig "github.com/sudn2014/telegram-bot-teams/internal/config"
	"github.com/sudn2014/telegram-bot-teams/internal/directory"
	"github.com/sudn2014/telegram-bot-teams/internal/invite"
	"github.com/sudn2014/telegram-bot-teams/internal/observability/metrics"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		logging.Default().Error("batch inviter failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateInviter(); err != nil {
		return err
	}
	logger := mainconfig.BuildLogger(cfg).Component("inviter")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote, err := mainconfig.BuildRemote(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if remote == nil {
		return errors.New("batch inviter: a queue remote is required")
	}
	tokens, err := directory.NewClientCredentials(directory.CredentialsConfig{
		ClientID:      cfg.AzureClientID,
		ClientSecret:  cfg.AzureClientSecret,
		TenantID:      cfg.AzureTenantID,
		AuthorityHost: cfg.AzureAuthorityHost,
	})
	if err != nil {
		return err
	}
	graph := directory.New(directory.Config{BaseURL: cfg.GraphBaseURL, Logger: logger.Logger})

	reg := prometheus.NewRegistry()
	runner := invite.NewRunner(remote, tokens, graph, cfg.TeamsCommunityID, logger).
		WithWindow(cfg.InviteWindow).
		WithMetrics(metrics.NewInviteMetrics(reg))

	summary, runErr := runner.Run(ctx)
	logTotals(logger, reg)
	if runErr != nil {
		return runErr
	}
	logger.Info("batch inviter finished",
		"run_id", summary.RunID,
		"selected", summary.Selected,
		"succeeded", summary.Succeeded,
		"failed", len(summary.Failed),
	)
	return nil
}

func logTotals(logger *logging.Logger, g prometheus.Gatherer) {
	totals, err := metrics.CounterTotals(g, "teamsbot_inviter_")
	if err != nil {
		logger.Warn("gather inviter metrics failed", "error", err)
		return
	}
	args := make([]any, 0, len(totals)*2)
	for key, value := range totals {
		args = append(args, key, value)
	}
	logger.Info(fmt.Sprintf("inviter counters (%d series)", len(totals)), args...)
}
