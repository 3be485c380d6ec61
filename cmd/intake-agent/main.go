package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sudn2014/telegram-bot-teams/cmd/mainconfig"
	"github.com/sudn2014/telegram-bot-teams/internal/api/router"
	appconfig "github.com/sudn2014/telegram-bot-teams/internal/config"
	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
	httpmiddleware "github.com/sudn2014/telegram-bot-teams/internal/http/middleware"
	"github.com/sudn2014/telegram-bot-teams/internal/intake"
	"github.com/sudn2014/telegram-bot-teams/internal/notify"
	"github.com/sudn2014/telegram-bot-teams/internal/observability/metrics"
	"github.com/sudn2014/telegram-bot-teams/internal/queue"
	"github.com/sudn2014/telegram-bot-teams/internal/telegram"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

const remediationHint = "Check TELEGRAM_BOT_TOKEN and the other settings in your environment or .env, run with -setup to fill in the config file, then start the agent again."

func main() {
	seed := flag.Bool("seed", false, "append a dummy Test User record to the queue and exit")
	setup := flag.Bool("setup", false, "prompt for missing non-secret settings and save them to the config file")
	flag.Parse()

	if err := run(*seed, *setup); err != nil {
		logging.Default().Error("intake agent stopped", "error", err)
		fmt.Fprintln(os.Stderr, remediationHint)
		os.Exit(1)
	}
}

func run(seed, setup bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	if setup {
		if cfg, err = runSetup(cfg); err != nil {
			return err
		}
	}

	logger := mainconfig.BuildLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	intakeMetrics := metrics.NewIntakeMetrics(reg)

	if seed || cfg.CI {
		if err := cfg.ValidateQueue(); err != nil {
			return err
		}
		log, err := buildQueueLog(ctx, cfg, logger, intakeMetrics)
		if err != nil {
			return err
		}
		return seedQueue(ctx, log, logger)
	}

	if err := cfg.ValidateIntake(); err != nil {
		return err
	}
	logger.Info("starting intake agent", "env", cfg.Env, "group_chat_id", cfg.TelegramGroupChatID)

	log, err := buildQueueLog(ctx, cfg, logger, intakeMetrics)
	if err != nil {
		return err
	}
	sender, err := mainconfig.BuildEmailSender(ctx, cfg, logger)
	if err != nil {
		return err
	}
	sessions, closeSessions, err := mainconfig.BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	tg, err := telegram.New(telegram.Config{
		BaseURL:    cfg.TelegramAPIBaseURL,
		Token:      cfg.TelegramBotToken,
		Timeout:    cfg.TelegramPollTimeout + 15*time.Second,
		MaxRetries: 2,
		Logger:     logger.Logger,
	})
	if err != nil {
		return err
	}
	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	logger.Info("telegram bot authenticated", "bot_id", me.ID, "username", me.Username)

	agent := intake.NewAgent(sessions, telegram.NewMessenger(tg), log, cfg.TelegramGroupChatID, logger.Component("intake")).
		WithNotifier(notify.NewService(sender, cfg.TeamsInviteLink, logger)).
		WithBotID(me.ID).
		WithMetrics(intakeMetrics)

	events := make(chan intake.Event, 64)
	routerCfg := &router.Config{
		Logger:         logger,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if cfg.TelegramWebhookURL != "" {
		if err := registerWebhook(ctx, tg, cfg.TelegramWebhookURL, cfg.TelegramWebhookSecret, logger); err != nil {
			return err
		}
		limiter := httpmiddleware.NewRateLimiter(20, 40)
		go limiter.RunEviction(ctx, 5*time.Minute, 10*time.Minute)
		routerCfg.TelegramWebhook = telegram.NewWebhookHandler(cfg.TelegramWebhookSecret, events, logger)
		routerCfg.WebhookLimiter = limiter
	} else {
		poller := telegram.NewPoller(tg, logger.Component("poller")).WithTimeout(cfg.TelegramPollTimeout)
		go poller.Run(ctx, events)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			stop()
		}
	}()

	agent.Run(ctx, events)
	logger.Info("shutting down intake agent")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

type webhookRegistrar interface {
	SetWebhook(ctx context.Context, url, secret string) error
	GetWebhookInfo(ctx context.Context) (telegram.WebhookInfo, error)
}

// registerWebhook points Telegram at url and reads the registration back.
func registerWebhook(ctx context.Context, tg webhookRegistrar, url, secret string, logger *logging.Logger) error {
	if err := tg.SetWebhook(ctx, url, secret); err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	info, err := tg.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("telegram getWebhookInfo: %w", err)
	}
	if info.URL != url {
		return fmt.Errorf("telegram webhook registered as %q, expected %q", info.URL, url)
	}
	if info.LastErrorMessage != "" {
		logger.Warn("telegram reports earlier webhook delivery errors", "last_error", info.LastErrorMessage)
	}
	logger.Info("telegram webhook registered", "url", info.URL, "pending_updates", info.PendingUpdateCount)
	return nil
}

func buildQueueLog(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, m *metrics.IntakeMetrics) (*queue.SyncedLog, error) {
	remote, err := mainconfig.BuildRemote(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	local := queue.NewLocalFile(cfg.QueueFilePath)
	return queue.NewSyncedLog(local, remote, logger.Component("queue")).WithMetrics(m), nil
}

func seedQueue(ctx context.Context, log queue.Log, logger *logging.Logger) error {
	rec, err := contacts.NewRecord("Test User", "test@example.com", "1234567890", time.Now())
	if err != nil {
		return err
	}
	if err := log.Append(ctx, rec); err != nil {
		return fmt.Errorf("seed queue: %w", err)
	}
	logger.Info("seed record appended", "email", rec.Email)
	return nil
}

func runSetup(cfg *appconfig.Config) (*appconfig.Config, error) {
	values, err := appconfig.PromptFileValues(os.Stdin, os.Stdout, cfg.FileValues())
	if err != nil {
		return nil, err
	}
	if err := appconfig.WriteFile(cfg.ConfigFile, values); err != nil {
		return nil, err
	}
	fmt.Printf("Saved %s\n", cfg.ConfigFile)
	return appconfig.Load()
}
