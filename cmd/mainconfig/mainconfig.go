// Package mainconfig holds the construction code shared by both binaries.
package mainconfig

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/sudn2014/telegram-bot-teams/internal/config"
	"github.com/sudn2014/telegram-bot-teams/internal/github"
	"github.com/sudn2014/telegram-bot-teams/internal/intake"
	"github.com/sudn2014/telegram-bot-teams/internal/notify"
	"github.com/sudn2014/telegram-bot-teams/internal/queue"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

// BuildLogger returns the process logger described by cfg.
func BuildLogger(cfg *appconfig.Config) *logging.Logger {
	return logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
}

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}
	return awsCfg, nil
}

// BuildRemote returns the configured remote copy of the queue file, or nil
// when remote sync is disabled.
func BuildRemote(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (queue.Remote, error) {
	switch kind := cfg.RemoteKind(); kind {
	case appconfig.RemoteNone:
		return nil, nil
	case appconfig.RemoteGitHub:
		client, err := github.New(github.Config{
			BaseURL:    cfg.GitHubAPIBaseURL,
			Token:      cfg.GitToken,
			Repository: cfg.GitHubRepository,
			Path:       cfg.GitHubFilePath,
			Branch:     cfg.GitHubBranch,
			MaxRetries: 2,
			Logger:     logger.Logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case appconfig.RemoteS3:
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("mainconfig: load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		return queue.NewS3Mirror(client, cfg.QueueS3Bucket, cfg.QueueS3Key, logger), nil
	default:
		return nil, fmt.Errorf("mainconfig: unknown queue remote %q", kind)
	}
}

// BuildEmailSender picks the mail provider. The stub sender only logs.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	switch kind := cfg.MailKind(); kind {
	case appconfig.MailSMTP:
		sender := notify.NewSMTPSender(notify.SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			FromEmail: cfg.MailFrom,
			FromName:  cfg.MailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("mainconfig: smtp host is required")
		}
		return sender, nil
	case appconfig.MailSendGrid:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.MailFrom,
			FromName:  cfg.MailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("mainconfig: sendgrid api key is required")
		}
		return sender, nil
	case appconfig.MailSES:
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("mainconfig: load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.MailFrom,
			FromName:  cfg.MailFromName,
		}, logger), nil
	case appconfig.MailStub:
		return notify.NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("mainconfig: unknown mail provider %q", kind)
	}
}

// BuildRedisClient returns a configured Redis client and verifies it with a
// ping.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config) (*redis.Client, error) {
	options := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("mainconfig: redis ping %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// BuildSessionStore returns the configured session store. The returned
// close func is never nil.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (intake.SessionStore, func(), error) {
	switch cfg.SessionBackend {
	case "", "memory":
		return intake.NewMemorySessionStore(), func() {}, nil
	case "redis":
		client, err := BuildRedisClient(ctx, cfg)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("intake sessions stored in redis", "addr", cfg.RedisAddr)
		return intake.NewRedisSessionStore(client, nil), func() { client.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("mainconfig: unknown session backend %q", cfg.SessionBackend)
	}
}
