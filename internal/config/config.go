package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Remote kinds for the shared queue file.
const (
	RemoteGitHub = "github"
	RemoteS3     = "s3"
	RemoteNone   = "none"
)

// Mail providers.
const (
	MailSMTP     = "smtp"
	MailSendGrid = "sendgrid"
	MailSES      = "ses"
	MailStub     = "stub"
)

// Config holds configuration for both the intake agent and the batch inviter.
type Config struct {
	Env       string `env:"ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	CI        bool   `env:"CI"`

	// ConfigFile is the local fallback file for non-secret values.
	ConfigFile string `env:"INTAKE_CONFIG_FILE" envDefault:"config.yaml"`

	// Telegram
	TelegramBotToken      string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramGroupChatID   int64         `env:"TELEGRAM_GROUP_CHAT_ID"`
	TelegramAPIBaseURL    string        `env:"TELEGRAM_API_BASE_URL"`
	TelegramPollTimeout   time.Duration `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"30s"`
	TelegramWebhookURL    string        `env:"TELEGRAM_WEBHOOK_URL"`
	TelegramWebhookSecret string        `env:"TELEGRAM_WEBHOOK_SECRET"`

	// Intake process
	HTTPAddr       string `env:"INTAKE_HTTP_ADDR" envDefault:":8080"`
	SessionBackend string `env:"INTAKE_SESSION_BACKEND" envDefault:"memory"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisTLS       bool   `env:"REDIS_TLS"`

	// Shared queue file
	QueueFilePath    string `env:"QUEUE_FILE_PATH"`
	QueueRemote      string `env:"QUEUE_REMOTE"`
	GitToken         string `env:"GIT_TOKEN"`
	GitHubRepository string `env:"GITHUB_REPOSITORY"`
	GitHubFilePath   string `env:"GITHUB_FILE_PATH"`
	GitHubBranch     string `env:"GITHUB_BRANCH"`
	GitHubAPIBaseURL string `env:"GITHUB_API_BASE_URL"`
	QueueS3Bucket    string `env:"QUEUE_S3_BUCKET"`
	QueueS3Key       string `env:"QUEUE_S3_KEY"`

	// AWS
	AWSRegion           string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSAccessKeyID      string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpointOverride string `env:"AWS_ENDPOINT_OVERRIDE"`

	// Mail
	MailProvider    string `env:"MAIL_PROVIDER"`
	SMTPHost        string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort        int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername    string `env:"SMTP_USERNAME"`
	SMTPPassword    string `env:"SMTP_PASSWORD"`
	MailFrom        string `env:"MAIL_FROM"`
	MailFromName    string `env:"MAIL_FROM_NAME"`
	SendGridAPIKey  string `env:"SENDGRID_API_KEY"`
	TeamsInviteLink string `env:"TEAMS_INVITE_LINK"`

	// Microsoft Graph
	AzureClientID      string        `env:"AZURE_CLIENT_ID"`
	AzureClientSecret  string        `env:"AZURE_CLIENT_SECRET"`
	AzureTenantID      string        `env:"AZURE_TENANT_ID"`
	TeamsCommunityID   string        `env:"TEAMS_COMMUNITY_ID"`
	GraphBaseURL       string        `env:"GRAPH_BASE_URL"`
	AzureAuthorityHost string        `env:"AZURE_AUTHORITY_HOST"`
	InviteWindow       time.Duration `env:"INVITE_WINDOW" envDefault:"24h"`
}

// Load reads configuration from the environment. Outside hosted
// environments a .env file and the fallback YAML file are consulted too;
// real environment variables always take precedence over both.
func Load() (*Config, error) {
	cfg, err := parseEnv()
	if err != nil {
		return nil, err
	}
	if cfg.Hosted() {
		cfg.applyDefaults()
		return cfg, nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if cfg, err = parseEnv(); err != nil {
		return nil, err
	}
	if !cfg.Hosted() {
		values, err := ReadFile(cfg.ConfigFile)
		switch {
		case err == nil:
			cfg.applyFile(values)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Hosted reports whether the process runs in CI or production, where only
// real environment variables are read.
func (c *Config) Hosted() bool {
	return c.CI || strings.EqualFold(c.Env, "production")
}

func parseEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.QueueFilePath == "" {
		c.QueueFilePath = "pending_teams.csv"
	}
	if c.GitHubFilePath == "" {
		c.GitHubFilePath = "pending_teams.csv"
	}
	if c.GitHubBranch == "" {
		c.GitHubBranch = "main"
	}
	if c.QueueS3Key == "" {
		c.QueueS3Key = "pending_teams.csv"
	}
	if c.MailFromName == "" {
		c.MailFromName = "Teams Community Bot"
	}
	c.QueueRemote = strings.ToLower(strings.TrimSpace(c.QueueRemote))
	c.MailProvider = strings.ToLower(strings.TrimSpace(c.MailProvider))
	c.SessionBackend = strings.ToLower(strings.TrimSpace(c.SessionBackend))
}

// RemoteKind resolves QUEUE_REMOTE. When unset, a GIT_TOKEN selects GitHub.
func (c *Config) RemoteKind() string {
	switch c.QueueRemote {
	case RemoteGitHub, RemoteS3, RemoteNone:
		return c.QueueRemote
	case "":
		if c.GitToken != "" {
			return RemoteGitHub
		}
		return RemoteNone
	default:
		return c.QueueRemote
	}
}

// MailKind resolves MAIL_PROVIDER, falling back to whichever provider has
// credentials and finally to the stub.
func (c *Config) MailKind() string {
	if c.MailProvider != "" {
		return c.MailProvider
	}
	switch {
	case c.SendGridAPIKey != "":
		return MailSendGrid
	case c.SMTPUsername != "" && c.SMTPPassword != "":
		return MailSMTP
	default:
		return MailStub
	}
}

// MissingKeysError lists every required key that was empty.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "config: missing required keys: " + strings.Join(e.Keys, ", ")
}

type checker struct {
	missing []string
}

func (k *checker) require(key string, ok bool) {
	if !ok {
		k.missing = append(k.missing, key)
	}
}

func (k *checker) err() error {
	if len(k.missing) == 0 {
		return nil
	}
	return &MissingKeysError{Keys: k.missing}
}

// ValidateIntake checks everything the intake agent needs before it starts.
func (c *Config) ValidateIntake() error {
	k := &checker{}
	k.require("TELEGRAM_BOT_TOKEN", c.TelegramBotToken != "")
	k.require("TELEGRAM_GROUP_CHAT_ID", c.TelegramGroupChatID != 0)
	if c.TelegramWebhookURL != "" {
		k.require("TELEGRAM_WEBHOOK_SECRET", c.TelegramWebhookSecret != "")
	}
	if c.SessionBackend == "redis" {
		k.require("REDIS_ADDR", c.RedisAddr != "")
	}
	c.checkQueue(k, false)
	c.checkMail(k)
	return k.err()
}

// ValidateQueue checks only the queue file settings.
func (c *Config) ValidateQueue() error {
	k := &checker{}
	c.checkQueue(k, false)
	return k.err()
}

// ValidateInviter checks everything the batch inviter needs. The inviter
// reads the remote copy, so a remote is mandatory.
func (c *Config) ValidateInviter() error {
	k := &checker{}
	c.checkQueue(k, true)
	k.require("AZURE_CLIENT_ID", c.AzureClientID != "")
	k.require("AZURE_CLIENT_SECRET", c.AzureClientSecret != "")
	k.require("AZURE_TENANT_ID", c.AzureTenantID != "")
	k.require("TEAMS_COMMUNITY_ID", c.TeamsCommunityID != "")
	return k.err()
}

func (c *Config) checkQueue(k *checker, remoteRequired bool) {
	switch c.RemoteKind() {
	case RemoteGitHub:
		k.require("GIT_TOKEN", c.GitToken != "")
		k.require("GITHUB_REPOSITORY", c.GitHubRepository != "")
	case RemoteS3:
		k.require("QUEUE_S3_BUCKET", c.QueueS3Bucket != "")
	case RemoteNone:
		k.require("QUEUE_REMOTE", !remoteRequired)
	default:
		k.require("QUEUE_REMOTE", false)
	}
}

func (c *Config) checkMail(k *checker) {
	switch c.MailKind() {
	case MailSMTP:
		k.require("SMTP_USERNAME", c.SMTPUsername != "")
		k.require("SMTP_PASSWORD", c.SMTPPassword != "")
	case MailSendGrid:
		k.require("SENDGRID_API_KEY", c.SendGridAPIKey != "")
		k.require("MAIL_FROM", c.MailFrom != "")
	case MailSES:
		k.require("MAIL_FROM", c.MailFrom != "")
	case MailStub:
	default:
		k.require("MAIL_PROVIDER", false)
	}
}
