// Package github reads and writes a single repository file through the
// GitHub contents API. The blob SHA is the optimistic-concurrency token.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sudn2014/telegram-bot-teams/internal/queue"
)

const (
	defaultBaseURL   = "https://api.github.com"
	defaultUserAgent = "telegram-bot-teams/1.0"
	apiVersion       = "2022-11-28"
	acceptJSON       = "application/vnd.github+json"
	acceptRaw        = "application/vnd.github.raw+json"
)

// Config controls how the contents client behaves.
type Config struct {
	BaseURL    string
	Token      string
	Repository string // "owner/repo"
	Path       string
	Branch     string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client wraps the contents endpoints for one file.
type Client struct {
	token      string
	baseURL    string
	repository string
	path       string
	branch     string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("github: token is required")
	}
	repo := strings.Trim(strings.TrimSpace(cfg.Repository), "/")
	if strings.Count(repo, "/") != 1 {
		return nil, fmt.Errorf("github: repository must be owner/name, got %q", cfg.Repository)
	}
	path := strings.Trim(strings.TrimSpace(cfg.Path), "/")
	if path == "" {
		return nil, errors.New("github: file path is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		token:      cfg.Token,
		baseURL:    baseURL,
		repository: repo,
		path:       path,
		branch:     strings.TrimSpace(cfg.Branch),
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// Fetch returns the file's decoded content and blob SHA.
func (c *Client) Fetch(ctx context.Context) (queue.Snapshot, error) {
	var q url.Values
	if c.branch != "" {
		q = url.Values{"ref": []string{c.branch}}
	}
	data, err := c.invoke(ctx, http.MethodGet, c.contentsPath(), q, nil, acceptJSON)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return queue.Snapshot{}, queue.ErrNotFound
		}
		return queue.Snapshot{}, err
	}

	var parsed contentResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return queue.Snapshot{}, fmt.Errorf("github: decode contents: %w", err)
	}
	if parsed.Type != "" && parsed.Type != "file" {
		return queue.Snapshot{}, fmt.Errorf("github: %s is a %s, not a file", c.path, parsed.Type)
	}
	content, err := decodeContent(parsed.Encoding, parsed.Content)
	if err != nil {
		return queue.Snapshot{}, err
	}
	// Files over 1 MB come back with encoding "none" and no inline content.
	if parsed.Encoding == "none" || len(content) < parsed.Size {
		if parsed.SHA == "" {
			return queue.Snapshot{}, fmt.Errorf("github: %s has no inline content and no sha", c.path)
		}
		if content, err = c.fetchBlob(ctx, parsed.SHA); err != nil {
			return queue.Snapshot{}, err
		}
		if parsed.Size > 0 && len(content) != parsed.Size {
			return queue.Snapshot{}, fmt.Errorf("github: blob %s is %d bytes, expected %d", parsed.SHA, len(content), parsed.Size)
		}
	}
	return queue.Snapshot{Content: content, Token: parsed.SHA}, nil
}

// fetchBlob reads the raw bytes of one blob, so the content matches sha exactly.
func (c *Client) fetchBlob(ctx context.Context, sha string) ([]byte, error) {
	data, err := c.invoke(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/git/blobs/%s", c.repository, url.PathEscape(sha)), nil, nil, acceptRaw)
	if err != nil {
		return nil, fmt.Errorf("github: fetch blob %s: %w", sha, err)
	}
	c.logger.Debug("github blob fetched", "path", c.path, "sha", sha, "bytes", len(data))
	return data, nil
}

// Store replaces the file. A stale or missing sha is reported as queue.ErrConflict.
func (c *Client) Store(ctx context.Context, content []byte, token, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "Update " + c.path
	}
	body, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     token,
		Branch:  c.branch,
	})
	if err != nil {
		return fmt.Errorf("github: marshal put body: %w", err)
	}
	_, err = c.invoke(ctx, http.MethodPut, c.contentsPath(), nil, body, acceptJSON)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusConflict || apiErr.StatusCode == http.StatusUnprocessableEntity) {
			return queue.ErrConflict
		}
		return err
	}
	c.logger.Info("github contents updated", "repository", c.repository, "path", c.path, "bytes", len(content))
	return nil
}

func (c *Client) contentsPath() string {
	return fmt.Sprintf("/repos/%s/contents/%s", c.repository, c.path)
}

func decodeContent(encoding, content string) ([]byte, error) {
	switch encoding {
	case "base64":
		// GitHub wraps base64 payloads at 60 columns.
		cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(content)
		data, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("github: decode base64 content: %w", err)
		}
		return data, nil
	case "", "none":
		return []byte(content), nil
	default:
		return nil, fmt.Errorf("github: unsupported content encoding %q", encoding)
	}
}

func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, body []byte, accept string) ([]byte, error) {
	fullURL := c.buildURL(path, query)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("github: build request: %w", err)
		}
		req.Header.Set("Authorization", "token "+c.token)
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", apiVersion)
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("github: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("github: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("github: request failed without response")
}

func (c *Client) buildURL(path string, query url.Values) string {
	full := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full = full + "?" + query.Encode()
	}
	return full
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	c.logger.Warn("github retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// APIError is a non-2xx response from the contents API.
type APIError struct {
	StatusCode       int    `json:"-"`
	Message          string `json:"message,omitempty"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github: %s (status=%d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("github: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed APIError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	parsed.StatusCode = status
	return &parsed
}

var _ queue.Remote = (*Client)(nil)
