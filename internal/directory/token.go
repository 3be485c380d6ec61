package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultAuthorityHost = "https://login.microsoftonline.com"
	// GraphScope is the fixed application scope for Microsoft Graph.
	GraphScope = "https://graph.microsoft.com/.default"
)

// ErrEmptyToken is returned when the identity provider answers without an access token.
var ErrEmptyToken = errors.New("directory: token response had no access token")

// CredentialsConfig identifies the confidential client.
type CredentialsConfig struct {
	ClientID      string
	ClientSecret  string
	TenantID      string
	AuthorityHost string
	Scopes        []string
	HTTPClient    *http.Client
}

// TokenSource exchanges client credentials for a bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ClientCredentials fetches app-only tokens with the OAuth2 client
// credentials grant. No user interaction is involved.
type ClientCredentials struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
}

// NewClientCredentials validates cfg and builds a token source.
func NewClientCredentials(cfg CredentialsConfig) (*ClientCredentials, error) {
	var missing []string
	if strings.TrimSpace(cfg.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		missing = append(missing, "client secret")
	}
	if strings.TrimSpace(cfg.TenantID) == "" {
		missing = append(missing, "tenant id")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("directory: missing %s", strings.Join(missing, ", "))
	}
	authority := strings.TrimRight(strings.TrimSpace(cfg.AuthorityHost), "/")
	if authority == "" {
		authority = defaultAuthorityHost
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{GraphScope}
	}
	return &ClientCredentials{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, strings.TrimSpace(cfg.TenantID)),
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: cfg.HTTPClient,
	}, nil
}

// TokenURL returns the endpoint the grant is posted to.
func (c *ClientCredentials) TokenURL() string {
	return c.cfg.TokenURL
}

// Token performs the exchange and returns the raw access token.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("directory: client credentials exchange: %w", err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return "", ErrEmptyToken
	}
	return tok.AccessToken, nil
}
