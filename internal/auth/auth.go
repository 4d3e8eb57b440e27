// Package auth builds the Authorization header sent to DHIS2.
//
// The header value is opaque to the rest of the program: the DHIS2 client asks
// an Authorizer for it before every request and never inspects credentials.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"dhis2dupes/internal/config"
)

// ErrNoCredentials is returned when no usable credential is configured.
var ErrNoCredentials = errors.New("no DHIS2 credentials configured")

// Authorizer produces the Authorization header value for a request.
type Authorizer interface {
	Header(ctx context.Context) (string, error)
	// Method names the scheme for logs. Never includes secrets.
	Method() string
}

type staticAuthorizer struct {
	method string
	header string
}

func (a staticAuthorizer) Header(context.Context) (string, error) { return a.header, nil }

func (a staticAuthorizer) Method() string { return a.method }

// Basic returns an Authorizer using HTTP basic credentials.
func Basic(username, password string) Authorizer {
	raw := username + ":" + password
	return staticAuthorizer{
		method: config.AuthBasic,
		header: "Basic " + base64.StdEncoding.EncodeToString([]byte(raw)),
	}
}

// APIToken returns an Authorizer for a DHIS2 personal access token.
func APIToken(token string) Authorizer {
	return staticAuthorizer{method: config.AuthToken, header: "ApiToken " + strings.TrimSpace(token)}
}

// Bearer returns an Authorizer for a pre-issued OAuth2 access token.
func Bearer(token string) Authorizer {
	return staticAuthorizer{method: config.AuthBearer, header: "Bearer " + strings.TrimSpace(token)}
}

type tokenSourceAuthorizer struct {
	source oauth2.TokenSource
}

// defaultTokenTimeout bounds a token fetch when no timeout is configured.
const defaultTokenTimeout = 30 * time.Second

// OAuth2ClientCredentials returns an Authorizer that obtains and refreshes
// access tokens with the client credentials grant. Each token fetch is bounded
// by timeout; zero selects a 30 second default.
func OAuth2ClientCredentials(clientID, clientSecret, tokenURL string, scopes []string, timeout time.Duration) Authorizer {
	if timeout <= 0 {
		timeout = defaultTokenTimeout
	}
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	return tokenSourceAuthorizer{source: oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx))}
}

// FromTokenSource wraps an existing oauth2.TokenSource.
func FromTokenSource(source oauth2.TokenSource) Authorizer {
	return tokenSourceAuthorizer{source: source}
}

func (a tokenSourceAuthorizer) Header(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type result struct {
		token *oauth2.Token
		err   error
	}
	// TokenSource.Token takes no context, so the caller stops waiting on
	// cancellation and the fetch itself ends at the HTTP client timeout.
	done := make(chan result, 1)
	go func() {
		token, err := a.source.Token()
		done <- result{token: token, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("oauth2 token: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("oauth2 token: %w", res.err)
		}
		return res.token.Type() + " " + res.token.AccessToken, nil
	}
}

func (a tokenSourceAuthorizer) Method() string { return config.AuthOAuth2 }

// FromConfig selects an Authorizer by dhis2.auth_method. With "auto" a
// personal access token wins over username/password.
func FromConfig(cfg config.DHIS2) (Authorizer, error) {
	method := strings.ToLower(strings.TrimSpace(cfg.AuthMethod))
	if method == "" || method == config.AuthAuto {
		method = detect(cfg)
		if method == "" {
			return nil, ErrNoCredentials
		}
	}

	switch method {
	case config.AuthBasic:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("basic auth: %w", ErrNoCredentials)
		}
		return Basic(cfg.Username, cfg.Password), nil
	case config.AuthToken:
		if strings.TrimSpace(cfg.APIToken) == "" {
			return nil, fmt.Errorf("token auth: %w", ErrNoCredentials)
		}
		return APIToken(cfg.APIToken), nil
	case config.AuthBearer:
		if strings.TrimSpace(cfg.BearerToken) == "" {
			return nil, fmt.Errorf("bearer auth: %w", ErrNoCredentials)
		}
		return Bearer(cfg.BearerToken), nil
	case config.AuthOAuth2:
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("oauth2 auth: %w", ErrNoCredentials)
		}
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/uaa/oauth/token"
		}
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		return OAuth2ClientCredentials(cfg.ClientID, cfg.ClientSecret, tokenURL, cfg.Scopes, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported auth method %q", cfg.AuthMethod)
	}
}

func detect(cfg config.DHIS2) string {
	switch {
	case strings.TrimSpace(cfg.APIToken) != "":
		return config.AuthToken
	case strings.TrimSpace(cfg.BearerToken) != "":
		return config.AuthBearer
	case cfg.Username != "" && cfg.Password != "":
		return config.AuthBasic
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		return config.AuthOAuth2
	default:
		return ""
	}
}
