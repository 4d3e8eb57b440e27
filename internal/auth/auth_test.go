package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"dhis2dupes/internal/config"
)

func TestStaticHeaders(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		auth   Authorizer
		header string
		method string
	}{
		{"basic", Basic("admin", "district"), "Basic YWRtaW46ZGlzdHJpY3Q=", config.AuthBasic},
		{"token", APIToken("d2pat_abc"), "ApiToken d2pat_abc", config.AuthToken},
		{"bearer", Bearer(" tok "), "Bearer tok", config.AuthBearer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.auth.Header(ctx)
			require.NoError(t, err)
			require.Equal(t, tc.header, got)
			require.Equal(t, tc.method, tc.auth.Method())
		})
	}
}

func TestFromConfigAutoPrefersToken(t *testing.T) {
	a, err := FromConfig(config.DHIS2{
		AuthMethod: config.AuthAuto,
		Username:   "admin",
		Password:   "district",
		APIToken:   "d2pat_xyz",
	})
	require.NoError(t, err)
	require.Equal(t, config.AuthToken, a.Method())
}

func TestFromConfigAutoFallsBackToBasic(t *testing.T) {
	a, err := FromConfig(config.DHIS2{Username: "admin", Password: "district"})
	require.NoError(t, err)
	require.Equal(t, config.AuthBasic, a.Method())
}

func TestFromConfigMissingCredentials(t *testing.T) {
	_, err := FromConfig(config.DHIS2{AuthMethod: config.AuthAuto})
	require.ErrorIs(t, err, ErrNoCredentials)

	_, err = FromConfig(config.DHIS2{AuthMethod: config.AuthBasic, Username: "admin"})
	require.ErrorIs(t, err, ErrNoCredentials)

	_, err = FromConfig(config.DHIS2{AuthMethod: "kerberos"})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoCredentials))
}

func TestOAuth2ClientCredentialsFetchesAndReusesToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "abc123",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	a, err := FromConfig(config.DHIS2{
		AuthMethod:   config.AuthOAuth2,
		ClientID:     "dupes",
		ClientSecret: "s3cret",
		TokenURL:     srv.URL,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		header, err := a.Header(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Bearer abc123", header)
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestTokenSourceHonoursCancelledContext(t *testing.T) {
	a := FromTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Header(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOAuth2HeaderStopsAtContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	a, err := FromConfig(config.DHIS2{
		AuthMethod:     config.AuthOAuth2,
		ClientID:       "dupes",
		ClientSecret:   "s3cret",
		TokenURL:       srv.URL,
		TimeoutSeconds: 60,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = a.Header(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestOAuth2TokenFetchUsesClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	a := OAuth2ClientCredentials("dupes", "s3cret", srv.URL, nil, 150*time.Millisecond)
	start := time.Now()
	_, err := a.Header(context.Background())
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}
