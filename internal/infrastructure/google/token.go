package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/infrastructure/upstream"
)

// Credentials is the OAuth client plus a pre-issued refresh token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (c Credentials) missing() []string {
	var names []string
	if c.ClientID == "" {
		names = append(names, "GOOGLE_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		names = append(names, "GOOGLE_CLIENT_SECRET")
	}
	if c.RefreshToken == "" {
		names = append(names, "GOOGLE_REFRESH_TOKEN")
	}
	return names
}

// tokenSource refreshes access tokens through oauth2 and keeps the last one until it expires.
type tokenSource struct {
	creds  Credentials
	config oauth2.Config
	client *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

func newTokenSource(creds Credentials, tokenURL string, client *http.Client) *tokenSource {
	return &tokenSource{
		creds: creds,
		config: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
		token:  &oauth2.Token{RefreshToken: creds.RefreshToken},
	}
}

func (s *tokenSource) AccessToken(ctx context.Context) (string, error) {
	if missing := s.creds.missing(); len(missing) > 0 {
		return "", apperr.Configuration("credential_missing", "google calendar credentials missing: %s", strings.Join(missing, ", "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A fresh source per call so the refresh honours the caller's context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	tok, err := s.config.TokenSource(ctx, s.token).Token()
	if err != nil {
		return "", exchangeError(err)
	}
	if tok.AccessToken == "" {
		return "", apperr.Upstream("token_exchange_failed", fmt.Errorf("google oauth returned an empty access token"))
	}
	s.token = tok
	return tok.AccessToken, nil
}

func exchangeError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		resp := *rErr.Response
		resp.Body = io.NopCloser(bytes.NewReader(rErr.Body))
		return upstream.StatusError("google oauth", "token_exchange_failed", &resp)
	}
	return apperr.Upstream("token_exchange_failed", fmt.Errorf("refresh access token: %w", err))
}
