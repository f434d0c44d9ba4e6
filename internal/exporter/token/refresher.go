package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

// defaultLifetime applies when the issuer omits expires_in.
const defaultLifetime = time.Hour

// Refresher exchanges a refresh token for a new credential. It makes exactly one
// request per call and classifies failures as *core.Error.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*model.Credential, error)
}

// OAuth2Refresher talks to an OAuth2 token endpoint with the refresh_token grant.
type OAuth2Refresher struct {
	config *oauth2.Config
	client *http.Client
	clock  clock.PassiveClock
}

var _ Refresher = (*OAuth2Refresher)(nil)

// NewOAuth2Refresher creates a refresher. Client credentials are sent in the
// request body, which is what the Tesla issuer expects.
func NewOAuth2Refresher(clientID, clientSecret, tokenURL string, client *http.Client, clk clock.PassiveClock) *OAuth2Refresher {
	if client == nil {
		client = http.DefaultClient
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &OAuth2Refresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
		clock:  clk,
	}
}

func (r *OAuth2Refresher) Refresh(ctx context.Context, refreshToken string) (*model.Credential, error) {
	if refreshToken == "" {
		return nil, core.NewError(core.KindAuthRevoked, "token.refresh", errors.New("no refresh token stored"))
	}

	// Lifetimes count from before the request so that latency never extends them.
	captured := r.clock.Now()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}
	if tok.AccessToken == "" {
		return nil, core.NewError(core.KindMalformedPayload, "token.refresh", errors.New("response has no access_token"))
	}

	cred := &model.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    captured.Add(lifetime(tok)),
		CreatedAt:    captured,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scope = scope
	}
	return cred, nil
}

// lifetime reads expires_in from the raw response.
func lifetime(tok *oauth2.Token) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	return defaultLifetime
}

// classifyRefreshError maps token endpoint failures onto the error taxonomy. Only an
// OAuth error answer to the grant itself (invalid_grant, or a 400/401 carrying an
// error code) means the issuer will not accept this refresh token again.
func classifyRefreshError(err error) error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return core.Classify("token.refresh", err)
	}

	code := 0
	if rerr.Response != nil {
		code = rerr.Response.StatusCode
	}

	switch {
	case rerr.ErrorCode == "invalid_grant":
		return core.NewError(core.KindAuthRevoked, "token.refresh", err)
	case code == http.StatusRequestTimeout:
		return core.NewError(core.KindTimeout, "token.refresh", err)
	case code == http.StatusTooManyRequests:
		e := core.NewError(core.KindRateLimited, "token.refresh", err)
		e.RetryAfter = core.ParseRetryAfter(rerr.Response.Header.Get("Retry-After"))
		return e
	case code >= 500:
		return core.NewError(core.KindServerError, "token.refresh", err)
	case (code == http.StatusBadRequest || code == http.StatusUnauthorized) && rerr.ErrorCode != "":
		return core.NewError(core.KindAuthRevoked, "token.refresh", err)
	case code >= 400:
		// Rejected without saying why; try again on the next demand.
		return core.NewError(core.KindAuthRejected, "token.refresh", err)
	default:
		return core.NewError(core.KindMalformedPayload, "token.refresh", fmt.Errorf("unexpected token response: %w", err))
	}
}
