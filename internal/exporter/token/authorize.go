package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

// Authorizer performs the interactive authorization code grant that creates the
// first credential.
type Authorizer struct {
	config   *oauth2.Config
	audience string
	client   *http.Client
	clock    clock.PassiveClock
}

// AuthorizerConfig describes the registered application.
type AuthorizerConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURI  string
	Scopes       []string
	// Audience is the regional API base the token is issued for.
	Audience string
}

// NewAuthorizer creates an Authorizer. A nil client uses http.DefaultClient.
func NewAuthorizer(cfg AuthorizerConfig, client *http.Client) *Authorizer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Authorizer{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		audience: cfg.Audience,
		client:   client,
		clock:    clock.RealClock{},
	}
}

// AuthCodeURL returns the URL the account owner opens to grant access.
func (a *Authorizer) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a credential.
func (a *Authorizer) Exchange(ctx context.Context, code string) (*model.Credential, error) {
	const op = "token.exchange"

	captured := a.clock.Now()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	tok, err := a.config.Exchange(ctx, code, oauth2.SetAuthURLParam("audience", a.audience))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, core.NewError(core.KindAuthRejected, op, err)
		}
		return nil, core.Classify(op, err)
	}
	if tok.RefreshToken == "" {
		return nil, core.NewError(core.KindMalformedPayload, op,
			errors.New("response has no refresh_token, is offline_access among the scopes?"))
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

// ParseRedirect extracts the authorization code from the URL the browser was sent
// to. The returned flag reports whether its state matches the one that was issued.
func ParseRedirect(raw, state string) (code string, stateOK bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid redirect url: %w", err)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", false, fmt.Errorf("authorization denied: %s %s", e, q.Get("error_description"))
	}
	code = q.Get("code")
	if code == "" {
		return "", false, errors.New("no code parameter found in the redirect url")
	}
	return code, q.Get("state") == state, nil
}
