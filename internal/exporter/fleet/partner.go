package fleet

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

// PublicKeyPath is where the partner domain must serve its public key.
const PublicKeyPath = "/.well-known/appspecific/com.tesla.3p.public-key.pem"

// RegisterPartner registers domain as the partner account of the application in the
// region of the client. It needs a partner token, not a user token.
func (c *Client) RegisterPartner(ctx context.Context, domain string) (json.RawMessage, error) {
	const op = "fleet.partner_accounts"

	payload, err := json.Marshal(map[string]string{"domain": domain})
	if err != nil {
		return nil, core.NewError(core.KindUnexpected, op, err)
	}
	return c.do(ctx, op, http.MethodPost, "/api/1/partner_accounts", nil, payload)
}

// TokenSourceCredentials adapts an oauth2.TokenSource, such as a client credentials
// grant, to the credential provider of a Client.
type TokenSourceCredentials struct {
	Source oauth2.TokenSource
}

var _ core.CredentialProvider = (*TokenSourceCredentials)(nil)

func (t *TokenSourceCredentials) Credential(_ context.Context) (*model.Credential, error) {
	tok, err := t.Source.Token()
	if err != nil {
		return nil, core.Classify("fleet.partner_token", err)
	}
	return &model.Credential{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		ExpiresAt:   tok.Expiry,
		CreatedAt:   time.Now(),
	}, nil
}

// Refresh returns the current token again; a token source renews on its own.
func (t *TokenSourceCredentials) Refresh(ctx context.Context, _ string) (*model.Credential, error) {
	return t.Credential(ctx)
}
