package options

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*FleetOptions)(nil)

// FleetOptions holds the partner application identity and the Fleet API endpoints.
type FleetOptions struct {
	ClientID     string `json:"client-id" mapstructure:"client-id" validate:"required"`
	ClientSecret string `json:"client-secret" mapstructure:"client-secret" validate:"required"`
	RedirectURI  string `json:"redirect-uri" mapstructure:"redirect-uri" validate:"required,url"`

	// APIBase is the regional Fleet API endpoint; it is also the OAuth2 audience.
	APIBase   string `json:"api-base" mapstructure:"api-base" validate:"required,url"`
	AuthBase  string `json:"auth-base" mapstructure:"auth-base" validate:"required,url"`
	TokenBase string `json:"token-base" mapstructure:"token-base" validate:"required,url"`
	Scopes    string `json:"scopes" mapstructure:"scopes" validate:"required"`

	// VehicleIndex selects the vehicle among the vehicles of the account.
	VehicleIndex int `json:"vehicle-index" mapstructure:"vehicle-index" validate:"gte=0"`

	// RequestTimeout bounds every outbound HTTP call.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout" validate:"gt=0"`
}

// NewFleetOptions returns the defaults for the North America / Asia-Pacific region.
func NewFleetOptions() *FleetOptions {
	return &FleetOptions{
		RedirectURI:    "https://localhost/callback",
		APIBase:        "https://fleet-api.prd.na.vn.cloud.tesla.com",
		AuthBase:       "https://auth.tesla.com",
		TokenBase:      "https://fleet-auth.prd.vn.cloud.tesla.com",
		Scopes:         "openid offline_access vehicle_device_data vehicle_location",
		RequestTimeout: 30 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *FleetOptions) Validate() []error {
	if o == nil {
		return nil
	}
	return ValidateStruct("fleet", o)
}

// AddFlags adds flags for FleetOptions to the specified FlagSet.
func (o *FleetOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ClientID, "fleet.client-id", o.ClientID, "OAuth2 client ID of the registered partner application.")
	fs.StringVar(&o.ClientSecret, "fleet.client-secret", o.ClientSecret, "OAuth2 client secret of the registered partner application.")
	fs.StringVar(&o.RedirectURI, "fleet.redirect-uri", o.RedirectURI, "Redirect URI registered for the application; its host is the partner domain.")
	fs.StringVar(&o.APIBase, "fleet.api-base", o.APIBase, "Regional Fleet API base URL.")
	fs.StringVar(&o.AuthBase, "fleet.auth-base", o.AuthBase, "Base URL of the interactive authorization endpoint.")
	fs.StringVar(&o.TokenBase, "fleet.token-base", o.TokenBase, "Base URL of the OAuth2 token endpoint.")
	fs.StringVar(&o.Scopes, "fleet.scopes", o.Scopes, "Space separated OAuth2 scopes requested during authorization.")
	fs.IntVar(&o.VehicleIndex, "fleet.vehicle-index", o.VehicleIndex, "Index of the vehicle to export in the account's vehicle list.")
	fs.DurationVar(&o.RequestTimeout, "fleet.request-timeout", o.RequestTimeout, "Timeout applied to every Fleet API and token endpoint request.")
}

// TokenURL is the OAuth2 token endpoint.
func (o *FleetOptions) TokenURL() string {
	return strings.TrimRight(o.TokenBase, "/") + "/oauth2/v3/token"
}

// AuthorizeURL is the OAuth2 authorization endpoint.
func (o *FleetOptions) AuthorizeURL() string {
	return strings.TrimRight(o.AuthBase, "/") + "/oauth2/v3/authorize"
}

// ScopeList splits Scopes on whitespace.
func (o *FleetOptions) ScopeList() []string {
	return strings.Fields(o.Scopes)
}

// PartnerDomain is the host part of the redirect URI.
func (o *FleetOptions) PartnerDomain() (string, error) {
	u, err := url.Parse(o.RedirectURI)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("redirect uri %q has no host", o.RedirectURI)
	}
	return u.Hostname(), nil
}
