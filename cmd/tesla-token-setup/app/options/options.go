package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/tesla-exporter/pkg/app"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
	"github.com/autopeer-io/tesla-exporter/pkg/options"
)

// EnvAliases accepts the environment variable names of the exporter deployment.
var EnvAliases = map[string]string{
	"fleet.client-id":     "TESLA_CLIENT_ID",
	"fleet.client-secret": "TESLA_CLIENT_SECRET",
	"fleet.redirect-uri":  "TESLA_REDIRECT_URI",
	"fleet.api-base":      "TESLA_API_BASE",
	"fleet.auth-base":     "TESLA_AUTH_BASE",
	"fleet.token-base":    "TESLA_TOKEN_BASE",
	"fleet.scopes":        "TESLA_SCOPES",
	"token.file-path":     "TOKEN_FILE_PATH",
	"log.level":           "LOG_LEVEL",
}

type SetupOptions struct {
	FleetOptions *options.FleetOptions `json:"fleet" mapstructure:"fleet"`
	TokenOptions *options.TokenOptions `json:"token" mapstructure:"token"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*SetupOptions)(nil)

func NewSetupOptions() *SetupOptions {
	o := &SetupOptions{
		FleetOptions: options.NewFleetOptions(),
		TokenOptions: options.NewTokenOptions(),
		Log:          log.NewOptions(),
	}
	o.Log.Format = "console"
	o.Log.Level = "warn"

	return o
}

func (o *SetupOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.FleetOptions.AddFlags(fss.FlagSet("Fleet API"))
	o.TokenOptions.AddFlags(fss.FlagSet("Token"))
	o.Log.AddFlags(fss.FlagSet("Log"))
	return fss
}

func (o *SetupOptions) Complete() error {
	return nil
}

func (o *SetupOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.FleetOptions.Validate()...)
	errs = append(errs, o.TokenOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}
