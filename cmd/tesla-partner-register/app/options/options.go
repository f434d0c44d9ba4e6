package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/tesla-exporter/pkg/app"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
	"github.com/autopeer-io/tesla-exporter/pkg/options"
)

// PartnerScopes are requested for the partner token.
const PartnerScopes = "openid vehicle_device_data vehicle_cmds"

var EnvAliases = map[string]string{
	"fleet.client-id":     "TESLA_CLIENT_ID",
	"fleet.client-secret": "TESLA_CLIENT_SECRET",
	"fleet.redirect-uri":  "TESLA_REDIRECT_URI",
	"fleet.api-base":      "TESLA_API_BASE",
	"fleet.token-base":    "TESLA_TOKEN_BASE",
	"log.level":           "LOG_LEVEL",
}

type RegisterOptions struct {
	FleetOptions *options.FleetOptions `json:"fleet" mapstructure:"fleet"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*RegisterOptions)(nil)

func NewRegisterOptions() *RegisterOptions {
	o := &RegisterOptions{
		FleetOptions: options.NewFleetOptions(),
		Log:          log.NewOptions(),
	}
	o.FleetOptions.Scopes = PartnerScopes
	o.Log.Format = "console"
	o.Log.Level = "warn"

	return o
}

func (o *RegisterOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.FleetOptions.AddFlags(fss.FlagSet("Fleet API"))
	o.Log.AddFlags(fss.FlagSet("Log"))
	return fss
}

func (o *RegisterOptions) Complete() error {
	return nil
}

func (o *RegisterOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.FleetOptions.Validate()...)
	if _, err := o.FleetOptions.PartnerDomain(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}
