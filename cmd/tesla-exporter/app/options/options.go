package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/tesla-exporter/internal/exporter"
	"github.com/autopeer-io/tesla-exporter/pkg/app"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
	"github.com/autopeer-io/tesla-exporter/pkg/options"
)

// EnvAliases keeps the environment variable names of existing deployments working.
var EnvAliases = map[string]string{
	"fleet.client-id":     "TESLA_CLIENT_ID",
	"fleet.client-secret": "TESLA_CLIENT_SECRET",
	"fleet.redirect-uri":  "TESLA_REDIRECT_URI",
	"fleet.api-base":      "TESLA_API_BASE",
	"fleet.auth-base":     "TESLA_AUTH_BASE",
	"fleet.token-base":    "TESLA_TOKEN_BASE",
	"fleet.scopes":        "TESLA_SCOPES",
	"fleet.vehicle-index": "TESLA_VEHICLE_INDEX",
	"poll.wake-on-poll":   "WAKE_ON_POLL",
	"token.file-path":     "TOKEN_FILE_PATH",
	"log.level":           "LOG_LEVEL",
}

// EnvConversions accepts the older variables that carry plain seconds or a bare port.
var EnvConversions = map[string]app.EnvConversion{
	"poll.interval":       {Env: "POLL_INTERVAL_SECONDS", Convert: app.Seconds},
	"poll.sleep-interval": {Env: "SLEEP_POLL_INTERVAL_SECONDS", Convert: app.Seconds},
	"http.addr":           {Env: "EXPORTER_PORT", Convert: app.ListenPort},
}

type ExporterOptions struct {
	FleetOptions *options.FleetOptions `json:"fleet" mapstructure:"fleet"`
	PollOptions  *options.PollOptions  `json:"poll" mapstructure:"poll"`
	TokenOptions *options.TokenOptions `json:"token" mapstructure:"token"`
	HttpOptions  *options.HttpOptions  `json:"http" mapstructure:"http"`
	MqttOptions  *options.MqttOptions  `json:"mqtt" mapstructure:"mqtt"`
	S3Options    *options.S3Options    `json:"s3" mapstructure:"s3"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*ExporterOptions)(nil)

func NewExporterOptions() *ExporterOptions {
	o := &ExporterOptions{
		FleetOptions: options.NewFleetOptions(),
		PollOptions:  options.NewPollOptions(),
		TokenOptions: options.NewTokenOptions(),
		HttpOptions:  options.NewHttpOptions(),
		MqttOptions:  options.NewMqttOptions(),
		S3Options:    options.NewS3Options(),
		Log:          log.NewOptions(),
	}

	return o
}

func (o *ExporterOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.FleetOptions.AddFlags(fss.FlagSet("Fleet API"))
	o.PollOptions.AddFlags(fss.FlagSet("Polling"))
	o.TokenOptions.AddFlags(fss.FlagSet("Token"))
	o.HttpOptions.AddFlags(fss.FlagSet("HTTP"))
	o.MqttOptions.AddFlags(fss.FlagSet("MQTT"))
	o.S3Options.AddFlags(fss.FlagSet("S3"))
	o.Log.AddFlags(fss.FlagSet("Log"))
	return fss
}

func (o *ExporterOptions) Complete() error {
	return nil
}

func (o *ExporterOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.FleetOptions.Validate()...)
	errs = append(errs, o.PollOptions.Validate()...)
	errs = append(errs, o.TokenOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *ExporterOptions) Config() (*exporter.Config, error) {
	return &exporter.Config{
		FleetOptions: o.FleetOptions,
		PollOptions:  o.PollOptions,
		TokenOptions: o.TokenOptions,
		HttpOptions:  o.HttpOptions,
		MqttOptions:  o.MqttOptions,
		S3Options:    o.S3Options,
	}, nil
}
