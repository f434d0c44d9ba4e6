package options

import (
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

// HttpOptions configures the metrics exposition server.
type HttpOptions struct {
	// Addr is the listen address of /metrics, /healthz and /readyz.
	Addr string `json:"addr" mapstructure:"addr"`

	// MetricsPath is the path serving the scrape endpoint.
	MetricsPath string `json:"metrics-path" mapstructure:"metrics-path" validate:"required,startswith=/"`

	// ReadHeaderTimeout bounds how long a scraper may take to send request headers.
	ReadHeaderTimeout time.Duration `json:"read-header-timeout" mapstructure:"read-header-timeout" validate:"gt=0"`

	// ShutdownTimeout bounds graceful shutdown of in-flight scrapes.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout" validate:"gt=0"`
}

// NewHttpOptions creates a HttpOptions object with default parameters.
func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Addr:              "0.0.0.0:9090",
		MetricsPath:       "/metrics",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *HttpOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := ValidateStruct("http", o)

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}

	return errors
}

// AddFlags adds flags related to the exposition server to the specified FlagSet.
func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "http.addr", o.Addr, "Listen address of the metrics server.")
	fs.StringVar(&o.MetricsPath, "http.metrics-path", o.MetricsPath, "Path under which metrics are exposed.")
	fs.DurationVar(&o.ReadHeaderTimeout, "http.read-header-timeout", o.ReadHeaderTimeout, "Timeout for reading scrape request headers.")
	fs.DurationVar(&o.ShutdownTimeout, "http.shutdown-timeout", o.ShutdownTimeout, "Grace period for in-flight scrapes on shutdown.")
}
