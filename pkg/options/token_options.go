package options

import (
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*TokenOptions)(nil)

// TokenOptions locates the credential file and tunes its refresh policy.
type TokenOptions struct {
	// FilePath is the JSON credential record written by tesla-token-setup.
	FilePath string `json:"file-path" mapstructure:"file-path" validate:"required"`

	// RefreshMargin refreshes the access token when less than this much lifetime is left.
	RefreshMargin time.Duration `json:"refresh-margin" mapstructure:"refresh-margin" validate:"gt=0"`

	// Watch reloads the credential when the file is replaced on disk.
	Watch bool `json:"watch" mapstructure:"watch"`

	// WaitTimeout waits this long for the file to appear at startup. Zero fails fast.
	WaitTimeout time.Duration `json:"wait-timeout" mapstructure:"wait-timeout" validate:"gte=0"`
}

// NewTokenOptions returns the default token settings.
func NewTokenOptions() *TokenOptions {
	return &TokenOptions{
		FilePath:      "/data/tokens/token.json",
		RefreshMargin: 5 * time.Minute,
		Watch:         true,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *TokenOptions) Validate() []error {
	if o == nil {
		return nil
	}
	return ValidateStruct("token", o)
}

// AddFlags adds flags for TokenOptions to the specified FlagSet.
func (o *TokenOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.FilePath, "token.file-path", o.FilePath, "Path of the JSON credential file.")
	fs.DurationVar(&o.RefreshMargin, "token.refresh-margin", o.RefreshMargin, "Refresh the access token when less than this lifetime remains.")
	fs.BoolVar(&o.Watch, "token.watch", o.Watch, "Reload the credential when the file is replaced on disk.")
	fs.DurationVar(&o.WaitTimeout, "token.wait-timeout", o.WaitTimeout, "Wait this long for the credential file to appear at startup (0 fails fast).")
}
