package options

import (
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*PollOptions)(nil)

// PollOptions controls the adaptive poll cadence.
type PollOptions struct {
	// Interval is the cadence while the vehicle is online.
	Interval time.Duration `json:"interval" mapstructure:"interval" validate:"gt=0"`

	// SleepInterval is the cadence while the vehicle is asleep or offline.
	SleepInterval time.Duration `json:"sleep-interval" mapstructure:"sleep-interval" validate:"gt=0"`

	// WakeOnPoll wakes a sleeping vehicle to fetch telemetry. It drains the standby battery.
	WakeOnPoll bool `json:"wake-on-poll" mapstructure:"wake-on-poll"`

	// WakeTimeout bounds how long a wake-up may take before the attempt fails.
	WakeTimeout time.Duration `json:"wake-timeout" mapstructure:"wake-timeout" validate:"gt=0"`

	// FailureThreshold is the number of consecutive failures before backoff engages.
	FailureThreshold int `json:"failure-threshold" mapstructure:"failure-threshold" validate:"gte=1"`

	// MaxBackoff caps the backoff delay.
	MaxBackoff time.Duration `json:"max-backoff" mapstructure:"max-backoff" validate:"gtefield=Interval"`
}

// NewPollOptions returns the default cadence.
func NewPollOptions() *PollOptions {
	return &PollOptions{
		Interval:         5 * time.Minute,
		SleepInterval:    11 * time.Minute,
		WakeTimeout:      60 * time.Second,
		FailureThreshold: 3,
		MaxBackoff:       time.Hour,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *PollOptions) Validate() []error {
	if o == nil {
		return nil
	}
	return ValidateStruct("poll", o)
}

// AddFlags adds flags for PollOptions to the specified FlagSet.
func (o *PollOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Interval, "poll.interval", o.Interval, "Poll interval while the vehicle is online.")
	fs.DurationVar(&o.SleepInterval, "poll.sleep-interval", o.SleepInterval, "Poll interval while the vehicle is asleep or offline.")
	fs.BoolVar(&o.WakeOnPoll, "poll.wake-on-poll", o.WakeOnPoll, "Wake a sleeping vehicle to fetch full telemetry. Drains the standby battery.")
	fs.DurationVar(&o.WakeTimeout, "poll.wake-timeout", o.WakeTimeout, "Maximum time to wait for a woken vehicle to come online.")
	fs.IntVar(&o.FailureThreshold, "poll.failure-threshold", o.FailureThreshold, "Consecutive failures tolerated before exponential backoff engages.")
	fs.DurationVar(&o.MaxBackoff, "poll.max-backoff", o.MaxBackoff, "Upper bound of the backoff delay.")
}
