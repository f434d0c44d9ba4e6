package options

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func messages(errs []error) string {
	var parts []string
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "\n")
}

func TestFleetOptionsRequireIdentity(t *testing.T) {
	o := NewFleetOptions()

	got := messages(o.Validate())
	for _, want := range []string{"--fleet.client-id: is required", "--fleet.client-secret: is required"} {
		if !strings.Contains(got, want) {
			t.Errorf("Validate() = %q, missing %q", got, want)
		}
	}

	o.ClientID, o.ClientSecret = "id", "secret"
	if errs := o.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v", errs)
	}
}

func TestFleetOptionsRejectRelativeURLs(t *testing.T) {
	o := NewFleetOptions()
	o.ClientID, o.ClientSecret = "id", "secret"
	o.APIBase = "fleet-api.example.com"

	got := messages(o.Validate())
	if !strings.Contains(got, "--fleet.api-base: must be an absolute URL") {
		t.Errorf("Validate() = %q", got)
	}
}

func TestFleetOptionsEndpoints(t *testing.T) {
	o := NewFleetOptions()
	o.TokenBase = "https://auth.example.com/"
	o.AuthBase = "https://login.example.com"
	o.RedirectURI = "https://partner.example.com/callback"

	if got := o.TokenURL(); got != "https://auth.example.com/oauth2/v3/token" {
		t.Errorf("TokenURL() = %q", got)
	}
	if got := o.AuthorizeURL(); got != "https://login.example.com/oauth2/v3/authorize" {
		t.Errorf("AuthorizeURL() = %q", got)
	}
	if domain, err := o.PartnerDomain(); err != nil || domain != "partner.example.com" {
		t.Errorf("PartnerDomain() = %q, %v", domain, err)
	}
	if got := len(o.ScopeList()); got != 4 {
		t.Errorf("ScopeList() has %d scopes", got)
	}

	o.RedirectURI = "/callback"
	if _, err := o.PartnerDomain(); err == nil {
		t.Error("PartnerDomain() accepted a redirect URI without host")
	}
}

func TestPollOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*PollOptions)
		want   string
	}{
		{name: "defaults", modify: func(*PollOptions) {}},
		{name: "zero interval", modify: func(o *PollOptions) { o.Interval = 0 }, want: "--poll.interval: must be greater than 0"},
		{name: "threshold", modify: func(o *PollOptions) { o.FailureThreshold = 0 }, want: "--poll.failure-threshold: must be at least 1"},
		{
			name:   "backoff below interval",
			modify: func(o *PollOptions) { o.MaxBackoff = time.Minute },
			want:   "--poll.max-backoff: must not be smaller than interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewPollOptions()
			tt.modify(o)
			got := messages(o.Validate())
			if tt.want == "" {
				if got != "" {
					t.Errorf("Validate() = %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Validate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenOptionsValidate(t *testing.T) {
	o := NewTokenOptions()
	if errs := o.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v", errs)
	}

	o.FilePath = ""
	o.RefreshMargin = 0
	got := messages(o.Validate())
	if !strings.Contains(got, "--token.file-path: is required") || !strings.Contains(got, "--token.refresh-margin") {
		t.Errorf("Validate() = %q", got)
	}
}

func TestHttpOptionsValidate(t *testing.T) {
	o := NewHttpOptions()
	if errs := o.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v", errs)
	}

	o.Addr = "not-an-address"
	o.MetricsPath = "metrics"
	if errs := o.Validate(); len(errs) != 2 {
		t.Errorf("Validate() = %v, want two errors", errs)
	}
}

func TestOptionalSinks(t *testing.T) {
	m := NewMqttOptions()
	s := NewS3Options()
	if m.Enabled() || s.Enabled() {
		t.Fatal("sinks enabled by default")
	}
	if errs := append(m.Validate(), s.Validate()...); len(errs) != 0 {
		t.Errorf("disabled sinks failed validation: %v", errs)
	}

	m.Broker = "http://broker:1883"
	m.QoS = 3
	if errs := m.Validate(); len(errs) != 2 {
		t.Errorf("Validate() = %v, want scheme and qos errors", errs)
	}

	s.Endpoint = "minio:9000"
	if errs := s.Validate(); len(errs) != 1 {
		t.Errorf("Validate() = %v, want credential error", errs)
	}
}

func TestMqttToClientConfig(t *testing.T) {
	o := NewMqttOptions()
	o.Broker = "tcp://broker:1883"
	o.Username = "exporter"

	cfg := o.ToClientConfig()
	if cfg.BrokerURL != o.Broker || cfg.Username != "exporter" || cfg.KeepAlive != 60 || !cfg.CleanStart {
		t.Errorf("ToClientConfig() = %+v", cfg)
	}
}

func TestAddFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	poll := NewPollOptions()
	poll.AddFlags(fs)
	fleet := NewFleetOptions()
	fleet.AddFlags(fs)

	if err := fs.Parse([]string{"--poll.interval=2m", "--poll.wake-on-poll", "--fleet.vehicle-index=2"}); err != nil {
		t.Fatal(err)
	}
	if poll.Interval != 2*time.Minute || !poll.WakeOnPoll || fleet.VehicleIndex != 2 {
		t.Errorf("parsed poll=%+v vehicleIndex=%d", poll, fleet.VehicleIndex)
	}
}

func TestValidateAddress(t *testing.T) {
	for _, addr := range []string{":9090", "0.0.0.0:9090", "localhost:80", "[::1]:9090"} {
		if err := ValidateAddress(addr); err != nil {
			t.Errorf("ValidateAddress(%q) = %v", addr, err)
		}
	}
	for _, addr := range []string{"9090", "host.example:9090", "0.0.0.0:http"} {
		if err := ValidateAddress(addr); err == nil {
			t.Errorf("ValidateAddress(%q) accepted", addr)
		}
	}
}
