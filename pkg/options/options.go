package options

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group.
type IOptions interface {
	// Validate returns every problem found, nil when the options are usable.
	Validate() []error

	// AddFlags registers the group's flags on fs.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return flagName(fld.Tag.Get("mapstructure"))
		})
	})
	return validate
}

// ValidateStruct runs the validator struct tags of o and converts failures into errors
// named after the flag that carries the field, e.g. "--poll.interval".
func ValidateStruct(prefix string, o any) []error {
	err := structValidator().Struct(o)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("--%s.%s: %s", prefix, fe.Field(), describe(fe)))
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url", "http_url":
		return fmt.Sprintf("must be an absolute URL, got %q", fe.Value())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte", "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must not be smaller than %s", flagName(fe.Param()))
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// ValidateAddress checks a host:port listen address. The host may be empty.
func ValidateAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q is not a valid address: %w", addr, err)
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		return fmt.Errorf("%q is not a valid IP address", host)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("%q is not a valid port", port)
	}
	return nil
}

// ValidateBrokerURL checks an MQTT broker URL such as tcp://host:1883 or wss://host/mqtt.
func ValidateBrokerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("broker url %q has no host", raw)
	}
	return nil
}

func flagName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", "-")
}
