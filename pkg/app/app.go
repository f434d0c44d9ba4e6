package app

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/term"
)

// EnvPrefix is prepended to every flag key to form its environment variable,
// e.g. --poll.interval is read from TESLA_EXPORTER_POLL_INTERVAL.
const EnvPrefix = "TESLA_EXPORTER"

// RunFunc is the entry point of a command once its options are complete and valid.
type RunFunc func() error

// NamedFlagSetOptions is implemented by the options of a command.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in derived fields after flags, environment and config file are applied.
	Complete() error

	// Validate reports every problem with the options at once.
	Validate() error
}

// App is a cobra command with a viper backed configuration layer.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	noConfig    bool
	validArgs   cobra.PositionalArgs
	envAliases  map[string]string
	envConvert  map[string]EnvConversion

	cmd     *cobra.Command
	viper   *viper.Viper
	cfgFile string
}

// Option configures an App.
type Option func(*App)

// WithDescription sets the long description of the command.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithOptions attaches the command options.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the function run by the command.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.validArgs = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithNoConfig removes the --config flag.
func WithNoConfig() Option {
	return func(a *App) {
		a.noConfig = true
	}
}

// WithEnvAliases maps flag keys to additional environment variable names that are
// consulted after the prefixed one, e.g. "fleet.client-id" -> "TESLA_CLIENT_ID".
func WithEnvAliases(aliases map[string]string) Option {
	return func(a *App) {
		a.envAliases = aliases
	}
}

// EnvConversion reads a flag key from an environment variable whose value is not
// in the flag's own format, e.g. POLL_INTERVAL_SECONDS=300 for a duration flag.
type EnvConversion struct {
	Env     string
	Convert func(string) (any, error)
}

// WithEnvConversions registers converted environment variables by flag key. A
// converted variable ranks like any other environment variable: it overrides the
// config file and is ignored when the flag or the prefixed variable is set.
func WithEnvConversions(conversions map[string]EnvConversion) Option {
	return func(a *App) {
		a.envConvert = conversions
	}
}

// Seconds converts a whole or fractional number of seconds to a time.Duration.
func Seconds(raw string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("expected a number of seconds, got %q", raw)
	}
	if f < 0 {
		return nil, fmt.Errorf("expected a non-negative number of seconds, got %q", raw)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// ListenPort converts a bare port number to a listen address on all interfaces.
func ListenPort(raw string) (any, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("expected a port between 1 and 65535, got %q", raw)
	}
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(port)), nil
}

// NewApp creates a new application.
func NewApp(name string, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
		viper:     viper.New(),
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()
	return a
}

// Command returns the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the command and exits the process with a non-zero status on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          a.validArgs,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
	}
	if !a.noConfig {
		namedFlagSets.FlagSet("global").StringVarP(&a.cfgFile, "config", "c", "",
			"Path to a YAML configuration file. Flags and environment variables take precedence.")
	}
	namedFlagSets.FlagSet("global").BoolP("help", "h", false, fmt.Sprintf("Help for %s.", a.name))

	fs := cmd.Flags()
	for _, f := range namedFlagSets.FlagSets {
		fs.AddFlagSet(f)
	}
	// --poll_interval is accepted as --poll-interval with a warning.
	fs.SetNormalizeFunc(cliflag.WarnWordSepNormalizeFunc)

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, namedFlagSets, cols)

	if a.runFunc != nil {
		cmd.RunE = a.runCommand
	}
	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfig(cmd); err != nil {
		return err
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return fmt.Errorf("failed to complete options: %w", err)
		}
		if err := a.options.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	return a.runFunc()
}

// loadConfig layers the config file and environment below the flags the user set
// explicitly and decodes the result into the options.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.viper

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, alias := range a.envAliases {
		if err := v.BindEnv(key, envName(key), alias); err != nil {
			return err
		}
	}

	for key, conv := range a.envConvert {
		raw, ok := os.LookupEnv(conv.Env)
		if !ok || cmd.Flags().Changed(key) {
			continue
		}
		if _, prefixed := os.LookupEnv(envName(key)); prefixed {
			continue
		}
		val, err := conv.Convert(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", conv.Env, err)
		}
		v.Set(key, val)
	}

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %q: %w", a.cfgFile, err)
		}
	}

	if a.options == nil {
		return nil
	}
	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

// envName is the prefixed environment variable for a flag key.
func envName(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return EnvPrefix + "_" + strings.ToUpper(r.Replace(key))
}
