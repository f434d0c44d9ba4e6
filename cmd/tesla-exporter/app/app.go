package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/tesla-exporter/cmd/tesla-exporter/app/options"
	"github.com/autopeer-io/tesla-exporter/pkg/app"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

const (
	commandName = "tesla-exporter"
	commandDesc = `The Tesla exporter polls a single vehicle through the Tesla Fleet API and
exposes its latest state as Prometheus metrics.

The vehicle is probed with the lightweight vehicle list call, which never wakes it.
Full telemetry is only fetched while the vehicle is online, unless --poll.wake-on-poll
is set. The OAuth2 credential written by tesla-token-setup is refreshed before it
expires and persisted atomically.`
)

func NewApp() *app.App {
	opts := options.NewExporterOptions()
	application := app.NewApp(
		commandName,
		"Export Tesla vehicle telemetry as Prometheus metrics",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithEnvAliases(options.EnvAliases),
		app.WithEnvConversions(options.EnvConversions),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.ExporterOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer log.Sync()

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		exp, err := cfg.NewExporter()
		if err != nil {
			return fmt.Errorf("failed to create exporter: %w", err)
		}

		if err := exp.Run(ctx); err != nil {
			log.Error(err, "Exporter stopped")
			return err
		}
		return nil
	}
}
