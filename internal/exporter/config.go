package exporter

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/fleet"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/mapper"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/registry"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/scheduler"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/server"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/sink"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/token"
	"github.com/autopeer-io/tesla-exporter/internal/pkg/metrics"
	"github.com/autopeer-io/tesla-exporter/pkg/mqtt"
	"github.com/autopeer-io/tesla-exporter/pkg/mqtt/topic"
	"github.com/autopeer-io/tesla-exporter/pkg/options"
)

type Config struct {
	FleetOptions *options.FleetOptions
	PollOptions  *options.PollOptions
	TokenOptions *options.TokenOptions
	HttpOptions  *options.HttpOptions
	MqttOptions  *options.MqttOptions
	S3Options    *options.S3Options
}

// NewExporter wires the components. Nothing is contacted until Run.
func (cfg *Config) NewExporter() (*Exporter, error) {
	// 1. Credential lifecycle
	store := token.NewFileStore(cfg.TokenOptions.FilePath)
	refresher := token.NewOAuth2Refresher(
		cfg.FleetOptions.ClientID,
		cfg.FleetOptions.ClientSecret,
		cfg.FleetOptions.TokenURL(),
		&http.Client{Timeout: cfg.FleetOptions.RequestTimeout},
		nil,
	)
	manager := token.NewManager(store, refresher,
		token.WithRefreshMargin(cfg.TokenOptions.RefreshMargin),
		token.WithRefreshTimeout(cfg.FleetOptions.RequestTimeout),
		token.WithRefreshObserver(metrics.ObserveTokenRefresh),
	)

	// 2. Vehicle API
	api, err := fleet.NewClient(cfg.FleetOptions.APIBase, manager, cfg.FleetOptions.RequestTimeout)
	if err != nil {
		return nil, err
	}

	// 3. Report sinks
	sinks, runners, archive, err := cfg.newSinks()
	if err != nil {
		return nil, err
	}

	// 4. Registry and exposition
	reg := registry.New()
	gatherer := prometheus.NewRegistry()
	gatherer.MustRegister(
		registry.NewCollector(reg),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.MustRegister(gatherer)

	// 5. Poll loop
	sched := scheduler.New(scheduler.Config{
		Interval:         cfg.PollOptions.Interval,
		SleepInterval:    cfg.PollOptions.SleepInterval,
		WakeOnPoll:       cfg.PollOptions.WakeOnPoll,
		WakeTimeout:      cfg.PollOptions.WakeTimeout,
		FailureThreshold: cfg.PollOptions.FailureThreshold,
		MaxBackoff:       cfg.PollOptions.MaxBackoff,
		VehicleIndex:     cfg.FleetOptions.VehicleIndex,
	}, api, mapper.New(mapper.FleetAPIUnits), reg, scheduler.WithSinks(sinks...))

	e := &Exporter{
		manager:     manager,
		scheduler:   sched,
		registry:    reg,
		gatherer:    gatherer,
		server:      server.NewServer(cfg.HttpOptions, gatherer, reg),
		runners:     runners,
		archive:     archive,
		tokenPath:   store.Path(),
		waitTimeout: cfg.TokenOptions.WaitTimeout,
	}
	if cfg.TokenOptions.Watch {
		e.watcher = token.NewWatcher(store.Path(), manager)
	}
	return e, nil
}

func (cfg *Config) newSinks() ([]core.Sink, []runner, *sink.S3Sink, error) {
	var (
		sinks   []core.Sink
		runners []runner
		archive *sink.S3Sink
	)

	if cfg.MqttOptions.Enabled() {
		clientCfg := cfg.MqttOptions.ToClientConfig()
		if clientCfg.ClientID == "" {
			clientCfg.ClientID = "tesla-exporter-" + uuid.NewString()[:8]
		}
		topics := topic.NewBuilder(cfg.MqttOptions.TopicRoot)
		sink.WillConfig(clientCfg, topics, clientCfg.ClientID, cfg.MqttOptions.QoS)

		client, err := mqtt.NewClient(clientCfg)
		if err != nil {
			return nil, nil, nil, core.NewError(core.KindConfig, "exporter.mqtt", err)
		}
		s := sink.NewMQTTSink(client, topics, clientCfg.ClientID, cfg.MqttOptions.QoS)
		sinks = append(sinks, s)
		runners = append(runners, s)
	}

	if cfg.S3Options.Enabled() {
		s, err := sink.NewS3Sink(cfg.S3Options)
		if err != nil {
			return nil, nil, nil, core.NewError(core.KindConfig, "exporter.s3", err)
		}
		sinks = append(sinks, s)
		archive = s
	}

	return sinks, runners, archive, nil
}
