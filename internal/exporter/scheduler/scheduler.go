package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/mapper"
	"github.com/autopeer-io/tesla-exporter/internal/pkg/metrics"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

const (
	// DefaultWakePollInterval is how often the probe is repeated while waiting for a wake up.
	DefaultWakePollInterval = 5 * time.Second

	defaultSinkTimeout = 30 * time.Second
)

// Config holds the cadence policy.
type Config struct {
	// Interval is the delay between polls of an online vehicle.
	Interval time.Duration
	// SleepInterval is the delay between probes of an asleep or offline vehicle.
	SleepInterval time.Duration

	WakeOnPoll       bool
	WakeTimeout      time.Duration
	WakePollInterval time.Duration

	FailureThreshold int
	MaxBackoff       time.Duration

	// VehicleIndex selects the vehicle in the account vehicle list.
	VehicleIndex int

	SinkTimeout time.Duration
}

// Publisher receives the outcome of every attempt. A nil snapshot keeps the previous one.
type Publisher interface {
	Publish(snapshot *model.Snapshot, health model.Health)
}

// Scheduler runs the poll loop for a single vehicle.
type Scheduler struct {
	cfg       Config
	api       core.VehicleAPI
	mapper    *mapper.Mapper
	publisher Publisher
	sinks     []core.Sink
	clock     clock.Clock
	logger    log.Logger

	backoff *Backoff
	state   *StateMachine
	health  model.Health
	vehicle model.Vehicle

	nextDelay   time.Duration
	clampWarned bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for waits and timestamps.
func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clk
	}
}

// WithSinks adds report sinks.
func WithSinks(sinks ...core.Sink) Option {
	return func(s *Scheduler) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// New creates a Scheduler.
func New(cfg Config, api core.VehicleAPI, m *mapper.Mapper, publisher Publisher, opts ...Option) *Scheduler {
	if cfg.WakePollInterval <= 0 {
		cfg.WakePollInterval = DefaultWakePollInterval
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}

	s := &Scheduler{
		cfg:       cfg,
		api:       api,
		mapper:    m,
		publisher: publisher,
		clock:     clock.RealClock{},
		logger:    log.WithName("scheduler"),
		backoff:   NewBackoff(cfg.FailureThreshold, cfg.MaxBackoff),
		health:    model.Health{Errors: make(map[string]uint64)},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = NewStateMachine(s.clock)
	return s
}

// Run polls immediately and then after every computed delay until ctx is done.
// Failures never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting poll loop",
		"interval", s.cfg.Interval,
		"sleepInterval", s.cfg.SleepInterval,
		"wakeOnPoll", s.cfg.WakeOnPoll,
		"failureThreshold", s.cfg.FailureThreshold,
		"maxBackoff", s.cfg.MaxBackoff)

	for {
		s.PollOnce(ctx)

		s.logger.Debug("Next poll scheduled", "delay", s.nextDelay)
		if !s.sleep(ctx, s.nextDelay) {
			s.logger.Info("Poll loop stopped")
			return nil
		}
	}
}

// PollOnce performs one attempt, publishes its outcome and returns it.
func (s *Scheduler) PollOnce(ctx context.Context) model.PollOutcome {
	start := s.clock.Now()
	outcome, snapshot, err := s.attempt(ctx)

	if ctx.Err() != nil {
		// Shutting down; the interrupted attempt says nothing about the vehicle.
		return outcome
	}

	s.finish(ctx, outcome, snapshot, err, start)
	return outcome
}

// NextDelay returns the delay computed after the last attempt.
func (s *Scheduler) NextDelay() time.Duration {
	return s.nextDelay
}

// State returns the current vehicle state record.
func (s *Scheduler) State() model.StateRecord {
	return s.state.Record()
}

// Failures returns the number of consecutive failed attempts.
func (s *Scheduler) Failures() int {
	return s.backoff.Failures()
}

func (s *Scheduler) attempt(ctx context.Context) (model.PollOutcome, *model.Snapshot, error) {
	outcome := model.PollOutcome{StateObserved: s.state.Current()}

	v, err := s.probe(ctx)
	if err != nil {
		return s.failed(ctx, outcome, err)
	}
	s.vehicle = v
	s.state.Observe(ctx, v.State)
	outcome.StateObserved = v.State

	switch v.State {
	case model.StateOnline:
	case model.StateAsleep:
		if !s.cfg.WakeOnPoll {
			s.logger.Debug("Vehicle asleep, skipping data fetch", "vehicle", v.Name())
			outcome.Success = true
			return outcome, nil, nil
		}
		if err := s.wake(ctx, v); err != nil {
			return s.failed(ctx, outcome, err)
		}
		outcome.StateObserved = model.StateOnline
	default:
		s.logger.Debug("Vehicle not reachable, skipping data fetch", "vehicle", v.Name(), "state", v.State)
		outcome.Success = true
		return outcome, nil, nil
	}

	data, raw, err := s.api.VehicleData(ctx, v.ID)
	if err != nil {
		return s.failed(ctx, outcome, err)
	}

	outcome.Success = true
	outcome.Payload = data
	outcome.Raw = raw
	return outcome, s.mapper.Map(v, data, s.clock.Now()), nil
}

// failed records err on outcome. Transient failures of an online vehicle mean it can
// no longer be assumed online.
func (s *Scheduler) failed(ctx context.Context, outcome model.PollOutcome, err error) (model.PollOutcome, *model.Snapshot, error) {
	kind := core.KindOf(err)
	if kind.Class() == core.ClassTransient && ctx.Err() == nil {
		s.state.Lost(ctx)
	}
	outcome.Success = false
	outcome.ErrorKind = string(kind)
	outcome.StateObserved = s.state.Current()
	return outcome, nil, err
}

// probe lists the vehicles and selects the configured one.
func (s *Scheduler) probe(ctx context.Context) (model.Vehicle, error) {
	vehicles, err := s.api.ListVehicles(ctx)
	if err != nil {
		return model.Vehicle{}, err
	}
	if len(vehicles) == 0 {
		return model.Vehicle{}, core.NewError(core.KindUnsupportedPayload, "scheduler.probe", errors.New("account has no vehicles"))
	}

	idx := s.cfg.VehicleIndex
	if idx >= len(vehicles) {
		if !s.clampWarned {
			s.logger.Warn("Vehicle index out of range, using the last vehicle", "index", idx, "vehicles", len(vehicles))
			s.clampWarned = true
		}
		idx = len(vehicles) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return vehicles[idx], nil
}

// wake sends wake_up and repeats the probe until the vehicle reports online or the
// wake timeout passes.
func (s *Scheduler) wake(ctx context.Context, v model.Vehicle) error {
	s.logger.Info("Waking vehicle", "vehicle", v.Name())

	state, err := s.api.WakeUp(ctx, v.ID)
	if err != nil {
		return err
	}

	deadline := s.clock.Now().Add(s.cfg.WakeTimeout)
	for state != model.StateOnline {
		if !s.clock.Now().Before(deadline) {
			return core.NewError(core.KindTimeout, "scheduler.wake",
				fmt.Errorf("vehicle did not wake within %s", s.cfg.WakeTimeout))
		}
		if !s.sleep(ctx, s.cfg.WakePollInterval) {
			return ctx.Err()
		}

		probed, err := s.probe(ctx)
		if err != nil {
			return err
		}
		if probed.ID == v.ID {
			state = probed.State
		}
	}

	s.state.Observe(ctx, model.StateOnline)
	s.logger.Info("Vehicle is online", "vehicle", v.Name())
	return nil
}

func (s *Scheduler) finish(ctx context.Context, outcome model.PollOutcome, snapshot *model.Snapshot, err error, start time.Time) {
	now := s.clock.Now()
	label := "success"

	if err != nil {
		kind := core.KindOf(err)
		label = string(kind)
		failures := s.backoff.Failure()
		s.health.Errors[string(kind)]++

		switch kind.Class() {
		case core.ClassAuth:
			s.logger.Error(err, "Poll failed, credential needs attention", "errorType", kind, "consecutiveFailures", failures)
		default:
			s.logger.Warn("Poll failed", "error", err, "errorType", kind, "consecutiveFailures", failures)
		}
	} else {
		if s.backoff.Failures() > 0 {
			s.logger.Info("Poll recovered", "afterFailures", s.backoff.Failures())
		}
		s.backoff.Reset()
		if snapshot == nil {
			label = "skipped"
		}
	}

	s.nextDelay = s.delay(err)
	s.updateHealth(err, snapshot, now)
	metrics.ObservePoll(label, now.Sub(start))
	s.publisher.Publish(snapshot, s.health.Clone())

	if err == nil {
		s.report(ctx, outcome, snapshot, now)
	}
}

// delay returns the wait before the next attempt.
func (s *Scheduler) delay(err error) time.Duration {
	d := s.backoff.Delay(s.baseInterval())
	if ra := core.RetryAfter(err); ra > d {
		d = ra
	}
	return d
}

// baseInterval is the cadence for the current state. An unknown state keeps the short
// cadence so that a single failure does not slow polling down.
func (s *Scheduler) baseInterval() time.Duration {
	switch s.state.Current() {
	case model.StateAsleep, model.StateOffline:
		return s.cfg.SleepInterval
	default:
		return s.cfg.Interval
	}
}

func (s *Scheduler) updateHealth(err error, snapshot *model.Snapshot, now time.Time) {
	h := &s.health
	if s.vehicle.ID != 0 || s.vehicle.VIN != "" {
		h.VehicleName = s.vehicle.Name()
	}

	class := core.ClassOf(err)
	h.Up = err == nil || class == core.ClassPayload
	switch {
	case err == nil:
		h.Authenticated = true
	case class == core.ClassAuth:
		h.Authenticated = false
	}

	h.State = s.state.Current()
	h.Reachable = h.State == model.StateOnline
	if snapshot != nil {
		h.LastSuccess = now
	}
	h.ConsecutiveFailures = s.backoff.Failures()
	h.NextDelay = s.nextDelay
}

// report hands the outcome of a successful attempt to every sink. Sink failures are
// logged and counted only.
func (s *Scheduler) report(ctx context.Context, outcome model.PollOutcome, snapshot *model.Snapshot, now time.Time) {
	if len(s.sinks) == 0 {
		return
	}

	r := &model.Report{
		ID:         uuid.NewString(),
		Vehicle:    s.vehicle,
		State:      outcome.StateObserved,
		ObservedAt: now,
		Snapshot:   snapshot,
		Raw:        outcome.Raw,
	}

	for _, sink := range s.sinks {
		sctx, cancel := context.WithTimeout(ctx, s.cfg.SinkTimeout)
		err := sink.Publish(sctx, r)
		cancel()

		metrics.ObserveSinkPublish(sink.Name(), err)
		if err != nil {
			s.logger.Warn("Sink publish failed", "sink", sink.Name(), "error", err)
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	t := s.clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return true
	}
}
