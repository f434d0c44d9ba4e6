package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
	"github.com/autopeer-io/tesla-exporter/pkg/mqtt"
	"github.com/autopeer-io/tesla-exporter/pkg/mqtt/topic"
)

// Exporter status payloads. The offline payload doubles as the will message.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

const disconnectTimeout = 5 * time.Second

var _ core.Sink = (*MQTTSink)(nil)

// MQTTSink publishes the vehicle state as a retained message and the snapshot as JSON.
type MQTTSink struct {
	client      mqtt.Client
	topics      *topic.Builder
	qos         int
	statusTopic string
	logger      log.Logger
}

// NewMQTTSink publishes through client. exporterID names the status topic.
func NewMQTTSink(client mqtt.Client, topics *topic.Builder, exporterID string, qos int) *MQTTSink {
	return &MQTTSink{
		client:      client,
		topics:      topics,
		qos:         qos,
		statusTopic: topics.ExporterStatus(exporterID),
		logger:      log.WithName("sink.mqtt"),
	}
}

// WillConfig fills the will of cfg so the broker marks the exporter offline when the
// connection drops.
func WillConfig(cfg *mqtt.ClientConfig, topics *topic.Builder, exporterID string, qos int) {
	cfg.WillTopic = topics.ExporterStatus(exporterID)
	cfg.WillPayload = []byte(StatusOffline)
	cfg.WillQoS = byte(qos)
	cfg.WillRetain = true
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Run connects to the broker and keeps the connection until ctx is done. The connection
// outlives ctx until the offline status is out.
func (s *MQTTSink) Run(ctx context.Context) error {
	connCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	if err := s.client.Start(connCtx); err != nil {
		return fmt.Errorf("failed to start mqtt client: %w", err)
	}

	if err := s.client.AwaitConnection(ctx); err == nil {
		if err := s.publishStatus(ctx, StatusOnline); err != nil {
			s.logger.Warn("Failed to publish exporter status", "error", err)
		}
	}

	<-ctx.Done()

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()
	if s.client.IsConnected() {
		if err := s.publishStatus(sctx, StatusOffline); err != nil {
			s.logger.Warn("Failed to publish exporter status", "error", err)
		}
	}
	s.client.Disconnect(sctx)
	return nil
}

// Publish sends the state message and, when telemetry was fetched, the snapshot.
func (s *MQTTSink) Publish(ctx context.Context, r *model.Report) error {
	vin := r.Vehicle.VIN

	state, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.client.Publish(ctx, s.topics.VehicleState(vin), s.qos, true, state); err != nil {
		return fmt.Errorf("failed to publish state: %w", err)
	}

	if r.Snapshot == nil {
		return nil
	}
	snapshot, err := json.Marshal(encodeSnapshot(r.Snapshot))
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.client.Publish(ctx, s.topics.VehicleSnapshot(vin), s.qos, false, snapshot); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	s.logger.Debug("Published report", "vin", vin, "samples", len(r.Snapshot.Samples))
	return nil
}

func (s *MQTTSink) publishStatus(ctx context.Context, status string) error {
	return s.client.Publish(ctx, s.statusTopic, s.qos, true, []byte(status))
}

type snapshotDoc struct {
	Vehicle    model.Vehicle `json:"vehicle"`
	ObservedAt time.Time     `json:"observed_at"`
	Samples    []sampleDoc   `json:"samples"`
}

type sampleDoc struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

func encodeSnapshot(s *model.Snapshot) snapshotDoc {
	doc := snapshotDoc{
		Vehicle:    s.Vehicle,
		ObservedAt: s.ObservedAt,
		Samples:    make([]sampleDoc, 0, len(s.Samples)),
	}
	for _, sample := range s.Samples {
		sd := sampleDoc{Name: sample.Name, Value: sample.Value}
		// vehicle_name is carried by the vehicle object.
		for _, l := range sample.Labels {
			if l.Name == "vehicle_name" {
				continue
			}
			if sd.Labels == nil {
				sd.Labels = map[string]string{}
			}
			sd.Labels[l.Name] = l.Value
		}
		doc.Samples = append(doc.Samples, sd)
	}
	return doc
}
