package topic

import (
	"fmt"
	"strings"
)

// Topic segments published by the exporter. Subscribers key on these; changing them
// breaks existing consumers.
const (
	// SegmentVehicles groups per-vehicle topics: {root}/vehicles/{vin}/...
	SegmentVehicles = "vehicles"

	// SuffixState carries the retained operational state of a vehicle.
	SuffixState = "state"

	// SuffixSnapshot carries the latest metric snapshot of a vehicle.
	SuffixSnapshot = "snapshot"

	// SegmentExporter carries the liveness of the exporter itself: {root}/exporter/{id}/status
	SegmentExporter = "exporter"
)

// Builder constructs topic strings under a fixed root namespace.
type Builder struct {
	root string
}

// NewBuilder creates a Builder for root (e.g. "tesla/v1"). Trailing slashes are ignored.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.TrimRight(root, "/")}
}

// VehicleState returns {root}/vehicles/{vin}/state.
func (b *Builder) VehicleState(vin string) string {
	return b.build(SegmentVehicles, escape(vin), SuffixState)
}

// VehicleSnapshot returns {root}/vehicles/{vin}/snapshot.
func (b *Builder) VehicleSnapshot(vin string) string {
	return b.build(SegmentVehicles, escape(vin), SuffixSnapshot)
}

// ExporterStatus returns {root}/exporter/{id}/status.
func (b *Builder) ExporterStatus(id string) string {
	return b.build(SegmentExporter, escape(id), "status")
}

func (b *Builder) build(parts ...string) string {
	return fmt.Sprintf("%s/%s", b.root, strings.Join(parts, "/"))
}

// escape keeps identifiers from injecting topic levels or wildcards.
func escape(id string) string {
	if id == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(id)
}
