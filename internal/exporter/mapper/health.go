package mapper

import (
	"sort"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

// MapHealth returns the liveness series. They are produced after every attempt,
// whatever its outcome.
func MapHealth(h model.Health) []model.Sample {
	name := h.VehicleName
	if name == "" {
		name = unknownValue
	}
	b := newBuilder(name)

	b.add("tesla_exporter_up", "Whether the last poll attempt reached the Fleet API.", model.Gauge, boolValue(h.Up))
	b.add("tesla_exporter_vehicle_reachable", "Whether the vehicle is online.", model.Gauge, boolValue(h.Reachable))
	b.add("tesla_exporter_authenticated", "Whether the exporter holds a credential the API accepts.", model.Gauge, boolValue(h.Authenticated))
	if !h.LastSuccess.IsZero() {
		b.add("tesla_exporter_last_successful_poll_timestamp_seconds", "Unix timestamp of the last successful vehicle_data fetch.",
			model.Gauge, float64(h.LastSuccess.UnixNano())/1e9)
	}
	b.add("tesla_exporter_consecutive_failures", "Number of consecutive failed poll attempts.", model.Gauge, float64(h.ConsecutiveFailures))
	b.add("tesla_exporter_next_poll_delay_seconds", "Delay before the next poll attempt.", model.Gauge, h.NextDelay.Seconds())

	const errHelp = "Count of polling errors by type."
	for _, kind := range errorTypes(h.Errors) {
		b.add("tesla_exporter_poll_errors_total", errHelp, model.Counter, float64(h.Errors[kind]), "error_type", kind)
	}

	state := h.State
	if state == "" {
		state = model.StateUnknown
	}
	for _, s := range model.VehicleStates {
		b.add("tesla_vehicle_state", "Operational state of the vehicle, 1 for the current state.", model.Gauge,
			boolValue(s == state), "state", string(s))
	}

	b.info("tesla_exporter_mapping_info", "Version of the metric mapping table.", "version", MappingVersion)

	return b.samples
}

// errorTypes lists every known kind so that counters exist from the start, followed
// by any other key present in counts.
func errorTypes(counts map[string]uint64) []string {
	types := make([]string, 0, len(core.Kinds)+len(counts))
	known := make(map[string]bool, len(core.Kinds))
	for _, k := range core.Kinds {
		types = append(types, string(k))
		known[string(k)] = true
	}

	var extra []string
	for k := range counts {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(types, extra...)
}
