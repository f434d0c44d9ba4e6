package mapper

import "github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"

const vehicleLabel = "vehicle_name"

// builder accumulates samples that all carry the vehicle_name label.
type builder struct {
	vehicle string
	samples []model.Sample
}

func newBuilder(vehicle string) *builder {
	return &builder{vehicle: vehicle}
}

func (b *builder) labels(kv []string) []model.Label {
	labels := make([]model.Label, 0, 1+len(kv)/2)
	labels = append(labels, model.Label{Name: vehicleLabel, Value: b.vehicle})
	for i := 0; i+1 < len(kv); i += 2 {
		labels = append(labels, model.Label{Name: kv[i], Value: kv[i+1]})
	}
	return labels
}

func (b *builder) add(name, help string, typ model.SampleType, value float64, kv ...string) {
	b.samples = append(b.samples, model.Sample{
		Name:   name,
		Help:   help,
		Type:   typ,
		Labels: b.labels(kv),
		Value:  value,
	})
}

// gauge adds a gauge unless v is nil.
func (b *builder) gauge(name, help string, v *float64, kv ...string) {
	if v == nil {
		return
	}
	b.add(name, help, model.Gauge, *v, kv...)
}

// flag adds a 0/1 gauge unless v is nil.
func (b *builder) flag(name, help string, v *bool, kv ...string) {
	if v == nil {
		return
	}
	b.add(name, help, model.Gauge, boolValue(*v), kv...)
}

// info adds a constant 1 carrying the value in a label.
func (b *builder) info(name, help, label, value string) {
	b.add(name, help, model.Gauge, 1, label, value)
}

// oneHot adds one series per allowed value plus "unknown"; exactly one of them is 1.
// A nil value produces nothing.
func (b *builder) oneHot(name, help, label string, allowed []string, v *string) {
	if v == nil {
		return
	}
	current := unknownValue
	for _, a := range allowed {
		if a == *v {
			current = a
			break
		}
	}
	for _, a := range allowed {
		b.add(name, help, model.Gauge, boolValue(a == current), label, a)
	}
	b.add(name, help, model.Gauge, boolValue(current == unknownValue), label, unknownValue)
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
