package registry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/mapper"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

var _ prometheus.Collector = (*Collector)(nil)

// Collector renders the registry on every scrape. It is unchecked because the set of
// vehicle series depends on which fields the vehicle reported.
type Collector struct {
	registry *Registry

	mu    sync.Mutex
	descs map[string]*prometheus.Desc
}

// NewCollector creates a Collector reading from r.
func NewCollector(r *Registry) *Collector {
	return &Collector{registry: r, descs: map[string]*prometheus.Desc{}}
}

// Describe sends nothing, which marks the collector as unchecked.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect emits the latest snapshot followed by the health samples.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot, health := c.registry.Read()

	if snapshot != nil {
		for _, s := range snapshot.Samples {
			c.emit(ch, s)
		}
	}
	for _, s := range mapper.MapHealth(health) {
		c.emit(ch, s)
	}
}

func (c *Collector) emit(ch chan<- prometheus.Metric, s model.Sample) {
	m, err := prometheus.NewConstMetric(c.desc(s), valueType(s.Type), s.Value, s.LabelValues()...)
	if err != nil {
		log.Error(err, "Dropping invalid sample", "metric", s.Name)
		return
	}
	ch <- m
}

// desc caches descriptors by name and label names.
func (c *Collector) desc(s model.Sample) *prometheus.Desc {
	names := s.LabelNames()
	key := s.Name
	for _, n := range names {
		key += "," + n
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.descs[key]
	if !ok {
		d = prometheus.NewDesc(s.Name, s.Help, names, nil)
		c.descs[key] = d
	}
	return d
}

func valueType(t model.SampleType) prometheus.ValueType {
	if t == model.Counter {
		return prometheus.CounterValue
	}
	return prometheus.GaugeValue
}
