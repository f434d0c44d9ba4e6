package model

import (
	"sort"
	"strings"
	"time"
)

// SampleType is the exposition type of a sample.
type SampleType int

const (
	Gauge SampleType = iota
	Counter
)

// Label is one name/value pair of a series.
type Label struct {
	Name  string
	Value string
}

// Sample is one metric value with its labels.
type Sample struct {
	Name   string
	Help   string
	Type   SampleType
	Labels []Label
	Value  float64
}

// Key identifies the series of s: its name followed by its labels in order.
func (s Sample) Key() string {
	var b strings.Builder
	b.WriteString(s.Name)
	for _, l := range s.Labels {
		b.WriteByte('|')
		b.WriteString(l.Name)
		b.WriteByte('=')
		b.WriteString(l.Value)
	}
	return b.String()
}

// LabelNames returns the label names of s in order.
func (s Sample) LabelNames() []string {
	names := make([]string, len(s.Labels))
	for i, l := range s.Labels {
		names[i] = l.Name
	}
	return names
}

// LabelValues returns the label values of s in order.
func (s Sample) LabelValues() []string {
	values := make([]string, len(s.Labels))
	for i, l := range s.Labels {
		values[i] = l.Value
	}
	return values
}

// Snapshot is the set of samples produced by one successful poll.
type Snapshot struct {
	ObservedAt time.Time
	Vehicle    Vehicle
	Samples    []Sample
}

// Sort orders the samples by series key.
func (s *Snapshot) Sort() {
	sort.SliceStable(s.Samples, func(i, j int) bool {
		return s.Samples[i].Key() < s.Samples[j].Key()
	})
}

// Lookup returns the sample with the given name whose labels include every
// name/value pair in labels, alternating name and value.
func (s *Snapshot) Lookup(name string, labels ...string) (Sample, bool) {
	if s == nil {
		return Sample{}, false
	}
	for _, sample := range s.Samples {
		if sample.Name == name && hasLabels(sample, labels) {
			return sample, true
		}
	}
	return Sample{}, false
}

// Has reports whether a sample named name exists.
func (s *Snapshot) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

func hasLabels(s Sample, kv []string) bool {
	for i := 0; i+1 < len(kv); i += 2 {
		found := false
		for _, l := range s.Labels {
			if l.Name == kv[i] && l.Value == kv[i+1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
