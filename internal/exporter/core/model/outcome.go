package model

import (
	"encoding/json"
	"time"
)

// PollOutcome is the result of one poll attempt.
type PollOutcome struct {
	Success       bool
	StateObserved VehicleState
	// ErrorKind is empty on success.
	ErrorKind string
	// Payload is nil unless full telemetry was fetched.
	Payload *VehicleData
	// Raw is the undecoded response object that Payload was decoded from.
	Raw json.RawMessage
}

// Health is the liveness view of the exporter, updated after every attempt.
type Health struct {
	VehicleName   string
	Up            bool
	Reachable     bool
	Authenticated bool
	State         VehicleState

	// LastSuccess is zero until full telemetry was fetched once.
	LastSuccess time.Time

	// Errors counts failed attempts by error kind.
	Errors              map[string]uint64
	ConsecutiveFailures int
	NextDelay           time.Duration
}

// Clone returns a deep copy of h.
func (h Health) Clone() Health {
	c := h
	c.Errors = make(map[string]uint64, len(h.Errors))
	for k, v := range h.Errors {
		c.Errors[k] = v
	}
	return c
}

// Report is handed to the sinks after every successful attempt.
type Report struct {
	// ID identifies the poll attempt.
	ID         string          `json:"id"`
	Vehicle    Vehicle         `json:"vehicle"`
	State      VehicleState    `json:"state"`
	ObservedAt time.Time       `json:"observed_at"`
	Snapshot   *Snapshot       `json:"-"`
	Raw        json.RawMessage `json:"-"`
}
