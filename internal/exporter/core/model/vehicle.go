package model

import (
	"strings"
	"time"
)

// VehicleState is the operational state of a vehicle as reported by the API.
type VehicleState string

const (
	StateUnknown VehicleState = "unknown"
	StateOnline  VehicleState = "online"
	StateAsleep  VehicleState = "asleep"
	StateOffline VehicleState = "offline"
)

// VehicleStates lists every state in a fixed order.
var VehicleStates = []VehicleState{StateOnline, StateAsleep, StateOffline, StateUnknown}

// ParseVehicleState maps an API state string onto the closed set. Values the
// exporter does not know yet become StateUnknown.
func ParseVehicleState(s string) VehicleState {
	switch VehicleState(strings.ToLower(strings.TrimSpace(s))) {
	case StateOnline:
		return StateOnline
	case StateAsleep:
		return StateAsleep
	case StateOffline:
		return StateOffline
	default:
		return StateUnknown
	}
}

func (s VehicleState) String() string {
	return string(s)
}

// Vehicle is one entry of the account vehicle list.
type Vehicle struct {
	ID          int64        `json:"id"`
	VIN         string       `json:"vin"`
	DisplayName string       `json:"display_name"`
	State       VehicleState `json:"state"`
}

// Name returns the display name, falling back to the VIN.
func (v Vehicle) Name() string {
	if v.DisplayName != "" {
		return v.DisplayName
	}
	if v.VIN != "" {
		return v.VIN
	}
	return "unknown"
}

// StateRecord is the in-memory operational state with the time it was last changed.
type StateRecord struct {
	State              VehicleState
	LastTransitionTime time.Time
}
