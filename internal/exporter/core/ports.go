package core

import (
	"context"
	"encoding/json"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

// TokenStore persists the credential. Save must be atomic: a reader observes
// either the previous record or the new one, never a partial write.
type TokenStore interface {
	// Load returns ErrCredentialMissing when nothing has been stored yet.
	Load(ctx context.Context) (*model.Credential, error)
	Save(ctx context.Context, cred *model.Credential) error
}

// CredentialProvider hands out bearer credentials.
type CredentialProvider interface {
	// Credential returns a credential that stays valid for at least the refresh margin.
	Credential(ctx context.Context) (*model.Credential, error)

	// Refresh forces a refresh after the server rejected the access token rejected.
	// If the current credential already differs from rejected it is returned as is.
	Refresh(ctx context.Context, rejected string) (*model.Credential, error)
}

// VehicleAPI is the remote vehicle API. Implementations classify every failure
// as a *Error and never retry or sleep internally.
type VehicleAPI interface {
	// ListVehicles is the lightweight probe. It does not wake the vehicle.
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)

	// VehicleData fetches the full telemetry of an online vehicle.
	VehicleData(ctx context.Context, id int64) (*model.VehicleData, json.RawMessage, error)

	// WakeUp asks an asleep vehicle to come online and returns the state it reports.
	WakeUp(ctx context.Context, id int64) (model.VehicleState, error)
}

// Sink receives a report after every successful poll attempt.
type Sink interface {
	Name() string
	Publish(ctx context.Context, report *model.Report) error
}
