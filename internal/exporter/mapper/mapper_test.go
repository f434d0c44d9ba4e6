package mapper

import (
	"encoding/json"
	"math"
	"os"
	"testing"
	"time"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

const tolerance = 1e-9

var observed = time.Unix(1_700_000_000, 0)

func loadFixture(t *testing.T) *model.VehicleData {
	t.Helper()
	raw, err := os.ReadFile("testdata/vehicle_data.json")
	if err != nil {
		t.Fatal(err)
	}
	var data model.VehicleData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatal(err)
	}
	return &data
}

func vehicle() model.Vehicle {
	return model.Vehicle{ID: 1001, VIN: "5YJ3E1EA7KF000001", DisplayName: "Roadrunner", State: model.StateOnline}
}

func value(t *testing.T, s *model.Snapshot, name string, labels ...string) float64 {
	t.Helper()
	sample, ok := s.Lookup(name, labels...)
	if !ok {
		t.Fatalf("sample %s %v missing", name, labels)
	}
	return sample.Value
}

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > tolerance {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestMapConvertsUnits(t *testing.T) {
	s := New(FleetAPIUnits).Map(vehicle(), loadFixture(t), observed)

	assertNear(t, "battery range", value(t, s, "tesla_battery_range_km"), 200*1.609344)
	assertNear(t, "ideal range", value(t, s, "tesla_battery_ideal_range_km"), 210.5*1.609344)
	assertNear(t, "charge rate", value(t, s, "tesla_charge_rate_kmh"), 25*1.609344)
	assertNear(t, "speed", value(t, s, "tesla_speed_kmh"), 96.56064)
	assertNear(t, "odometer", value(t, s, "tesla_odometer_km"), 12345.6*1.609344)
	assertNear(t, "inside temperature", value(t, s, "tesla_inside_temperature_celsius"), 21.5)
	assertNear(t, "tire", value(t, s, "tesla_tpms_pressure_bar", "tire", "front_right"), 2.875)
	assertNear(t, "battery level", value(t, s, "tesla_battery_level_percent"), 80)
}

func TestMapConvertsImperialSources(t *testing.T) {
	units := Units{Distance: Kilometers, Temperature: Fahrenheit, Pressure: PSI}
	f := func(v float64) *float64 { return &v }
	data := &model.VehicleData{
		ClimateState: &model.ClimateState{InsideTemp: f(212), OutsideTemp: f(32)},
		VehicleState: &model.VehicleStatus{Odometer: f(100), TPMSFrontLeft: f(42)},
	}

	s := New(units).Map(vehicle(), data, observed)
	assertNear(t, "212F", value(t, s, "tesla_inside_temperature_celsius"), 100)
	assertNear(t, "32F", value(t, s, "tesla_outside_temperature_celsius"), 0)
	assertNear(t, "odometer km", value(t, s, "tesla_odometer_km"), 100)
	assertNear(t, "42 psi", value(t, s, "tesla_tpms_pressure_bar", "tire", "front_left"), 42*0.0689475729316836)

	kpa := Units{Pressure: KPa}
	assertNear(t, "290 kPa", kpa.Bar(290), 2.9)
}

func TestMapEnumerations(t *testing.T) {
	data := loadFixture(t)
	s := New(FleetAPIUnits).Map(vehicle(), data, observed)

	for _, state := range ChargingStates {
		want := 0.0
		if state == "Charging" {
			want = 1
		}
		assertNear(t, "charging "+state, value(t, s, "tesla_charging_state", "state", state), want)
	}
	assertNear(t, "charging unknown", value(t, s, "tesla_charging_state", "state", "unknown"), 0)
	assertNear(t, "shift D", value(t, s, "tesla_shift_state", "state", "D"), 1)
	assertNear(t, "locked", value(t, s, "tesla_locked"), 1)
	assertNear(t, "driver rear door", value(t, s, "tesla_door_open", "door", "driver_rear"), 1)
	assertNear(t, "driver front door", value(t, s, "tesla_door_open", "door", "driver_front"), 0)
	assertNear(t, "charge port", value(t, s, "tesla_charge_port_door_open"), 1)
	assertNear(t, "version", value(t, s, "tesla_software_version_info", "version", "2024.26.7 8c1a5c2b1b"), 1)

	// A value added by a later API version falls back to unknown.
	future := "Preparing"
	data.ChargeState.ChargingState = &future
	s = New(FleetAPIUnits).Map(vehicle(), data, observed)
	assertNear(t, "charging unknown", value(t, s, "tesla_charging_state", "state", "unknown"), 1)
	assertNear(t, "charging Charging", value(t, s, "tesla_charging_state", "state", "Charging"), 0)
}

func TestMapWithoutLocation(t *testing.T) {
	data := loadFixture(t)
	data.DriveState.Latitude = nil
	data.DriveState.Longitude = nil

	s := New(FleetAPIUnits).Map(vehicle(), data, observed)
	for _, name := range []string{"tesla_latitude", "tesla_longitude"} {
		if s.Has(name) {
			t.Errorf("%s present without location data", name)
		}
	}
	for _, name := range []string{"tesla_heading_degrees", "tesla_speed_kmh", "tesla_battery_level_percent", "tesla_odometer_km", "tesla_inside_temperature_celsius"} {
		if !s.Has(name) {
			t.Errorf("%s missing", name)
		}
	}

	health := MapHealth(model.Health{VehicleName: "Roadrunner", Up: true, Reachable: true, Authenticated: true, State: model.StateOnline, LastSuccess: observed})
	hs := &model.Snapshot{Samples: health}
	assertNear(t, "up", value(t, hs, "tesla_exporter_up"), 1)
	assertNear(t, "reachable", value(t, hs, "tesla_exporter_vehicle_reachable"), 1)
	assertNear(t, "authenticated", value(t, hs, "tesla_exporter_authenticated"), 1)
}

func TestMapRouteLocationFallback(t *testing.T) {
	lat, lon := 48.1, 11.5
	data := &model.VehicleData{DriveState: &model.DriveState{ActiveRouteLatitude: &lat, ActiveRouteLongitude: &lon}}

	s := New(FleetAPIUnits).Map(vehicle(), data, observed)
	assertNear(t, "latitude", value(t, s, "tesla_latitude"), 48.1)
	assertNear(t, "longitude", value(t, s, "tesla_longitude"), 11.5)
}

func TestMapOmitsNullsButKeepsZero(t *testing.T) {
	var data model.VehicleData
	payload := `{"charge_state":{"battery_level":0,"charger_power":null},"drive_state":{"speed":null,"shift_state":null,"heading":0}}`
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		t.Fatal(err)
	}

	s := New(FleetAPIUnits).Map(vehicle(), &data, observed)
	assertNear(t, "battery level", value(t, s, "tesla_battery_level_percent"), 0)
	assertNear(t, "heading", value(t, s, "tesla_heading_degrees"), 0)
	for _, name := range []string{"tesla_charger_power_kw", "tesla_speed_kmh", "tesla_shift_state", "tesla_charging_state", "tesla_inside_temperature_celsius"} {
		if s.Has(name) {
			t.Errorf("%s present for a null or absent field", name)
		}
	}
}

func TestMapLabelsAndOrder(t *testing.T) {
	s := New(FleetAPIUnits).Map(model.Vehicle{VIN: "VIN1"}, loadFixture(t), observed)
	if s.ObservedAt != observed {
		t.Errorf("ObservedAt = %v", s.ObservedAt)
	}
	for i, sample := range s.Samples {
		if len(sample.Labels) == 0 || sample.Labels[0] != (model.Label{Name: "vehicle_name", Value: "VIN1"}) {
			t.Fatalf("sample %s labels = %v", sample.Name, sample.Labels)
		}
		if i > 0 && s.Samples[i-1].Key() > sample.Key() {
			t.Fatalf("samples not sorted at %d", i)
		}
	}

	if got := New(FleetAPIUnits).Map(vehicle(), nil, observed); len(got.Samples) != 0 {
		t.Errorf("Map(nil) produced %d samples", len(got.Samples))
	}
}

func TestMapHealth(t *testing.T) {
	samples := MapHealth(model.Health{
		VehicleName:         "Roadrunner",
		Up:                  false,
		Authenticated:       false,
		State:               model.StateAsleep,
		Errors:              map[string]uint64{"auth_revoked": 3, "legacy": 1},
		ConsecutiveFailures: 3,
		NextDelay:           20 * time.Minute,
	})
	s := &model.Snapshot{Samples: samples}

	if s.Has("tesla_exporter_last_successful_poll_timestamp_seconds") {
		t.Errorf("last success exported before any success")
	}
	assertNear(t, "up", value(t, s, "tesla_exporter_up"), 0)
	assertNear(t, "authenticated", value(t, s, "tesla_exporter_authenticated"), 0)
	assertNear(t, "revoked", value(t, s, "tesla_exporter_poll_errors_total", "error_type", "auth_revoked"), 3)
	assertNear(t, "timeout", value(t, s, "tesla_exporter_poll_errors_total", "error_type", "timeout"), 0)
	assertNear(t, "legacy", value(t, s, "tesla_exporter_poll_errors_total", "error_type", "legacy"), 1)
	assertNear(t, "failures", value(t, s, "tesla_exporter_consecutive_failures"), 3)
	assertNear(t, "delay", value(t, s, "tesla_exporter_next_poll_delay_seconds"), 1200)
	assertNear(t, "asleep", value(t, s, "tesla_vehicle_state", "state", "asleep"), 1)
	assertNear(t, "online", value(t, s, "tesla_vehicle_state", "state", "online"), 0)
	assertNear(t, "mapping", value(t, s, "tesla_exporter_mapping_info", "version", MappingVersion), 1)

	sample, _ := s.Lookup("tesla_exporter_poll_errors_total")
	if sample.Type != model.Counter {
		t.Errorf("poll errors type = %v, want counter", sample.Type)
	}
}
