package mapper

import (
	"time"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

// MappingVersion identifies the metric table below. Renaming a series or changing
// its unit requires a new version.
const MappingVersion = "v1"

// Enumerations exported as one-hot series. Values outside the list set "unknown".
var (
	ChargingStates = []string{"Charging", "Complete", "Disconnected", "Stopped", "NoPower", "Starting"}
	ShiftStates    = []string{"P", "D", "R", "N"}
)

const unknownValue = "unknown"

// Mapper converts vehicle payloads into snapshots. It is stateless and safe for
// concurrent use.
type Mapper struct {
	units Units
}

// New returns a Mapper for payloads reported in units.
func New(units Units) *Mapper {
	return &Mapper{units: units}
}

// Map converts data into a snapshot. Absent fields produce no sample.
func (m *Mapper) Map(v model.Vehicle, data *model.VehicleData, observedAt time.Time) *model.Snapshot {
	b := newBuilder(v.Name())

	if data != nil {
		m.chargeState(b, data.ChargeState)
		m.climateState(b, data.ClimateState)
		m.driveState(b, data.DriveState)
		m.vehicleState(b, data.VehicleState)
	}

	s := &model.Snapshot{ObservedAt: observedAt, Vehicle: v, Samples: b.samples}
	s.Sort()
	return s
}

func (m *Mapper) chargeState(b *builder, cs *model.ChargeState) {
	if cs == nil {
		return
	}
	b.gauge("tesla_battery_level_percent", "Battery level 0-100.", cs.BatteryLevel)
	b.gauge("tesla_battery_usable_level_percent", "Usable battery level 0-100.", cs.UsableBatteryLevel)
	b.gauge("tesla_battery_range_km", "Rated range in km.", convert(cs.BatteryRange, m.units.Km))
	b.gauge("tesla_battery_ideal_range_km", "Ideal range in km.", convert(cs.IdealBatteryRange, m.units.Km))
	b.gauge("tesla_battery_estimated_range_km", "Estimated range in km.", convert(cs.EstBatteryRange, m.units.Km))
	b.gauge("tesla_charge_limit_percent", "Charge limit state of charge.", cs.ChargeLimitSOC)
	b.gauge("tesla_charge_energy_added_kwh", "Energy added in the current session in kWh.", cs.ChargeEnergyAdded)
	b.gauge("tesla_charge_rate_kmh", "Charge rate in km of range per hour.", convert(cs.ChargeRate, m.units.Km))
	b.gauge("tesla_charger_power_kw", "Charger power in kW.", cs.ChargerPower)
	b.gauge("tesla_charger_voltage_volts", "Charger voltage.", cs.ChargerVoltage)
	b.gauge("tesla_charger_actual_current_amps", "Charger current in amps.", cs.ChargerActualCurrent)
	b.gauge("tesla_charge_time_remaining_hours", "Time to full charge in hours.", cs.TimeToFullCharge)
	b.flag("tesla_charge_port_door_open", "Charge port door open.", cs.ChargePortDoorOpen)
	b.flag("tesla_battery_heater_on", "Battery heater active.", cs.BatteryHeaterOn)
	b.flag("tesla_scheduled_charging_pending", "Scheduled charge pending.", cs.ScheduledChargingPending)
	b.oneHot("tesla_charging_state", "Charging state, 1 for the active state.", "state", ChargingStates, cs.ChargingState)
}

func (m *Mapper) climateState(b *builder, cl *model.ClimateState) {
	if cl == nil {
		return
	}
	b.gauge("tesla_inside_temperature_celsius", "Interior temperature.", convert(cl.InsideTemp, m.units.Celsius))
	b.gauge("tesla_outside_temperature_celsius", "Exterior temperature.", convert(cl.OutsideTemp, m.units.Celsius))
	b.gauge("tesla_driver_temperature_setting_celsius", "Driver temperature setting.", convert(cl.DriverTempSetting, m.units.Celsius))
	b.gauge("tesla_passenger_temperature_setting_celsius", "Passenger temperature setting.", convert(cl.PassengerTempSetting, m.units.Celsius))
	b.flag("tesla_climate_on", "HVAC on.", cl.IsClimateOn)
	b.flag("tesla_preconditioning", "Preconditioning active.", cl.IsPreconditioning)
	b.gauge("tesla_fan_status", "Fan speed level.", cl.FanStatus)
	b.gauge("tesla_defrost_mode", "Defrost mode.", cl.DefrostMode)

	const seatHelp = "Seat heater level."
	b.gauge("tesla_seat_heater_level", seatHelp, cl.SeatHeaterLeft, "seat", "front_left")
	b.gauge("tesla_seat_heater_level", seatHelp, cl.SeatHeaterRight, "seat", "front_right")
	b.gauge("tesla_seat_heater_level", seatHelp, cl.SeatHeaterRearLeft, "seat", "rear_left")
	b.gauge("tesla_seat_heater_level", seatHelp, cl.SeatHeaterRearCenter, "seat", "rear_center")
	b.gauge("tesla_seat_heater_level", seatHelp, cl.SeatHeaterRearRight, "seat", "rear_right")
}

func (m *Mapper) driveState(b *builder, ds *model.DriveState) {
	if ds == nil {
		return
	}
	b.gauge("tesla_latitude", "GPS latitude.", firstOf(ds.Latitude, ds.ActiveRouteLatitude))
	b.gauge("tesla_longitude", "GPS longitude.", firstOf(ds.Longitude, ds.ActiveRouteLongitude))
	b.gauge("tesla_heading_degrees", "Heading 0-360.", ds.Heading)
	b.gauge("tesla_speed_kmh", "Speed in km/h.", convert(ds.Speed, m.units.Km))
	b.gauge("tesla_power_watts", "Drive power draw.", ds.Power)
	b.oneHot("tesla_shift_state", "Shift state, 1 for the active state.", "state", ShiftStates, ds.ShiftState)
}

func (m *Mapper) vehicleState(b *builder, vs *model.VehicleStatus) {
	if vs == nil {
		return
	}
	b.gauge("tesla_odometer_km", "Odometer reading in km.", convert(vs.Odometer, m.units.Km))
	b.flag("tesla_locked", "Vehicle locked.", vs.Locked)
	b.flag("tesla_sentry_mode", "Sentry mode active.", vs.SentryMode)
	b.flag("tesla_valet_mode", "Valet mode active.", vs.ValetMode)
	b.flag("tesla_user_present", "User present in vehicle.", vs.IsUserPresent)
	b.flag("tesla_remote_start", "Remote start active.", vs.RemoteStart)
	b.gauge("tesla_center_display_state", "Center display state.", vs.CenterDisplayState)

	const doorHelp = "Door open (1=open, 0=closed)."
	b.flag("tesla_door_open", doorHelp, nonZero(vs.DriverFront), "door", "driver_front")
	b.flag("tesla_door_open", doorHelp, nonZero(vs.DriverRear), "door", "driver_rear")
	b.flag("tesla_door_open", doorHelp, nonZero(vs.PassengerFront), "door", "passenger_front")
	b.flag("tesla_door_open", doorHelp, nonZero(vs.PassengerRear), "door", "passenger_rear")

	const trunkHelp = "Trunk open (1=open, 0=closed)."
	b.flag("tesla_trunk_open", trunkHelp, nonZero(vs.FrontTrunk), "trunk", "front")
	b.flag("tesla_trunk_open", trunkHelp, nonZero(vs.RearTrunk), "trunk", "rear")

	const tireHelp = "Tire pressure in bar."
	b.gauge("tesla_tpms_pressure_bar", tireHelp, convert(vs.TPMSFrontLeft, m.units.Bar), "tire", "front_left")
	b.gauge("tesla_tpms_pressure_bar", tireHelp, convert(vs.TPMSFrontRight, m.units.Bar), "tire", "front_right")
	b.gauge("tesla_tpms_pressure_bar", tireHelp, convert(vs.TPMSRearLeft, m.units.Bar), "tire", "rear_left")
	b.gauge("tesla_tpms_pressure_bar", tireHelp, convert(vs.TPMSRearRight, m.units.Bar), "tire", "rear_right")

	if vs.CarVersion != nil && *vs.CarVersion != "" {
		b.info("tesla_software_version_info", "Software version, always 1 with the version in a label.", "version", *vs.CarVersion)
	}
}

func convert(v *float64, fn func(float64) float64) *float64 {
	if v == nil {
		return nil
	}
	out := fn(*v)
	return &out
}

func firstOf(vs ...*float64) *float64 {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func nonZero(v *float64) *bool {
	if v == nil {
		return nil
	}
	open := *v != 0
	return &open
}
