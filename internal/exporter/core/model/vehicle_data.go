package model

// VehicleData is the decoded vehicle_data response. Every leaf is a pointer: a nil
// field was absent, null or of an unexpected type in the payload and must not be read
// as zero.
type VehicleData struct {
	ID          int64   `json:"id"`
	VIN         string  `json:"vin"`
	DisplayName string  `json:"display_name"`
	State       *string `json:"state"`

	ChargeState  *ChargeState   `json:"charge_state"`
	ClimateState *ClimateState  `json:"climate_state"`
	DriveState   *DriveState    `json:"drive_state"`
	VehicleState *VehicleStatus `json:"vehicle_state"`

	invalid []string
}

type ChargeState struct {
	BatteryLevel             *float64 `json:"battery_level"`
	UsableBatteryLevel       *float64 `json:"usable_battery_level"`
	BatteryRange             *float64 `json:"battery_range"`
	IdealBatteryRange        *float64 `json:"ideal_battery_range"`
	EstBatteryRange          *float64 `json:"est_battery_range"`
	ChargeLimitSOC           *float64 `json:"charge_limit_soc"`
	ChargeEnergyAdded        *float64 `json:"charge_energy_added"`
	ChargeRate               *float64 `json:"charge_rate"`
	ChargerPower             *float64 `json:"charger_power"`
	ChargerVoltage           *float64 `json:"charger_voltage"`
	ChargerActualCurrent     *float64 `json:"charger_actual_current"`
	TimeToFullCharge         *float64 `json:"time_to_full_charge"`
	ChargePortDoorOpen       *bool    `json:"charge_port_door_open"`
	BatteryHeaterOn          *bool    `json:"battery_heater_on"`
	ScheduledChargingPending *bool    `json:"scheduled_charging_pending"`
	ChargingState            *string  `json:"charging_state"`

	invalid []string
}

type ClimateState struct {
	InsideTemp           *float64 `json:"inside_temp"`
	OutsideTemp          *float64 `json:"outside_temp"`
	DriverTempSetting    *float64 `json:"driver_temp_setting"`
	PassengerTempSetting *float64 `json:"passenger_temp_setting"`
	IsClimateOn          *bool    `json:"is_climate_on"`
	IsPreconditioning    *bool    `json:"is_preconditioning"`
	FanStatus            *float64 `json:"fan_status"`
	DefrostMode          *float64 `json:"defrost_mode"`
	SeatHeaterLeft       *float64 `json:"seat_heater_left"`
	SeatHeaterRight      *float64 `json:"seat_heater_right"`
	SeatHeaterRearLeft   *float64 `json:"seat_heater_rear_left"`
	SeatHeaterRearCenter *float64 `json:"seat_heater_rear_center"`
	SeatHeaterRearRight  *float64 `json:"seat_heater_rear_right"`

	invalid []string
}

type DriveState struct {
	Latitude             *float64 `json:"latitude"`
	Longitude            *float64 `json:"longitude"`
	ActiveRouteLatitude  *float64 `json:"active_route_latitude"`
	ActiveRouteLongitude *float64 `json:"active_route_longitude"`
	Heading              *float64 `json:"heading"`
	Speed                *float64 `json:"speed"`
	Power                *float64 `json:"power"`
	ShiftState           *string  `json:"shift_state"`

	invalid []string
}

// VehicleStatus is the vehicle_state section of the payload.
type VehicleStatus struct {
	Odometer           *float64 `json:"odometer"`
	Locked             *bool    `json:"locked"`
	SentryMode         *bool    `json:"sentry_mode"`
	ValetMode          *bool    `json:"valet_mode"`
	IsUserPresent      *bool    `json:"is_user_present"`
	RemoteStart        *bool    `json:"remote_start"`
	CenterDisplayState *float64 `json:"center_display_state"`

	DriverFront    *float64 `json:"df"`
	DriverRear     *float64 `json:"dr"`
	PassengerFront *float64 `json:"pf"`
	PassengerRear  *float64 `json:"pr"`
	FrontTrunk     *float64 `json:"ft"`
	RearTrunk      *float64 `json:"rt"`

	TPMSFrontLeft  *float64 `json:"tpms_pressure_fl"`
	TPMSFrontRight *float64 `json:"tpms_pressure_fr"`
	TPMSRearLeft   *float64 `json:"tpms_pressure_rl"`
	TPMSRearRight  *float64 `json:"tpms_pressure_rr"`

	CarVersion *string `json:"car_version"`

	invalid []string
}

// InvalidFields names the fields that were present but could not be decoded, e.g.
// "vehicle_state.center_display_state".
func (d *VehicleData) InvalidFields() []string {
	return d.invalid
}

func (d *VehicleData) UnmarshalJSON(data []byte) (err error) {
	type plain VehicleData
	d.invalid, err = decodeFields(data, (*plain)(d))
	return err
}

func (c *ChargeState) invalidFields() []string   { return c.invalid }
func (c *ClimateState) invalidFields() []string  { return c.invalid }
func (d *DriveState) invalidFields() []string    { return d.invalid }
func (v *VehicleStatus) invalidFields() []string { return v.invalid }

func (c *ChargeState) UnmarshalJSON(data []byte) (err error) {
	type plain ChargeState
	c.invalid, err = decodeFields(data, (*plain)(c))
	return err
}

func (c *ClimateState) UnmarshalJSON(data []byte) (err error) {
	type plain ClimateState
	c.invalid, err = decodeFields(data, (*plain)(c))
	return err
}

func (d *DriveState) UnmarshalJSON(data []byte) (err error) {
	type plain DriveState
	d.invalid, err = decodeFields(data, (*plain)(d))
	return err
}

func (v *VehicleStatus) UnmarshalJSON(data []byte) (err error) {
	type plain VehicleStatus
	v.invalid, err = decodeFields(data, (*plain)(v))
	return err
}
