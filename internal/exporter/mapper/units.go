package mapper

// Conversion factors. They are exact by definition.
const (
	KilometersPerMile = 1.609344
	BarPerPSI         = 0.0689475729316836
	BarPerKPa         = 0.01
)

type DistanceUnit int

const (
	Miles DistanceUnit = iota
	Kilometers
)

type TemperatureUnit int

const (
	Celsius TemperatureUnit = iota
	Fahrenheit
)

type PressureUnit int

const (
	Bar PressureUnit = iota
	PSI
	KPa
)

// Units describes the unit system of a payload. Distances also govern speeds and
// charge rates, which are per hour.
type Units struct {
	Distance    DistanceUnit
	Temperature TemperatureUnit
	Pressure    PressureUnit
}

// FleetAPIUnits is what the Fleet API reports regardless of the in-car display settings.
var FleetAPIUnits = Units{Distance: Miles, Temperature: Celsius, Pressure: Bar}

// Km converts a distance to kilometers.
func (u Units) Km(v float64) float64 {
	if u.Distance == Miles {
		return v * KilometersPerMile
	}
	return v
}

// Celsius converts a temperature to degrees Celsius.
func (u Units) Celsius(v float64) float64 {
	if u.Temperature == Fahrenheit {
		return (v - 32) * 5 / 9
	}
	return v
}

// Bar converts a pressure to bar.
func (u Units) Bar(v float64) float64 {
	switch u.Pressure {
	case PSI:
		return v * BarPerPSI
	case KPa:
		return v * BarPerKPa
	default:
		return v
	}
}
