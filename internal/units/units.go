// Package units provides speed unit constants and conversion for reported
// ball speeds. The pipeline computes speeds in m/s; display units are a
// caller preference.
package units

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, v := range ValidUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// ValidUnitsString returns a comma-separated list of valid units for error
// messages.
func ValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a ball speed from meters per second to the target
// units. Unknown units fall back to m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694
	case KMPH, KPH:
		return speedMPS * 3.6
	case MPS:
		return speedMPS
	default:
		return speedMPS
	}
}
