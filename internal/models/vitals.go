package models

import (
	"fmt"
	"time"
)

// Tracked vital parameter names. These match the column names in the vitals
// table and the keys used on the telemetry wire format.
const (
	ParamHeartRate        = "heart_rate"
	ParamBPSystolic       = "blood_pressure_systolic"
	ParamBPDiastolic      = "blood_pressure_diastolic"
	ParamTemperature      = "temperature"
	ParamOxygenSaturation = "oxygen_saturation"
	ParamActivity         = "activity"
)

// VitalParameters lists the five measured vitals evaluated by the detectors,
// in stable order.
var VitalParameters = []string{
	ParamHeartRate,
	ParamBPSystolic,
	ParamBPDiastolic,
	ParamTemperature,
	ParamOxygenSaturation,
}

// TrendParameters is the set aggregated by the trend analyzer: the five
// vitals plus raw activity.
var TrendParameters = []string{
	ParamHeartRate,
	ParamBPSystolic,
	ParamBPDiastolic,
	ParamTemperature,
	ParamOxygenSaturation,
	ParamActivity,
}

// VitalSample is a single validated telemetry reading. A nil parameter
// pointer means the parameter was not measured this cycle. Immutable once
// constructed.
type VitalSample struct {
	Timestamp        time.Time `json:"timestamp" db:"timestamp"`
	Activity         int       `json:"activity" db:"activity"`
	HeartRate        *float64  `json:"heart_rate,omitempty" db:"heart_rate"`
	BPSystolic       *float64  `json:"blood_pressure_systolic,omitempty" db:"blood_pressure_systolic"`
	BPDiastolic      *float64  `json:"blood_pressure_diastolic,omitempty" db:"blood_pressure_diastolic"`
	Temperature      *float64  `json:"temperature,omitempty" db:"temperature"`
	OxygenSaturation *float64  `json:"oxygen_saturation,omitempty" db:"oxygen_saturation"`
	UserID           string    `json:"user_id" db:"user_id"`
}

// Value returns the reading for the named vital parameter, or nil if it was
// not measured. Unknown names return nil.
func (s *VitalSample) Value(param string) *float64 {
	switch param {
	case ParamHeartRate:
		return s.HeartRate
	case ParamBPSystolic:
		return s.BPSystolic
	case ParamBPDiastolic:
		return s.BPDiastolic
	case ParamTemperature:
		return s.Temperature
	case ParamOxygenSaturation:
		return s.OxygenSaturation
	}
	return nil
}

// Validate checks the required fields of an inbound sample. The ingest
// boundary calls this once; detector logic never re-validates.
func (s *VitalSample) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrValidation)
	}
	if s.Activity < 0 {
		return fmt.Errorf("%w: negative activity %d", ErrValidation, s.Activity)
	}
	if s.UserID == "" {
		return fmt.Errorf("%w: missing user_id", ErrValidation)
	}
	return nil
}
