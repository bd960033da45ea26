package vitals

import (
	"fmt"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
)

// Range is a closed [Min, Max] population reference interval.
type Range struct {
	Min float64
	Max float64
}

// Width returns Max - Min.
func (r Range) Width() float64 { return r.Max - r.Min }

// Contains reports whether v lies inside the closed interval.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// normalRanges holds the population reference values per activity tier.
var normalRanges = map[Tier]map[string]Range{
	TierLow: {
		models.ParamHeartRate:        {60, 80},
		models.ParamBPSystolic:       {110, 120},
		models.ParamBPDiastolic:      {70, 80},
		models.ParamTemperature:      {36.1, 37.2},
		models.ParamOxygenSaturation: {95, 100},
	},
	TierMedium: {
		models.ParamHeartRate:        {80, 100},
		models.ParamBPSystolic:       {120, 140},
		models.ParamBPDiastolic:      {80, 90},
		models.ParamTemperature:      {36.5, 37.5},
		models.ParamOxygenSaturation: {94, 99},
	},
	TierHigh: {
		models.ParamHeartRate:        {100, 160},
		models.ParamBPSystolic:       {140, 160},
		models.ParamBPDiastolic:      {90, 100},
		models.ParamTemperature:      {37.0, 38.0},
		models.ParamOxygenSaturation: {92, 98},
	},
}

// NormalRange looks up the reference interval for a (parameter, tier) pair.
// A miss is non-fatal for the caller: the parameter is skipped and evaluation
// continues with the rest of the sample.
func NormalRange(parameter string, tier Tier) (Range, error) {
	byParam, ok := normalRanges[tier]
	if !ok {
		return Range{}, fmt.Errorf("%w: no ranges for activity level %q", models.ErrLookupMiss, tier)
	}
	r, ok := byParam[parameter]
	if !ok {
		return Range{}, fmt.Errorf("%w: no range for %q at activity level %q", models.ErrLookupMiss, parameter, tier)
	}
	return r, nil
}
