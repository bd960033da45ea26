package models

import "time"

// Anomaly severity levels.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// NormalRange is the applicable normal interval for an anomaly. Bounds may be
// population-fixed or baseline-derived; either may be absent.
type NormalRange struct {
	Min *float64 `json:"min" db:"normal_range_min"`
	Max *float64 `json:"max" db:"normal_range_max"`
}

// Anomaly is one out-of-range finding for a single (sample, parameter) pair.
// Never mutated after creation.
type Anomaly struct {
	ID               string      `json:"id,omitempty" db:"id"`
	Parameter        string      `json:"parameter" db:"parameter"`
	Value            float64     `json:"value" db:"value"`
	NormalRange      NormalRange `json:"normal_range"`
	ActivityLevel    string      `json:"activity_level" db:"activity_level"`
	DeviationPercent *float64    `json:"deviation_percent,omitempty" db:"deviation_percent"`
	Severity         string      `json:"severity" db:"severity"`
	Timestamp        time.Time   `json:"timestamp" db:"timestamp"`
	Evidence         *string     `json:"evidence,omitempty" db:"evidence"`
	UserID           string      `json:"user_id,omitempty" db:"user_id"`
}
