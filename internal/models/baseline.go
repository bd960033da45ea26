package models

import "time"

// Baseline is the running per-(user, parameter, activity tier) statistics
// used for personalized anomaly thresholds. The repository is the sole
// persistence authority; detectors never cache it across calls.
type Baseline struct {
	UserID        string    `json:"user_id" db:"user_id"`
	Parameter     string    `json:"parameter" db:"parameter"`
	ActivityLevel string    `json:"activity_level" db:"activity_level"`
	Mean          float64   `json:"mean" db:"mean_value"`
	StdDev        float64   `json:"std_dev" db:"std_deviation"`
	SampleCount   int       `json:"count" db:"sample_count"`
	LastUpdated   time.Time `json:"last_updated" db:"last_updated"`
}

// Usable reports whether the baseline can support a z-score: at least
// minSamples observations and nonzero spread.
func (b *Baseline) Usable(minSamples int) bool {
	return b.SampleCount >= minSamples && b.StdDev > 0
}

// BaselineStats is the per-user learning statistics returned by the
// observability endpoint: per activity level, per parameter summaries.
type BaselineStats struct {
	UserID         string                        `json:"user_id"`
	ActivityLevels map[string]*ActivityLevelStat `json:"activity_levels"`
}

// ActivityLevelStat groups parameter baselines under one activity level.
type ActivityLevelStat struct {
	Parameters   map[string]ParameterStat `json:"parameters"`
	TotalSamples int                      `json:"total_samples"`
}

// ParameterStat is the rounded view of one baseline.
type ParameterStat struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}
