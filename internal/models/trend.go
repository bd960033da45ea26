package models

import "time"

// TrendPoint is one bucket of a time-grouped aggregation: the bucket's start
// time and the average of all values that fell inside it.
type TrendPoint struct {
	BucketTime time.Time `db:"bucket_time" json:"bucket_time"`
	AvgValue   float64   `db:"avg_value" json:"avg_value"`
}

// TrendSeries is one bucketed time series: parallel arrays of formatted
// bucket labels and rounded averages, ascending in time. Empty arrays mean
// aggregation failed or no data fell inside the window.
type TrendSeries struct {
	Times  []string  `json:"times"`
	Values []float64 `json:"values"`
}

// TrendMap is the full aggregation result: window name -> parameter ->
// series. Window names and bucket widths are fixed (1min/30min/1h/1day/7day).
type TrendMap map[string]map[string]TrendSeries
