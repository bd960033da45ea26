package detector

import (
	"context"
	"log/slog"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/vitals"
)

// RangeDetector is the stateless population-range strategy: every measured
// vital is compared against the reference interval for the sample's activity
// tier.
type RangeDetector struct {
	log *slog.Logger
}

// NewRangeDetector creates a range-based detector.
func NewRangeDetector(log *slog.Logger) *RangeDetector {
	return &RangeDetector{log: log}
}

// Evaluate checks each measured parameter against its population range. A
// missing (parameter, tier) range skips that parameter only; it never aborts
// the whole evaluation.
func (d *RangeDetector) Evaluate(_ context.Context, sample *models.VitalSample) ([]models.Anomaly, error) {
	tier := vitals.ClassifyActivity(sample.Activity)
	ts := anomalyTimestamp(sample)

	var anomalies []models.Anomaly
	for _, param := range models.VitalParameters {
		value := sample.Value(param)
		if value == nil {
			continue
		}

		r, err := vitals.NormalRange(param, tier)
		if err != nil {
			d.log.Warn("no reference range, skipping parameter",
				"parameter", param, "activity_level", tier)
			continue
		}

		if a := checkAgainstRange(param, *value, r, tier, ts); a != nil {
			a.UserID = sample.UserID
			anomalies = append(anomalies, *a)
		}
	}

	return anomalies, nil
}
