// Package detector implements the two anomaly-detection strategies: fixed
// population reference ranges and the per-user adaptive baseline, plus the
// process-wide selector that chooses between them.
package detector

import (
	"context"
	"math"
	"time"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/vitals"
)

// Detector evaluates one validated sample and returns zero or more anomalies.
type Detector interface {
	Evaluate(ctx context.Context, sample *models.VitalSample) ([]models.Anomaly, error)
}

// BaselineStore is the persistence collaborator consumed by the adaptive
// detector. It is the sole persistence authority for baselines; the detector
// never caches rows across calls.
type BaselineStore interface {
	// FetchBaselines returns all baselines for (user, tier), keyed by parameter.
	FetchBaselines(ctx context.Context, userID string, tier vitals.Tier) (map[string]models.Baseline, error)
	// FetchBaseline returns one baseline row, or nil when absent. Used for the
	// fresh read inside the per-key critical section of the online update.
	FetchBaseline(ctx context.Context, userID, parameter string, tier vitals.Tier) (*models.Baseline, error)
	// UpsertBaseline replaces or inserts the baseline row.
	UpsertBaseline(ctx context.Context, b *models.Baseline) error
	// ListBaselines returns every baseline for the user, all tiers.
	ListBaselines(ctx context.Context, userID string) ([]models.Baseline, error)
	// DeleteBaselines removes all baseline rows for the user.
	DeleteBaselines(ctx context.Context, userID string) error
}

// Severity thresholds for range-based deviation percentages. Strict
// comparisons: exactly 15 stays low, exactly 30 stays medium.
const (
	deviationHighPct   = 30.0
	deviationMediumPct = 15.0
)

func severityForDeviation(deviation float64) string {
	switch {
	case deviation > deviationHighPct:
		return models.SeverityHigh
	case deviation > deviationMediumPct:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func float64Ptr(v float64) *float64 { return &v }
func stringPtr(s string) *string    { return &s }

// checkAgainstRange applies the population range rule to one value and
// returns an anomaly or nil. Shared by the range detector and the adaptive
// detector's fallback path.
//
// A zero-width range is a degenerate population interval: any value off the
// single point flags at maximum deviation, an exact match does not flag.
func checkAgainstRange(parameter string, value float64, r vitals.Range, tier vitals.Tier, ts time.Time) *models.Anomaly {
	if r.Contains(value) {
		return nil
	}

	var deviation float64
	if r.Width() == 0 {
		if value == r.Min {
			return nil
		}
		deviation = 100
	} else if value < r.Min {
		deviation = math.Abs(r.Min-value) / r.Width() * 100
	} else {
		deviation = math.Abs(value-r.Max) / r.Width() * 100
	}

	severity := severityForDeviation(deviation)
	if r.Width() == 0 {
		severity = models.SeverityHigh
	}

	return &models.Anomaly{
		Parameter: parameter,
		Value:     value,
		NormalRange: models.NormalRange{
			Min: float64Ptr(r.Min),
			Max: float64Ptr(r.Max),
		},
		ActivityLevel:    string(tier),
		DeviationPercent: float64Ptr(round2(deviation)),
		Severity:         severity,
		Timestamp:        ts,
	}
}

// anomalyTimestamp returns the sample timestamp, falling back to now when the
// sample carries none.
func anomalyTimestamp(sample *models.VitalSample) time.Time {
	if sample.Timestamp.IsZero() {
		return time.Now()
	}
	return sample.Timestamp
}
