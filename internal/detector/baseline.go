package detector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/metrics"
	"github.com/vitalsentry/vitalsentry-backend/internal/vitals"
)

// Adaptive baseline defaults.
const (
	DefaultMinSamples = 5
	DefaultZThreshold = 2.5
)

// Z-score severity cut points.
const (
	zHigh   = 4.0
	zMedium = 3.0
)

// BaselineDetector is the per-user adaptive strategy: each vital is compared
// against the user's own running (mean, stddev) for the current activity
// tier, falling back to population ranges until a usable baseline exists.
// After evaluation it feeds every non-anomalous measured parameter back into
// the baseline via a Welford-style online update.
type BaselineDetector struct {
	store      BaselineStore
	minSamples int
	zThreshold float64
	log        *slog.Logger

	mu     sync.RWMutex
	userID string

	updateLocks *keyLock
}

// NewBaselineDetector creates an adaptive detector backed by the given store.
// Zero minSamples/zThreshold select the defaults.
func NewBaselineDetector(store BaselineStore, minSamples int, zThreshold float64, log *slog.Logger) *BaselineDetector {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	if zThreshold <= 0 {
		zThreshold = DefaultZThreshold
	}
	return &BaselineDetector{
		store:       store,
		minSamples:  minSamples,
		zThreshold:  zThreshold,
		log:         log,
		userID:      "default",
		updateLocks: newKeyLock(),
	}
}

// SetUserID sets the subject the detector evaluates against when a sample
// carries no user id of its own. Called by the selector under its own lock.
func (d *BaselineDetector) SetUserID(userID string) {
	d.mu.Lock()
	d.userID = userID
	d.mu.Unlock()
}

// CurrentUserID returns the active subject id.
func (d *BaselineDetector) CurrentUserID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.userID
}

// Evaluate runs the adaptive strategy over one sample, then updates the
// baselines of every measured parameter that was not flagged anomalous.
// Anomalous parameters are excluded from learning so the baseline cannot
// drift toward observed outliers.
//
// A storage failure during the batch read aborts the evaluation. A failure
// during the update phase is returned alongside any anomalies already
// computed; the sample counts as unprocessed for baseline-update purposes.
func (d *BaselineDetector) Evaluate(ctx context.Context, sample *models.VitalSample) ([]models.Anomaly, error) {
	userID := sample.UserID
	if userID == "" {
		userID = d.CurrentUserID()
	}
	tier := vitals.ClassifyActivity(sample.Activity)
	ts := anomalyTimestamp(sample)

	baselines, err := d.store.FetchBaselines(ctx, userID, tier)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching baselines for %s/%s: %v", models.ErrStorage, userID, tier, err)
	}

	var anomalies []models.Anomaly
	anomalous := make(map[string]bool)

	for _, param := range models.VitalParameters {
		value := sample.Value(param)
		if value == nil {
			continue
		}

		b, ok := baselines[param]
		switch {
		case ok && b.StdDev == 0:
			// A zero-variance baseline cannot support a z-score, and an
			// existing baseline rules out the population range check too.
			continue

		case ok && b.Usable(d.minSamples):
			if a := d.checkAgainstBaseline(param, *value, &b, tier, ts); a != nil {
				a.UserID = userID
				anomalies = append(anomalies, *a)
				anomalous[param] = true
			}

		default:
			// No baseline yet, or too few samples: population fallback.
			r, err := vitals.NormalRange(param, tier)
			if err != nil {
				d.log.Warn("no reference range for fallback, skipping parameter",
					"parameter", param, "activity_level", tier)
				continue
			}
			if a := checkAgainstRange(param, *value, r, tier, ts); a != nil {
				a.UserID = userID
				a.Evidence = stringPtr("population baseline (insufficient user data)")
				anomalies = append(anomalies, *a)
				anomalous[param] = true
			}
		}
	}

	if err := d.updateBaselines(ctx, userID, tier, sample, anomalous); err != nil {
		return anomalies, err
	}

	return anomalies, nil
}

// checkAgainstBaseline applies the z-score rule to one value.
func (d *BaselineDetector) checkAgainstBaseline(param string, value float64, b *models.Baseline, tier vitals.Tier, ts time.Time) *models.Anomaly {
	z := math.Abs(value-b.Mean) / b.StdDev
	if z <= d.zThreshold {
		return nil
	}

	var severity string
	switch {
	case z > zHigh:
		severity = models.SeverityHigh
	case z > zMedium:
		severity = models.SeverityMedium
	default:
		severity = models.SeverityLow
	}

	// Deviation normalized so three sigma reads as 100%.
	deviation := round2(z * 100 / 3)
	evidence := fmt.Sprintf("Z-score: %.2f, user baseline: %.2f ± %.2f", z, b.Mean, b.StdDev)

	return &models.Anomaly{
		Parameter: param,
		Value:     value,
		NormalRange: models.NormalRange{
			Min: float64Ptr(round2(b.Mean - 2*b.StdDev)),
			Max: float64Ptr(round2(b.Mean + 2*b.StdDev)),
		},
		ActivityLevel:    string(tier),
		DeviationPercent: float64Ptr(deviation),
		Severity:         severity,
		Timestamp:        ts,
		Evidence:         stringPtr(evidence),
	}
}

// updateBaselines runs the online update for every measured parameter that
// was not anomalous this cycle. Each key's read-then-write is serialized so
// concurrent samples for the same subject cannot lose an update.
func (d *BaselineDetector) updateBaselines(ctx context.Context, userID string, tier vitals.Tier, sample *models.VitalSample, anomalous map[string]bool) error {
	for _, param := range models.VitalParameters {
		if anomalous[param] {
			continue
		}
		value := sample.Value(param)
		if value == nil {
			continue
		}

		if err := d.updateOne(ctx, userID, param, tier, *value); err != nil {
			return fmt.Errorf("%w: updating baseline %s/%s/%s: %v", models.ErrStorage, userID, param, tier, err)
		}
		metrics.BaselineUpdatesTotal.Inc()
	}
	return nil
}

// updateOne applies Welford's single-pass recurrence to a persisted running
// state. The variance accumulator is reconstructed each call as
// (count-1)*stddev^2 rather than held in memory, so the stream survives
// process restarts without replaying history.
func (d *BaselineDetector) updateOne(ctx context.Context, userID, param string, tier vitals.Tier, value float64) error {
	key := userID + "|" + param + "|" + string(tier)
	d.updateLocks.Lock(key)
	defer d.updateLocks.Unlock(key)

	existing, err := d.store.FetchBaseline(ctx, userID, param, tier)
	if err != nil {
		return err
	}

	var mean, stdDev float64
	var count int
	if existing != nil {
		mean, stdDev, count = existing.Mean, existing.StdDev, existing.SampleCount
	}

	newCount := count + 1
	newMean := mean + (value-mean)/float64(newCount)

	var newStdDev float64
	switch {
	case count == 0:
		newStdDev = 0
	case count == 1:
		m2 := (value - mean) * (value - mean)
		newStdDev = math.Sqrt(m2)
	default:
		delta := value - mean
		delta2 := value - newMean
		m2 := float64(count-1)*stdDev*stdDev + delta*delta2
		newStdDev = math.Sqrt(m2 / float64(count))
	}

	return d.store.UpsertBaseline(ctx, &models.Baseline{
		UserID:        userID,
		Parameter:     param,
		ActivityLevel: string(tier),
		Mean:          newMean,
		StdDev:        newStdDev,
		SampleCount:   newCount,
		LastUpdated:   time.Now(),
	})
}

// GetStatistics returns the per-tier, per-parameter learning statistics for
// the user.
func (d *BaselineDetector) GetStatistics(ctx context.Context, userID string) (*models.BaselineStats, error) {
	if userID == "" {
		userID = d.CurrentUserID()
	}

	rows, err := d.store.ListBaselines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing baselines for %s: %v", models.ErrStorage, userID, err)
	}

	stats := &models.BaselineStats{
		UserID:         userID,
		ActivityLevels: make(map[string]*models.ActivityLevelStat),
	}
	for _, b := range rows {
		level, ok := stats.ActivityLevels[b.ActivityLevel]
		if !ok {
			level = &models.ActivityLevelStat{Parameters: make(map[string]models.ParameterStat)}
			stats.ActivityLevels[b.ActivityLevel] = level
		}
		level.Parameters[b.Parameter] = models.ParameterStat{
			Mean:   round2(b.Mean),
			StdDev: round2(b.StdDev),
			Count:  b.SampleCount,
		}
		level.TotalSamples += b.SampleCount
	}

	return stats, nil
}

// Reset deletes all baseline rows for the user, re-seeding learning from
// scratch. Safe to call repeatedly.
func (d *BaselineDetector) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		userID = d.CurrentUserID()
	}
	if err := d.store.DeleteBaselines(ctx, userID); err != nil {
		return fmt.Errorf("%w: resetting baselines for %s: %v", models.ErrStorage, userID, err)
	}
	return nil
}
