package trends

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/logger"
)

// fakeSource serves canned bucket rows keyed by (parameter, bucket width)
// and can fail selected pairs.
type fakeSource struct {
	mu     sync.Mutex
	rows   map[string][]models.TrendPoint
	fail   map[string]bool
	since  map[string]time.Time
}

func pairKey(param string, bucket time.Duration) string {
	return param + "|" + bucket.String()
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		rows:  make(map[string][]models.TrendPoint),
		fail:  make(map[string]bool),
		since: make(map[string]time.Time),
	}
}

func (f *fakeSource) FetchBucketedSeries(_ context.Context, param string, bucket time.Duration, since time.Time) ([]models.TrendPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey(param, bucket)
	f.since[key] = since
	if f.fail[key] {
		return nil, errors.New("query failed")
	}
	return f.rows[key], nil
}

func TestAnalyzeGridShape(t *testing.T) {
	src := newFakeSource()
	agg := NewAggregator(src, logger.StdLogger())

	result, err := agg.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(result) != 5 {
		t.Fatalf("Expected 5 windows, got %d", len(result))
	}
	for _, name := range Windows() {
		params, ok := result[name]
		if !ok {
			t.Fatalf("Missing window %s", name)
		}
		if len(params) != len(models.TrendParameters) {
			t.Errorf("Window %s has %d parameters, want %d", name, len(params), len(models.TrendParameters))
		}
		for param, series := range params {
			if series.Times == nil || series.Values == nil {
				t.Errorf("%s/%s: expected empty arrays, got nil slices", name, param)
			}
			if len(series.Times) != len(series.Values) {
				t.Errorf("%s/%s: times and values lengths differ", name, param)
			}
		}
	}
}

func TestAnalyzeFormatsAndRounds(t *testing.T) {
	src := newFakeSource()
	base := time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)
	src.rows[pairKey(models.ParamHeartRate, 5*time.Second)] = []models.TrendPoint{
		{BucketTime: base, AvgValue: 71.666666},
		{BucketTime: base.Add(5 * time.Second), AvgValue: 72.5},
	}
	src.rows[pairKey(models.ParamHeartRate, time.Hour)] = []models.TrendPoint{
		{BucketTime: base, AvgValue: 70.125},
	}
	src.rows[pairKey(models.ParamHeartRate, 24*time.Hour)] = []models.TrendPoint{
		{BucketTime: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), AvgValue: 69},
	}

	agg := NewAggregator(src, logger.StdLogger())
	result, err := agg.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	oneMin := result["1min"][models.ParamHeartRate]
	if len(oneMin.Times) != 2 {
		t.Fatalf("1min: expected 2 buckets, got %d", len(oneMin.Times))
	}
	if oneMin.Times[0] != "09:26:00" || oneMin.Times[1] != "09:26:05" {
		t.Errorf("1min labels = %v, want second-resolution clock labels", oneMin.Times)
	}
	if oneMin.Values[0] != 71.67 || oneMin.Values[1] != 72.5 {
		t.Errorf("1min values = %v, want rounded [71.67 72.5]", oneMin.Values)
	}

	oneDay := result["1day"][models.ParamHeartRate]
	if len(oneDay.Times) != 1 || oneDay.Times[0] != "09:26" {
		t.Errorf("1day labels = %v, want [09:26]", oneDay.Times)
	}

	sevenDay := result["7day"][models.ParamHeartRate]
	if len(sevenDay.Times) != 1 || sevenDay.Times[0] != "03-08" {
		t.Errorf("7day labels = %v, want [03-08]", sevenDay.Times)
	}
}

func TestAnalyzeLookbackWindows(t *testing.T) {
	src := newFakeSource()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	agg := NewAggregator(src, logger.StdLogger())
	agg.now = func() time.Time { return now }

	if _, err := agg.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	cases := []struct {
		bucket   time.Duration
		lookback time.Duration
	}{
		{5 * time.Second, time.Minute},
		{time.Minute, 30 * time.Minute},
		{5 * time.Minute, time.Hour},
		{time.Hour, 24 * time.Hour},
		{24 * time.Hour, 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		got := src.since[pairKey(models.ParamHeartRate, tc.bucket)]
		want := now.Add(-tc.lookback)
		if !got.Equal(want) {
			t.Errorf("Bucket %v: since = %v, want %v", tc.bucket, got, want)
		}
	}
}

func TestAnalyzePairFailureIsolated(t *testing.T) {
	src := newFakeSource()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	src.fail[pairKey(models.ParamHeartRate, 5*time.Second)] = true
	src.rows[pairKey(models.ParamTemperature, 5*time.Second)] = []models.TrendPoint{
		{BucketTime: base, AvgValue: 36.8},
	}
	src.rows[pairKey(models.ParamHeartRate, time.Minute)] = []models.TrendPoint{
		{BucketTime: base, AvgValue: 72},
	}

	agg := NewAggregator(src, logger.StdLogger())
	result, err := agg.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	failed := result["1min"][models.ParamHeartRate]
	if len(failed.Times) != 0 || len(failed.Values) != 0 {
		t.Errorf("Failed pair should be empty, got %+v", failed)
	}
	if failed.Times == nil || failed.Values == nil {
		t.Error("Failed pair should serialize as empty arrays, not null")
	}

	if got := result["1min"][models.ParamTemperature]; len(got.Values) != 1 || got.Values[0] != 36.8 {
		t.Errorf("Sibling parameter disturbed by failure: %+v", got)
	}
	if got := result["30min"][models.ParamHeartRate]; len(got.Values) != 1 || got.Values[0] != 72 {
		t.Errorf("Sibling window disturbed by failure: %+v", got)
	}
}
