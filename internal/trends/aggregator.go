package trends

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
)

// SeriesSource supplies pre-bucketed averages from sample history. Rows come
// back in ascending bucket order, one row per bucket that holds at least one
// non-null value for the parameter.
type SeriesSource interface {
	FetchBucketedSeries(ctx context.Context, parameter string, bucket time.Duration, since time.Time) ([]models.TrendPoint, error)
}

// window is one fixed aggregation resolution. The set is not configurable at
// runtime; dashboards key off the window names and label formats.
type window struct {
	name     string
	bucket   time.Duration
	lookback time.Duration
	format   string
}

var windows = []window{
	{name: "1min", bucket: 5 * time.Second, lookback: time.Minute, format: "15:04:05"},
	{name: "30min", bucket: time.Minute, lookback: 30 * time.Minute, format: "15:04:05"},
	{name: "1h", bucket: 5 * time.Minute, lookback: time.Hour, format: "15:04:05"},
	{name: "1day", bucket: time.Hour, lookback: 24 * time.Hour, format: "15:04"},
	{name: "7day", bucket: 24 * time.Hour, lookback: 7 * 24 * time.Hour, format: "01-02"},
}

const maxConcurrentPairs = 8

// Aggregator fans the (parameter, window) grid out over a SeriesSource and
// assembles the full trend map.
type Aggregator struct {
	source SeriesSource
	log    *slog.Logger
	now    func() time.Time
}

func NewAggregator(source SeriesSource, log *slog.Logger) *Aggregator {
	return &Aggregator{source: source, log: log, now: time.Now}
}

// Windows returns the fixed window names in resolution order.
func Windows() []string {
	names := make([]string, len(windows))
	for i, w := range windows {
		names[i] = w.name
	}
	return names
}

// Analyze aggregates every tracked parameter across every window. A failure
// on one (parameter, window) pair leaves an empty series for that pair and
// does not disturb the rest of the grid.
func (a *Aggregator) Analyze(ctx context.Context) (models.TrendMap, error) {
	now := a.now()

	result := make(models.TrendMap, len(windows))
	for _, w := range windows {
		result[w.name] = make(map[string]models.TrendSeries, len(models.TrendParameters))
	}

	var (
		mu     sync.Mutex
		tokens = make(chan struct{}, maxConcurrentPairs)
	)
	for i := 0; i < maxConcurrentPairs; i++ {
		tokens <- struct{}{}
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, w := range windows {
		for _, param := range models.TrendParameters {
			w, param := w, param
			g.Go(func() error {
				<-tokens
				defer func() { tokens <- struct{}{} }()

				series := a.aggregatePair(gCtx, param, w, now)
				mu.Lock()
				result[w.name][param] = series
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// aggregatePair fetches and formats one series. Errors degrade to an empty
// series; the grid as a whole never fails on a single pair.
func (a *Aggregator) aggregatePair(ctx context.Context, param string, w window, now time.Time) models.TrendSeries {
	since := now.Add(-w.lookback)

	points, err := a.source.FetchBucketedSeries(ctx, param, w.bucket, since)
	if err != nil {
		a.log.Warn("trend aggregation failed for pair",
			"parameter", param, "window", w.name, "error", err)
		return emptySeries()
	}

	series := models.TrendSeries{
		Times:  make([]string, 0, len(points)),
		Values: make([]float64, 0, len(points)),
	}
	for _, p := range points {
		series.Times = append(series.Times, p.BucketTime.Format(w.format))
		series.Values = append(series.Values, round2(p.AvgValue))
	}
	return series
}

func emptySeries() models.TrendSeries {
	return models.TrendSeries{Times: []string{}, Values: []float64{}}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
