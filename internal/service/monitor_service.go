package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vitalsentry/vitalsentry-backend/internal/detector"
	"github.com/vitalsentry/vitalsentry-backend/internal/ingest"
	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/trendcache"
	"github.com/vitalsentry/vitalsentry-backend/internal/repository"
	"github.com/vitalsentry/vitalsentry-backend/internal/trends"
)

const (
	defaultAlertLimit = 100
	maxAlertLimit     = 1000
)

// MonitorService is the application facade the control plane talks to. It
// owns the detector selection, the ingestion pipeline entry point and the
// trend aggregation cache.
type MonitorService interface {
	// ProcessSample runs the full ingestion path for one sample.
	ProcessSample(ctx context.Context, sample *models.VitalSample) ([]models.Anomaly, error)
	// SelectDetector switches the active strategy and subject, persisting
	// the selection.
	SelectDetector(ctx context.Context, kind, userID string) (models.DetectorSelection, error)
	// CurrentDetector returns the active selection.
	CurrentDetector() models.DetectorSelection
	// RestoreSelection reloads the persisted selection at startup.
	RestoreSelection(ctx context.Context) error
	// GetStatistics returns per-tier, per-parameter baseline statistics.
	GetStatistics(ctx context.Context, userID string) (*models.BaselineStats, error)
	// ResetBaselines deletes all baselines for a user. Idempotent.
	ResetBaselines(ctx context.Context, userID string) error
	// AnalyzeTrends returns the five-window trend map, cached briefly.
	AnalyzeTrends(ctx context.Context) (models.TrendMap, error)
	// AlertHistory returns the newest alerts, optionally filtered by user,
	// limit clamped to [1, 1000].
	AlertHistory(ctx context.Context, userID string, limit int) ([]models.Anomaly, error)
}

type monitorService struct {
	repo       repository.Repository
	pipeline   *ingest.Pipeline
	selector   *detector.Selector
	aggregator *trends.Aggregator
	cache      *trendcache.Cache
	pub        ingest.Publisher
	log        *slog.Logger
}

func NewMonitorService(
	repo repository.Repository,
	pipeline *ingest.Pipeline,
	selector *detector.Selector,
	aggregator *trends.Aggregator,
	cache *trendcache.Cache,
	pub ingest.Publisher,
	log *slog.Logger,
) MonitorService {
	return &monitorService{
		repo:       repo,
		pipeline:   pipeline,
		selector:   selector,
		aggregator: aggregator,
		cache:      cache,
		pub:        pub,
		log:        log,
	}
}

func (s *monitorService) ProcessSample(ctx context.Context, sample *models.VitalSample) ([]models.Anomaly, error) {
	anomalies, err := s.pipeline.ProcessSample(ctx, sample)
	if err == nil {
		// New data invalidates any cached aggregation.
		s.cache.Invalidate()
	}
	return anomalies, err
}

func (s *monitorService) SelectDetector(ctx context.Context, kind, userID string) (models.DetectorSelection, error) {
	payload, err := json.Marshal(map[string]string{
		"detector_type": kind,
		"user_id":       userID,
	})
	if err != nil {
		return models.DetectorSelection{}, fmt.Errorf("marshaling selection: %w", err)
	}
	if err := s.pipeline.ApplyConfigChange(ctx, payload); err != nil {
		return models.DetectorSelection{}, err
	}
	return s.selector.Current(), nil
}

func (s *monitorService) CurrentDetector() models.DetectorSelection {
	return s.selector.Current()
}

func (s *monitorService) RestoreSelection(ctx context.Context) error {
	kind, err := s.repo.GetConfig(ctx, repository.ConfigKeyDetectorType)
	if err != nil {
		return fmt.Errorf("reading persisted detector type: %w", err)
	}
	userID, err := s.repo.GetConfig(ctx, repository.ConfigKeyUserID)
	if err != nil {
		return fmt.Errorf("reading persisted user id: %w", err)
	}
	if kind == "" {
		return nil
	}
	if err := s.selector.Restore(kind, userID); err != nil {
		return err
	}
	s.log.Info("restored detector selection", "detector", kind, "user_id", userID)
	return nil
}

func (s *monitorService) GetStatistics(ctx context.Context, userID string) (*models.BaselineStats, error) {
	return s.selector.Baseline().GetStatistics(ctx, userID)
}

func (s *monitorService) ResetBaselines(ctx context.Context, userID string) error {
	return s.selector.Baseline().Reset(ctx, userID)
}

func (s *monitorService) AnalyzeTrends(ctx context.Context) (models.TrendMap, error) {
	if cached, ok := s.cache.Get(); ok {
		return cached, nil
	}
	result, err := s.aggregator.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(result)
	s.publishTrends(ctx, result)
	return result, nil
}

// publishTrends pushes a freshly computed trend map onto the bus so
// dashboard listeners get it without polling. Best effort.
func (s *monitorService) publishTrends(ctx context.Context, result models.TrendMap) {
	if s.pub == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.pub.Publish(ctx, ingest.TopicTrends, payload); err != nil {
		s.log.Warn("publishing trends failed", "error", err)
	}
}

func (s *monitorService) AlertHistory(ctx context.Context, userID string, limit int) ([]models.Anomaly, error) {
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}
	alerts, err := s.repo.ListAlerts(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing alerts: %v", models.ErrStorage, err)
	}
	if alerts == nil {
		alerts = []models.Anomaly{}
	}
	return alerts, nil
}
