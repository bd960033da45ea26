package repository

import (
	"context"
	"time"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/vitals"
)

// VitalsRepository defines sample history data access methods
type VitalsRepository interface {
	InsertVitals(ctx context.Context, sample *models.VitalSample) error
	FetchBucketedSeries(ctx context.Context, parameter string, bucket time.Duration, since time.Time) ([]models.TrendPoint, error)
}

// AlertsRepository defines anomaly alert data access methods
type AlertsRepository interface {
	InsertAlert(ctx context.Context, a *models.Anomaly) error
	ListAlerts(ctx context.Context, userID string, limit int) ([]models.Anomaly, error)
}

// BaselineRepository defines per-user baseline data access methods. It is
// the sole persistence authority for baselines; detectors never cache rows
// across calls.
type BaselineRepository interface {
	FetchBaselines(ctx context.Context, userID string, tier vitals.Tier) (map[string]models.Baseline, error)
	FetchBaseline(ctx context.Context, userID, parameter string, tier vitals.Tier) (*models.Baseline, error)
	UpsertBaseline(ctx context.Context, b *models.Baseline) error
	ListBaselines(ctx context.Context, userID string) ([]models.Baseline, error)
	DeleteBaselines(ctx context.Context, userID string) error
}

// ConfigRepository defines persisted system configuration access methods
type ConfigRepository interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// Repository aggregates all repositories
type Repository interface {
	VitalsRepository
	AlertsRepository
	BaselineRepository
	ConfigRepository

	RunMigrations(migrationSQL string) error
	Ping(ctx context.Context) error
	Close() error
}

// Persisted config keys.
const (
	ConfigKeyDetectorType = "detector_type"
	ConfigKeyUserID       = "current_user_id"
)
