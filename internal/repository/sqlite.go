package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/vitals"
)

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Bounded connection pool; acquisition blocks when exhausted. An
	// in-memory database exists per connection, so it must stay on one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Ping verifies the database connection
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations runs database migrations
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// VitalsRepository implementation

func (r *SQLiteRepository) InsertVitals(ctx context.Context, sample *models.VitalSample) error {
	query := `
		INSERT INTO vitals (timestamp, heart_rate, blood_pressure_systolic, blood_pressure_diastolic, temperature, oxygen_saturation, activity, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	return instrumentQueryContext(ctx, "insert_vitals", func() error {
		_, err := r.db.ExecContext(ctx, query,
			sample.Timestamp.UTC(),
			sample.HeartRate,
			sample.BPSystolic,
			sample.BPDiastolic,
			sample.Temperature,
			sample.OxygenSaturation,
			sample.Activity,
			sample.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert vitals: %w", err)
		}
		return nil
	})
}

// FetchBucketedSeries groups sample history into fixed-width time buckets
// aligned to the bucket width and averages per bucket, ascending. The
// parameter maps to a column name and must come from the tracked set.
func (r *SQLiteRepository) FetchBucketedSeries(ctx context.Context, parameter string, bucket time.Duration, since time.Time) ([]models.TrendPoint, error) {
	if err := validateTrendParameter(parameter); err != nil {
		return nil, err
	}
	seconds := int64(bucket / time.Second)
	if seconds <= 0 {
		return nil, fmt.Errorf("invalid bucket width %v", bucket)
	}

	query := fmt.Sprintf(`
		SELECT datetime((strftime('%%s', timestamp) / ?) * ?, 'unixepoch') AS bucket_time,
		       AVG(%s) AS avg_value
		FROM vitals
		WHERE %s IS NOT NULL AND timestamp >= ?
		GROUP BY bucket_time
		ORDER BY bucket_time
	`, parameter, parameter)

	var points []models.TrendPoint
	err := instrumentQueryContext(ctx, "fetch_bucketed_series", func() error {
		rows, err := r.db.QueryContext(ctx, query, seconds, seconds, since.UTC())
		if err != nil {
			return fmt.Errorf("failed to query bucketed series: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var bucketStr string
			var avg float64
			if err := rows.Scan(&bucketStr, &avg); err != nil {
				return fmt.Errorf("failed to scan bucket row: %w", err)
			}
			t, err := time.Parse("2006-01-02 15:04:05", bucketStr)
			if err != nil {
				return fmt.Errorf("failed to parse bucket time %q: %w", bucketStr, err)
			}
			points = append(points, models.TrendPoint{BucketTime: t, AvgValue: avg})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// AlertsRepository implementation

func (r *SQLiteRepository) InsertAlert(ctx context.Context, a *models.Anomaly) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := `
		INSERT INTO alerts (id, timestamp, parameter, value, severity, activity_level, normal_range_min, normal_range_max, deviation_percent, evidence, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return instrumentQueryContext(ctx, "insert_alert", func() error {
		_, err := r.db.ExecContext(ctx, query,
			a.ID,
			a.Timestamp.UTC(),
			a.Parameter,
			a.Value,
			a.Severity,
			a.ActivityLevel,
			a.NormalRange.Min,
			a.NormalRange.Max,
			a.DeviationPercent,
			a.Evidence,
			a.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) ListAlerts(ctx context.Context, userID string, limit int) ([]models.Anomaly, error) {
	query := `
		SELECT id, timestamp, parameter, value, severity, activity_level, normal_range_min, normal_range_max, deviation_percent, evidence, user_id
		FROM alerts
		WHERE (? = '' OR user_id = ?)
		ORDER BY timestamp DESC
		LIMIT ?
	`
	var alerts []models.Anomaly
	err := instrumentQueryContext(ctx, "list_alerts", func() error {
		rows, err := r.db.QueryContext(ctx, query, userID, userID, limit)
		if err != nil {
			return fmt.Errorf("failed to query alerts: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var a models.Anomaly
			if err := rows.Scan(
				&a.ID,
				&a.Timestamp,
				&a.Parameter,
				&a.Value,
				&a.Severity,
				&a.ActivityLevel,
				&a.NormalRange.Min,
				&a.NormalRange.Max,
				&a.DeviationPercent,
				&a.Evidence,
				&a.UserID,
			); err != nil {
				return fmt.Errorf("failed to scan alert: %w", err)
			}
			alerts = append(alerts, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// BaselineRepository implementation

func (r *SQLiteRepository) FetchBaselines(ctx context.Context, userID string, tier vitals.Tier) (map[string]models.Baseline, error) {
	query := `
		SELECT user_id, parameter, activity_level, mean_value, std_deviation, sample_count, last_updated
		FROM user_health_baselines
		WHERE user_id = ? AND activity_level = ?
	`
	out := make(map[string]models.Baseline)
	err := instrumentQueryContext(ctx, "fetch_baselines", func() error {
		var rows []models.Baseline
		if err := r.db.SelectContext(ctx, &rows, query, userID, string(tier)); err != nil {
			return fmt.Errorf("failed to fetch baselines: %w", err)
		}
		for _, b := range rows {
			out[b.Parameter] = b
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) FetchBaseline(ctx context.Context, userID, parameter string, tier vitals.Tier) (*models.Baseline, error) {
	query := `
		SELECT user_id, parameter, activity_level, mean_value, std_deviation, sample_count, last_updated
		FROM user_health_baselines
		WHERE user_id = ? AND parameter = ? AND activity_level = ?
	`
	var b models.Baseline
	err := instrumentQueryContext(ctx, "fetch_baseline", func() error {
		return r.db.GetContext(ctx, &b, query, userID, parameter, string(tier))
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch baseline: %w", err)
	}
	return &b, nil
}

func (r *SQLiteRepository) UpsertBaseline(ctx context.Context, b *models.Baseline) error {
	query := `
		INSERT INTO user_health_baselines (user_id, parameter, activity_level, mean_value, std_deviation, sample_count, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, parameter, activity_level) DO UPDATE SET
			mean_value = excluded.mean_value,
			std_deviation = excluded.std_deviation,
			sample_count = excluded.sample_count,
			last_updated = excluded.last_updated
	`
	return instrumentQueryContext(ctx, "upsert_baseline", func() error {
		_, err := r.db.ExecContext(ctx, query,
			b.UserID,
			b.Parameter,
			b.ActivityLevel,
			b.Mean,
			b.StdDev,
			b.SampleCount,
			b.LastUpdated.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert baseline: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) ListBaselines(ctx context.Context, userID string) ([]models.Baseline, error) {
	query := `
		SELECT user_id, parameter, activity_level, mean_value, std_deviation, sample_count, last_updated
		FROM user_health_baselines
		WHERE user_id = ?
		ORDER BY activity_level, parameter
	`
	var rows []models.Baseline
	err := instrumentQueryContext(ctx, "list_baselines", func() error {
		return r.db.SelectContext(ctx, &rows, query, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list baselines: %w", err)
	}
	return rows, nil
}

func (r *SQLiteRepository) DeleteBaselines(ctx context.Context, userID string) error {
	return instrumentQueryContext(ctx, "delete_baselines", func() error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM user_health_baselines WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("failed to delete baselines: %w", err)
		}
		return nil
	})
}

// ConfigRepository implementation

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := instrumentQueryContext(ctx, "get_config", func() error {
		return r.db.GetContext(ctx, &value, `SELECT value FROM system_config WHERE key = ?`, key)
	})
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	return instrumentQueryContext(ctx, "set_config", func() error {
		_, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to set config %s: %w", key, err)
		}
		return nil
	})
}

// validateTrendParameter rejects anything outside the tracked column set
// before it is interpolated into a query.
func validateTrendParameter(parameter string) error {
	for _, p := range models.TrendParameters {
		if p == parameter {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown trend parameter %q", models.ErrValidation, parameter)
}
