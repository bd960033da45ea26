package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/vitals"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(connectionString string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping verifies the database connection
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations runs database migrations
func (r *PostgresRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// VitalsRepository implementation

func (r *PostgresRepository) InsertVitals(ctx context.Context, sample *models.VitalSample) error {
	query := `
		INSERT INTO vitals (timestamp, heart_rate, blood_pressure_systolic, blood_pressure_diastolic, temperature, oxygen_saturation, activity, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
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

func (r *PostgresRepository) FetchBucketedSeries(ctx context.Context, parameter string, bucket time.Duration, since time.Time) ([]models.TrendPoint, error) {
	if err := validateTrendParameter(parameter); err != nil {
		return nil, err
	}
	seconds := int64(bucket / time.Second)
	if seconds <= 0 {
		return nil, fmt.Errorf("invalid bucket width %v", bucket)
	}

	query := fmt.Sprintf(`
		SELECT to_timestamp(floor(extract(epoch FROM timestamp) / $1) * $1) AS bucket_time,
		       AVG(%s) AS avg_value
		FROM vitals
		WHERE %s IS NOT NULL AND timestamp >= $2
		GROUP BY bucket_time
		ORDER BY bucket_time
	`, parameter, parameter)

	var points []models.TrendPoint
	err := instrumentQueryContext(ctx, "fetch_bucketed_series", func() error {
		rows, err := r.db.QueryContext(ctx, query, seconds, since.UTC())
		if err != nil {
			return fmt.Errorf("failed to query bucketed series: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p models.TrendPoint
			if err := rows.Scan(&p.BucketTime, &p.AvgValue); err != nil {
				return fmt.Errorf("failed to scan bucket row: %w", err)
			}
			p.BucketTime = p.BucketTime.UTC()
			points = append(points, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// AlertsRepository implementation

func (r *PostgresRepository) InsertAlert(ctx context.Context, a *models.Anomaly) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := `
		INSERT INTO alerts (id, timestamp, parameter, value, severity, activity_level, normal_range_min, normal_range_max, deviation_percent, evidence, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
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

func (r *PostgresRepository) ListAlerts(ctx context.Context, userID string, limit int) ([]models.Anomaly, error) {
	query := `
		SELECT id, timestamp, parameter, value, severity, activity_level, normal_range_min, normal_range_max, deviation_percent, evidence, user_id
		FROM alerts
		WHERE ($1 = '' OR user_id = $1)
		ORDER BY timestamp DESC
		LIMIT $2
	`
	var alerts []models.Anomaly
	err := instrumentQueryContext(ctx, "list_alerts", func() error {
		rows, err := r.db.QueryContext(ctx, query, userID, limit)
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

func (r *PostgresRepository) FetchBaselines(ctx context.Context, userID string, tier vitals.Tier) (map[string]models.Baseline, error) {
	query := `
		SELECT user_id, parameter, activity_level, mean_value, std_deviation, sample_count, last_updated
		FROM user_health_baselines
		WHERE user_id = $1 AND activity_level = $2
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

func (r *PostgresRepository) FetchBaseline(ctx context.Context, userID, parameter string, tier vitals.Tier) (*models.Baseline, error) {
	query := `
		SELECT user_id, parameter, activity_level, mean_value, std_deviation, sample_count, last_updated
		FROM user_health_baselines
		WHERE user_id = $1 AND parameter = $2 AND activity_level = $3
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

func (r *PostgresRepository) UpsertBaseline(ctx context.Context, b *models.Baseline) error {
	query := `
		INSERT INTO user_health_baselines (user_id, parameter, activity_level, mean_value, std_deviation, sample_count, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, parameter, activity_level) DO UPDATE SET
			mean_value = EXCLUDED.mean_value,
			std_deviation = EXCLUDED.std_deviation,
			sample_count = EXCLUDED.sample_count,
			last_updated = EXCLUDED.last_updated
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

func (r *PostgresRepository) ListBaselines(ctx context.Context, userID string) ([]models.Baseline, error) {
	query := `
		SELECT user_id, parameter, activity_level, mean_value, std_deviation, sample_count, last_updated
		FROM user_health_baselines
		WHERE user_id = $1
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

func (r *PostgresRepository) DeleteBaselines(ctx context.Context, userID string) error {
	return instrumentQueryContext(ctx, "delete_baselines", func() error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM user_health_baselines WHERE user_id = $1`, userID)
		if err != nil {
			return fmt.Errorf("failed to delete baselines: %w", err)
		}
		return nil
	})
}

// ConfigRepository implementation

func (r *PostgresRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := instrumentQueryContext(ctx, "get_config", func() error {
		return r.db.GetContext(ctx, &value, `SELECT value FROM system_config WHERE key = $1`, key)
	})
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return value, nil
}

func (r *PostgresRepository) SetConfig(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_config (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	return instrumentQueryContext(ctx, "set_config", func() error {
		_, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to set config %s: %w", key, err)
		}
		return nil
	})
}
