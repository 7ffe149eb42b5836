package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"vitals-service/internal/models"
)

// SaveReading inserts a reading and its alerts in one transaction, so a
// retried submission can never observe the reading without its alerts.
// The reading UID is the idempotency key: if it was already stored, nothing
// new is persisted and the existing reading id is returned with
// duplicate=true. On success r.ID and the alerts' IDs are filled in.
func (d *DB) SaveReading(ctx context.Context, r *models.Reading, alerts []models.Alert) (bool, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	var id int64
	err = tx.QueryRow(ctx, `
	INSERT INTO medical_data (
		reading_uid, user_id, device_id, body_temperature, pulse_rate, heart_rate,
		spo2, battery_level, signal_strength, is_offline_data, recorded_at, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11, $12
	)
	ON CONFLICT (reading_uid) DO NOTHING
	RETURNING id`,
		r.ReadingUID,
		r.UserID,
		r.DeviceID,
		r.BodyTemperature,
		r.PulseRate,
		r.HeartRate,
		r.SpO2,
		r.BatteryLevel,
		r.SignalStrength,
		r.IsOfflineData,
		r.RecordedAt,
		now,
	).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		// UID already stored; ack with the original id.
		if err := d.Pool.QueryRow(ctx,
			`SELECT id FROM medical_data WHERE reading_uid = $1`, r.ReadingUID).Scan(&r.ID); err != nil {
			return false, fmt.Errorf("failed to resolve duplicate reading: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert reading: %w", err)
	}
	r.ID = id
	r.CreatedAt = now

	for i := range alerts {
		alerts[i].ReadingID = id
		alerts[i].CreatedAt = now
		err := tx.QueryRow(ctx, `
		INSERT INTO alerts (
			user_id, medical_data_id, alert_type, severity, message, value, threshold,
			created_at, acknowledged
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
		RETURNING id`,
			alerts[i].UserID,
			id,
			alerts[i].AlertType,
			alerts[i].Severity,
			alerts[i].Message,
			alerts[i].Value,
			alerts[i].Threshold,
			now,
		).Scan(&alerts[i].ID)
		if err != nil {
			return false, fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit reading: %w", err)
	}
	return false, nil
}

const readingColumns = `
	id, reading_uid, user_id, device_id, body_temperature, pulse_rate, heart_rate,
	spo2, battery_level, signal_strength, is_offline_data, recorded_at, created_at`

func scanReading(row pgx.Row) (models.Reading, error) {
	var r models.Reading
	err := row.Scan(
		&r.ID,
		&r.ReadingUID,
		&r.UserID,
		&r.DeviceID,
		&r.BodyTemperature,
		&r.PulseRate,
		&r.HeartRate,
		&r.SpO2,
		&r.BatteryLevel,
		&r.SignalStrength,
		&r.IsOfflineData,
		&r.RecordedAt,
		&r.CreatedAt,
	)
	return r, err
}

// GetLatestReading fetches the most recent reading for a user by recorded
// time.
func (d *DB) GetLatestReading(ctx context.Context, userID int64) (*models.Reading, error) {
	row := d.Pool.QueryRow(ctx,
		`SELECT `+readingColumns+` FROM medical_data WHERE user_id = $1
		 ORDER BY recorded_at DESC LIMIT 1`, userID)
	r, err := scanReading(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}
	return &r, nil
}

// GetReadingHistory fetches readings for a user within the last `days` days,
// newest first, with the total count for pagination.
func (d *DB) GetReadingHistory(ctx context.Context, userID int64, days, limit, offset int) ([]models.Reading, int, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	var total int
	if err := d.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_data WHERE user_id = $1 AND recorded_at >= $2`,
		userID, since).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count readings: %w", err)
	}

	rows, err := d.Pool.Query(ctx,
		`SELECT `+readingColumns+` FROM medical_data
		 WHERE user_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at DESC LIMIT $3 OFFSET $4`,
		userID, since, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get readings: %w", err)
	}
	defer rows.Close()

	var list []models.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan reading: %w", err)
		}
		list = append(list, r)
	}
	return list, total, rows.Err()
}
