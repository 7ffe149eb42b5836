package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"vitals-service/internal/models"
)

const alertColumns = `
	id, user_id, medical_data_id, alert_type, severity, message, value, threshold,
	created_at, acknowledged, acknowledged_at`

func scanAlert(row pgx.Row) (models.Alert, error) {
	var a models.Alert
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ReadingID,
		&a.AlertType,
		&a.Severity,
		&a.Message,
		&a.Value,
		&a.Threshold,
		&a.CreatedAt,
		&a.Acknowledged,
		&a.AcknowledgedAt,
	)
	return a, err
}

// GetAlertsByUserID fetches alerts for a user, newest first. ackFilter is
// "all", "true" or "false".
func (d *DB) GetAlertsByUserID(ctx context.Context, userID int64, ackFilter string, limit int) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = $1`
	args := []interface{}{userID}

	if ackFilter != "all" {
		query += ` AND acknowledged = $2 ORDER BY created_at DESC LIMIT $3`
		args = append(args, ackFilter == "true", limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}
	defer rows.Close()

	var list []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// AcknowledgeAlert marks an alert acknowledged. Acknowledgment is monotone:
// a second call leaves the original acknowledged_at untouched. Returns a nil
// alert when the id does not exist.
func (d *DB) AcknowledgeAlert(ctx context.Context, alertID int64) (*models.Alert, error) {
	row := d.Pool.QueryRow(ctx, `
	UPDATE alerts
	SET acknowledged = true,
	    acknowledged_at = COALESCE(acknowledged_at, $2)
	WHERE id = $1
	RETURNING `+alertColumns,
		alertID, time.Now().UTC())

	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return &a, nil
}

// CountActiveAlerts returns the number of unacknowledged alerts, for the
// health endpoint.
func (d *DB) CountActiveAlerts(ctx context.Context) (int, error) {
	var n int
	if err := d.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE acknowledged = false`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active alerts: %w", err)
	}
	return n, nil
}
