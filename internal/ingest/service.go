// Package ingest turns validated reading submissions into persisted readings
// and alerts. It is the single entry point for both the HTTP API and the
// Kafka reading stream.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"vitals-service/internal/logging"
	"vitals-service/internal/models"
	"vitals-service/internal/vitals"
)

// MaxBatchSize caps readings in one batch upload.
const MaxBatchSize = 100

// ErrUserNotFound is returned when a submission references an unknown user.
var ErrUserNotFound = errors.New("user not found")

// Store persists readings with their alerts. SaveReading must be atomic: the
// reading and every alert become visible together or not at all. When the
// reading's UID was already stored, it reports duplicate=true, fills in the
// existing reading ID, and persists nothing new.
type Store interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	SaveReading(ctx context.Context, r *models.Reading, alerts []models.Alert) (duplicate bool, err error)
}

// AlertSink receives persisted alerts for delivery (notifier, websocket hub).
type AlertSink interface {
	Publish(alert models.Alert)
}

// ReadingSubmission is one reading as submitted by a device or gateway.
// ReadingUID is the client-generated idempotency key; when it is absent the
// server assigns one, which disables retransmit dedup for that client.
type ReadingSubmission struct {
	UserID          int64      `json:"user_id"`
	DeviceID        string     `json:"device_id"`
	ReadingUID      string     `json:"reading_uid"`
	BodyTemperature *float64   `json:"body_temperature"`
	PulseRate       *int       `json:"pulse_rate"`
	HeartRate       *int       `json:"heart_rate"`
	SpO2            *float64   `json:"spo2"`
	BatteryLevel    *float64   `json:"battery_level"`
	SignalStrength  *int       `json:"signal_strength"`
	RecordedAt      *time.Time `json:"recorded_at"`
}

// BatchItem is one reading inside a batch envelope.
type BatchItem struct {
	ReadingUID      string     `json:"reading_uid"`
	BodyTemperature *float64   `json:"body_temperature"`
	PulseRate       *int       `json:"pulse_rate"`
	HeartRate       *int       `json:"heart_rate"`
	SpO2            *float64   `json:"spo2"`
	BatteryLevel    *float64   `json:"battery_level"`
	SignalStrength  *int       `json:"signal_strength"`
	RecordedAt      *time.Time `json:"recorded_at"`
}

// BatchSubmission is the batch upload envelope.
type BatchSubmission struct {
	UserID   int64       `json:"user_id"`
	DeviceID string      `json:"device_id"`
	Readings []BatchItem `json:"readings"`
}

// Result reports a single accepted reading.
type Result struct {
	ReadingID       int64 `json:"reading_id"`
	AlertsTriggered int   `json:"alerts_triggered"`
	Duplicate       bool  `json:"duplicate,omitempty"`
}

// BatchItemResult reports the verdict for one batch item. Accepted and
// validation-rejected items are final; Retryable marks items that failed for
// server-internal reasons and may be resubmitted.
type BatchItemResult struct {
	Index           int    `json:"index"`
	Accepted        bool   `json:"accepted"`
	ReadingID       int64  `json:"reading_id,omitempty"`
	AlertsTriggered int    `json:"alerts_triggered"`
	Duplicate       bool   `json:"duplicate,omitempty"`
	Retryable       bool   `json:"retryable,omitempty"`
	Error           string `json:"error,omitempty"`
}

// BatchResult aggregates a batch upload.
type BatchResult struct {
	TotalReadings    int               `json:"total_readings"`
	SavedReadings    int               `json:"saved_readings"`
	RejectedReadings int               `json:"rejected_readings"`
	AlertsTriggered  int               `json:"alerts_triggered"`
	Items            []BatchItemResult `json:"items"`
}

// Service validates submissions, persists them and their alerts atomically,
// and hands persisted alerts to the sink.
type Service struct {
	store  Store
	sink   AlertSink
	logger *logging.Logger
}

// New constructs an ingest Service. sink may be nil.
func New(store Store, sink AlertSink, logger *logging.Logger) *Service {
	return &Service{store: store, sink: sink, logger: logger}
}

// SubmitSingle handles one reading. Nothing is persisted on validation
// failure; a duplicate UID acks with the original reading ID and zero alerts.
func (s *Service) SubmitSingle(ctx context.Context, sub ReadingSubmission) (Result, error) {
	if sub.UserID == 0 {
		return Result{}, &ValidationError{"user_id", "user_id is required"}
	}
	if sub.DeviceID == "" {
		return Result{}, &ValidationError{"device_id", "device_id is required"}
	}
	if verr := validateVitals(vitalsFields{
		sub.BodyTemperature, sub.PulseRate, sub.HeartRate,
		sub.SpO2, sub.BatteryLevel, sub.SignalStrength,
	}); verr != nil {
		return Result{}, verr
	}

	exists, err := s.store.UserExists(ctx, sub.UserID)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return Result{}, ErrUserNotFound
	}

	reading := buildReading(sub.UserID, sub.DeviceID, sub.ReadingUID, BatchItem{
		BodyTemperature: sub.BodyTemperature,
		PulseRate:       sub.PulseRate,
		HeartRate:       sub.HeartRate,
		SpO2:            sub.SpO2,
		BatteryLevel:    sub.BatteryLevel,
		SignalStrength:  sub.SignalStrength,
		RecordedAt:      sub.RecordedAt,
	}, false)

	alerts := vitals.Evaluate(reading)
	duplicate, err := s.store.SaveReading(ctx, &reading, alerts)
	if err != nil {
		return Result{}, err
	}
	if duplicate {
		s.logger.Infof("Duplicate reading %s from device %s acked with id %d",
			reading.ReadingUID, reading.DeviceID, reading.ID)
		return Result{ReadingID: reading.ID, Duplicate: true}, nil
	}

	s.publish(alerts)
	s.logger.Infof("Reading %d stored for user %d (%d alerts)", reading.ID, reading.UserID, len(alerts))
	return Result{ReadingID: reading.ID, AlertsTriggered: len(alerts)}, nil
}

// SubmitBatch handles a batch envelope. Each reading gets an independent
// verdict; a reading failing validation is rejected without aborting the
// rest. Item order in the result matches submission order.
func (s *Service) SubmitBatch(ctx context.Context, batch BatchSubmission) (BatchResult, error) {
	if batch.UserID == 0 {
		return BatchResult{}, &ValidationError{"user_id", "user_id is required"}
	}
	if batch.DeviceID == "" {
		return BatchResult{}, &ValidationError{"device_id", "device_id is required"}
	}
	if len(batch.Readings) == 0 {
		return BatchResult{}, &ValidationError{"readings", "no readings provided"}
	}
	if len(batch.Readings) > MaxBatchSize {
		return BatchResult{}, &ValidationError{"readings",
			fmt.Sprintf("batch size exceeds maximum of %d", MaxBatchSize)}
	}

	exists, err := s.store.UserExists(ctx, batch.UserID)
	if err != nil {
		return BatchResult{}, err
	}
	if !exists {
		return BatchResult{}, ErrUserNotFound
	}

	res := BatchResult{TotalReadings: len(batch.Readings)}
	for i, item := range batch.Readings {
		ir := BatchItemResult{Index: i}

		if verr := validateVitals(vitalsFields{
			item.BodyTemperature, item.PulseRate, item.HeartRate,
			item.SpO2, item.BatteryLevel, item.SignalStrength,
		}); verr != nil {
			ir.Error = verr.Error()
			res.RejectedReadings++
			res.Items = append(res.Items, ir)
			s.logger.Warnf("Batch reading %d from device %s rejected: %v", i, batch.DeviceID, verr)
			continue
		}

		reading := buildReading(batch.UserID, batch.DeviceID, item.ReadingUID, item, true)
		alerts := vitals.Evaluate(reading)

		duplicate, err := s.store.SaveReading(ctx, &reading, alerts)
		if err != nil {
			ir.Retryable = true
			ir.Error = "internal error"
			res.Items = append(res.Items, ir)
			s.logger.Errorf("Batch reading %d from device %s failed to persist: %v", i, batch.DeviceID, err)
			continue
		}

		ir.Accepted = true
		ir.ReadingID = reading.ID
		if duplicate {
			ir.Duplicate = true
		} else {
			ir.AlertsTriggered = len(alerts)
			res.AlertsTriggered += len(alerts)
			s.publish(alerts)
		}
		res.SavedReadings++
		res.Items = append(res.Items, ir)
	}

	s.logger.Infof("Batch upload from user %d: %d/%d readings saved, %d alerts triggered",
		batch.UserID, res.SavedReadings, res.TotalReadings, res.AlertsTriggered)
	return res, nil
}

func (s *Service) publish(alerts []models.Alert) {
	if s.sink == nil {
		return
	}
	for _, a := range alerts {
		s.sink.Publish(a)
	}
}

func buildReading(userID int64, deviceID, uid string, item BatchItem, offline bool) models.Reading {
	if uid == "" {
		uid = uuid.New().String()
	}
	recordedAt := time.Now().UTC()
	if item.RecordedAt != nil {
		recordedAt = item.RecordedAt.UTC()
	}
	return models.Reading{
		ReadingUID:      uid,
		UserID:          userID,
		DeviceID:        deviceID,
		BodyTemperature: item.BodyTemperature,
		PulseRate:       item.PulseRate,
		HeartRate:       item.HeartRate,
		SpO2:            item.SpO2,
		BatteryLevel:    item.BatteryLevel,
		SignalStrength:  item.SignalStrength,
		IsOfflineData:   offline,
		RecordedAt:      recordedAt,
	}
}
