package device

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"vitals-service/internal/config"
	"vitals-service/internal/ingest"
	"vitals-service/internal/logging"
	"vitals-service/internal/models"
)

type singleAck struct {
	Success bool          `json:"success"`
	Data    ingest.Result `json:"data"`
	Error   *wireError    `json:"error"`
}

type batchAck struct {
	Success bool               `json:"success"`
	Data    ingest.BatchResult `json:"data"`
	Error   *wireError         `json:"error"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Uploader sends readings to the ingestion service. Per-call deadlines come
// from the device config; there is no retry here, a failed send simply waits
// for the next tick.
type Uploader struct {
	client *resty.Client
	cfg    config.Device
	logger *logging.Logger
}

func NewUploader(cfg config.Device, logger *logging.Logger) *Uploader {
	client := resty.New().
		SetBaseURL(cfg.ServerURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Uploader{client: client, cfg: cfg, logger: logger}
}

// Ping probes the health endpoint to decide online/offline.
func (u *Uploader) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.SingleTimeout)
	defer cancel()

	resp, err := u.client.R().SetContext(ctx).Get("/health")
	return err == nil && resp.IsSuccess()
}

// SendSingle uploads one reading on the fast path. A non-success response of
// any kind is an error; the caller keeps the reading buffered.
func (u *Uploader) SendSingle(ctx context.Context, r models.Reading) error {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.SingleTimeout)
	defer cancel()

	body := ingest.ReadingSubmission{
		UserID:          r.UserID,
		DeviceID:        r.DeviceID,
		ReadingUID:      r.ReadingUID,
		BodyTemperature: r.BodyTemperature,
		PulseRate:       r.PulseRate,
		HeartRate:       r.HeartRate,
		SpO2:            r.SpO2,
		BatteryLevel:    r.BatteryLevel,
		SignalStrength:  r.SignalStrength,
		RecordedAt:      &r.RecordedAt,
	}

	var ack singleAck
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&ack).
		SetError(&ack).
		Post("/medical-data")
	if err != nil {
		return fmt.Errorf("single upload failed: %w", err)
	}
	if !resp.IsSuccess() || !ack.Success {
		if ack.Error != nil {
			return fmt.Errorf("single upload rejected: %s (%s)", ack.Error.Message, ack.Error.Code)
		}
		return fmt.Errorf("single upload rejected: status %d", resp.StatusCode())
	}
	return nil
}

// SendBatch uploads the given readings oldest-first. A transport failure or
// non-2xx status is an error and the whole batch waits for the next tick;
// otherwise the per-item verdicts are returned for reconciliation.
func (u *Uploader) SendBatch(ctx context.Context, readings []models.Reading) (*ingest.BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.BatchTimeout)
	defer cancel()

	items := make([]ingest.BatchItem, 0, len(readings))
	for i := range readings {
		r := readings[i]
		items = append(items, ingest.BatchItem{
			ReadingUID:      r.ReadingUID,
			BodyTemperature: r.BodyTemperature,
			PulseRate:       r.PulseRate,
			HeartRate:       r.HeartRate,
			SpO2:            r.SpO2,
			BatteryLevel:    r.BatteryLevel,
			SignalStrength:  r.SignalStrength,
			RecordedAt:      &r.RecordedAt,
		})
	}
	body := ingest.BatchSubmission{
		UserID:   u.cfg.UserID,
		DeviceID: u.cfg.DeviceID,
		Readings: items,
	}

	var ack batchAck
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&ack).
		SetError(&ack).
		Post("/medical-data/batch")
	if err != nil {
		return nil, fmt.Errorf("batch upload failed: %w", err)
	}
	if !resp.IsSuccess() || !ack.Success {
		if ack.Error != nil {
			return nil, fmt.Errorf("batch upload rejected: %s (%s)", ack.Error.Message, ack.Error.Code)
		}
		return nil, fmt.Errorf("batch upload rejected: status %d", resp.StatusCode())
	}
	return &ack.Data, nil
}
