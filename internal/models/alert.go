package models

import "time"

// Alert types, one per threshold rule.
const (
	AlertTemperatureHigh = "temperature_high"
	AlertTemperatureLow  = "temperature_low"
	AlertPulseHigh       = "pulse_high"
	AlertPulseLow        = "pulse_low"
	AlertHeartRateHigh   = "heart_rate_high"
	AlertSpO2Low         = "spo2_low"
	AlertBatteryLow      = "battery_low"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert records one threshold rule firing on one Reading. It is created
// during ingestion and mutated only by acknowledgment.
type Alert struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	ReadingID      int64      `json:"reading_id"`
	AlertType      string     `json:"alert_type"`
	Severity       string     `json:"severity"`
	Message        string     `json:"message"`
	Value          float64    `json:"value"`
	Threshold      float64    `json:"threshold"`
	CreatedAt      time.Time  `json:"created_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}
