package models

import "time"

// Reading is one vital-sign sample from a device. Vitals are pointers because
// a device may submit any subset of channels; a missing channel is not zero.
type Reading struct {
	ID              int64     `json:"id"`
	ReadingUID      string    `json:"reading_uid"`
	UserID          int64     `json:"user_id"`
	DeviceID        string    `json:"device_id"`
	BodyTemperature *float64  `json:"body_temperature,omitempty"`
	PulseRate       *int      `json:"pulse_rate,omitempty"`
	HeartRate       *int      `json:"heart_rate,omitempty"`
	SpO2            *float64  `json:"spo2,omitempty"`
	BatteryLevel    *float64  `json:"battery_level,omitempty"`
	SignalStrength  *int      `json:"signal_strength,omitempty"`
	IsOfflineData   bool      `json:"is_offline_data"`
	RecordedAt      time.Time `json:"recorded_at"`
	CreatedAt       time.Time `json:"created_at"`
}
