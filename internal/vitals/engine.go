// Package vitals evaluates readings against the fixed clinical thresholds.
package vitals

import (
	"fmt"

	"vitals-service/internal/models"
)

// Clinical alert thresholds. These are medical convention, not tuning knobs,
// so they live here as constants rather than in config.
const (
	TempAlertHigh      = 100.4 // °F, fever
	TempAlertLow       = 96.0  // °F, hypothermia
	PulseAlertHigh     = 120   // bpm, tachycardia
	PulseAlertLow      = 50    // bpm, bradycardia
	HeartRateAlertHigh = 120   // bpm
	SpO2AlertLow       = 90.0  // %, hypoxia
	BatteryAlertLow    = 15.0  // %
)

// Evaluate checks a reading against every threshold rule and returns one
// alert candidate per rule that fires. Rules are independent: a single
// reading can produce zero to seven candidates. A nil vital skips its
// rules without error. The returned alerts carry no IDs; the store assigns
// them when the reading is persisted.
func Evaluate(r models.Reading) []models.Alert {
	var alerts []models.Alert

	if r.BodyTemperature != nil {
		t := *r.BodyTemperature
		if t >= TempAlertHigh {
			alerts = append(alerts, candidate(r, models.AlertTemperatureHigh, models.SeverityCritical,
				fmt.Sprintf("High body temperature detected: %.1f°F (Fever)", t), t, TempAlertHigh))
		}
		if t <= TempAlertLow {
			alerts = append(alerts, candidate(r, models.AlertTemperatureLow, models.SeverityWarning,
				fmt.Sprintf("Low body temperature detected: %.1f°F", t), t, TempAlertLow))
		}
	}

	if r.PulseRate != nil {
		p := *r.PulseRate
		if p >= PulseAlertHigh {
			alerts = append(alerts, candidate(r, models.AlertPulseHigh, models.SeverityWarning,
				fmt.Sprintf("High pulse rate detected: %d bpm (Tachycardia)", p), float64(p), PulseAlertHigh))
		}
		if p <= PulseAlertLow {
			alerts = append(alerts, candidate(r, models.AlertPulseLow, models.SeverityWarning,
				fmt.Sprintf("Low pulse rate detected: %d bpm (Bradycardia)", p), float64(p), PulseAlertLow))
		}
	}

	if r.HeartRate != nil && *r.HeartRate >= HeartRateAlertHigh {
		hr := *r.HeartRate
		alerts = append(alerts, candidate(r, models.AlertHeartRateHigh, models.SeverityWarning,
			fmt.Sprintf("High heart rate detected: %d bpm", hr), float64(hr), HeartRateAlertHigh))
	}

	if r.SpO2 != nil && *r.SpO2 < SpO2AlertLow {
		alerts = append(alerts, candidate(r, models.AlertSpO2Low, models.SeverityCritical,
			fmt.Sprintf("Low oxygen saturation: %.1f%% (Hypoxia)", *r.SpO2), *r.SpO2, SpO2AlertLow))
	}

	if r.BatteryLevel != nil && *r.BatteryLevel < BatteryAlertLow {
		alerts = append(alerts, candidate(r, models.AlertBatteryLow, models.SeverityInfo,
			fmt.Sprintf("Device battery low: %.0f%%", *r.BatteryLevel), *r.BatteryLevel, BatteryAlertLow))
	}

	return alerts
}

func candidate(r models.Reading, alertType, severity, message string, value, threshold float64) models.Alert {
	return models.Alert{
		UserID:    r.UserID,
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		Value:     value,
		Threshold: threshold,
	}
}
