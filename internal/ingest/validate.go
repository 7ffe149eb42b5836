package ingest

import "fmt"

// Physically plausible ranges for submitted vitals. Values outside these are
// rejected, never clamped; a missing vital is accepted as missing.
const (
	BodyTempMin  = 95.0
	BodyTempMax  = 107.0
	PulseMin     = 40
	PulseMax     = 200
	HeartRateMin = 40
	HeartRateMax = 200
	SpO2Min      = 70.0
	SpO2Max      = 100.0
	BatteryMin   = 0.0
	BatteryMax   = 100.0
)

// ValidationError describes a rejected submission field. Handlers map it to a
// 400 response; the device treats it as a permanent verdict, not a retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type vitalsFields struct {
	BodyTemperature *float64
	PulseRate       *int
	HeartRate       *int
	SpO2            *float64
	BatteryLevel    *float64
	SignalStrength  *int
}

func validateVitals(v vitalsFields) *ValidationError {
	if v.BodyTemperature != nil {
		if t := *v.BodyTemperature; t < BodyTempMin || t > BodyTempMax {
			return &ValidationError{"body_temperature",
				fmt.Sprintf("temperature %.1f°F out of valid range (%.1f-%.1f)", t, BodyTempMin, BodyTempMax)}
		}
	}
	if v.PulseRate != nil {
		if p := *v.PulseRate; p < PulseMin || p > PulseMax {
			return &ValidationError{"pulse_rate",
				fmt.Sprintf("pulse %d bpm out of valid range (%d-%d)", p, PulseMin, PulseMax)}
		}
	}
	if v.HeartRate != nil {
		if hr := *v.HeartRate; hr < HeartRateMin || hr > HeartRateMax {
			return &ValidationError{"heart_rate",
				fmt.Sprintf("heart rate %d bpm out of valid range (%d-%d)", hr, HeartRateMin, HeartRateMax)}
		}
	}
	if v.SpO2 != nil {
		if s := *v.SpO2; s < SpO2Min || s > SpO2Max {
			return &ValidationError{"spo2",
				fmt.Sprintf("SpO2 %.1f%% out of valid range (%.1f-%.1f)", s, SpO2Min, SpO2Max)}
		}
	}
	if v.BatteryLevel != nil {
		if b := *v.BatteryLevel; b < BatteryMin || b > BatteryMax {
			return &ValidationError{"battery_level", "battery level must be 0-100%"}
		}
	}
	if v.SignalStrength != nil && *v.SignalStrength > 0 {
		// dBm is non-positive; 0 means disconnected.
		return &ValidationError{"signal_strength", "signal strength must be 0 or negative dBm"}
	}
	return nil
}
