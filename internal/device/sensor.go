package device

import (
	"math/rand"
	"time"
)

// Vitals is one acquisition from the sensor hardware. Channels the sensor
// could not read are nil, which the rest of the pipeline treats as missing,
// not zero.
type Vitals struct {
	BodyTemperature *float64
	PulseRate       *int
	HeartRate       *int
	SpO2            *float64
	BatteryLevel    *float64
	SignalStrength  *int
}

// SensorSource produces vitals samples. The agent takes it as an injected
// capability so tests can feed deterministic fixtures instead of hardware.
type SensorSource interface {
	Read() (Vitals, error)
}

// SimulatedSensor stands in for the real sensor board. It produces plausible
// values around healthy baselines with a slowly draining battery.
type SimulatedSensor struct {
	rng     *rand.Rand
	battery float64
}

func NewSimulatedSensor() *SimulatedSensor {
	return &SimulatedSensor{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		battery: 100,
	}
}

func (s *SimulatedSensor) Read() (Vitals, error) {
	temp := 97.5 + s.rng.Float64()*2.0
	pulse := 60 + s.rng.Intn(41)
	hr := pulse + s.rng.Intn(5) - 2
	spo2 := 95.0 + s.rng.Float64()*4.0
	signal := -40 - s.rng.Intn(50)

	s.battery -= 0.05
	if s.battery < 0 {
		s.battery = 0
	}
	battery := s.battery

	return Vitals{
		BodyTemperature: &temp,
		PulseRate:       &pulse,
		HeartRate:       &hr,
		SpO2:            &spo2,
		BatteryLevel:    &battery,
		SignalStrength:  &signal,
	}, nil
}
