package device

import (
	"context"
	"time"

	"github.com/google/uuid"
	"vitals-service/internal/config"
	"vitals-service/internal/ingest"
	"vitals-service/internal/logging"
	"vitals-service/internal/models"
)

// maxBatchesPerDrain bounds one drain tick so a large backlog cannot
// monopolize the loop; the remainder waits for the next tick.
const maxBatchesPerDrain = 3

// Agent is the device's single cooperative loop. Sampling, connectivity
// checks, and batch draining run on independent interval timers polled from
// one loop iteration, so no state here needs locking. A blocked network call
// delays later timer checks; intervals are lower bounds, not guarantees.
type Agent struct {
	cfg    config.Device
	buf    *Buffer
	up     *Uploader
	sensor SensorSource
	logger *logging.Logger

	online        bool
	lastSample    time.Time
	lastConnCheck time.Time
	lastDrain     time.Time
	rejected      uint64
}

func NewAgent(cfg config.Device, sensor SensorSource, up *Uploader, logger *logging.Logger) *Agent {
	return &Agent{
		cfg:    cfg,
		buf:    NewBuffer(cfg.MaxBufferSize, logger),
		up:     up,
		sensor: sensor,
		logger: logger,
	}
}

// Buffer exposes the agent's buffer for inspection.
func (a *Agent) Buffer() *Buffer { return a.buf }

// Online reports the last observed connectivity state.
func (a *Agent) Online() bool { return a.online }

// Run drives the loop until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) {
	a.logger.Infof("Device agent started: device=%s user=%d buffer=%d batch=%d",
		a.cfg.DeviceID, a.cfg.UserID, a.cfg.MaxBufferSize, a.cfg.BatchSendSize)

	a.CheckConnectivity(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Infof("Device agent stopped: %d readings buffered, %d dropped, %d rejected",
				a.buf.Len(), a.buf.Dropped(), a.rejected)
			return
		case now := <-ticker.C:
			if now.Sub(a.lastConnCheck) >= a.cfg.WifiRetryInterval {
				a.CheckConnectivity(ctx)
			}
			if now.Sub(a.lastSample) >= a.cfg.ReadingInterval {
				a.Sample(ctx)
			}
			if now.Sub(a.lastDrain) >= a.cfg.SendInterval {
				a.Drain(ctx)
			}
		}
	}
}

// Sample reads the sensor, buffers the reading, and while online attempts
// the single-reading fast path. The reading is evicted only on server ack;
// any failure leaves it buffered for the batch path.
func (a *Agent) Sample(ctx context.Context) {
	a.lastSample = time.Now()

	v, err := a.sensor.Read()
	if err != nil {
		a.logger.Errorf("Sensor read failed: %v", err)
		return
	}

	r := models.Reading{
		ReadingUID:      uuid.New().String(),
		UserID:          a.cfg.UserID,
		DeviceID:        a.cfg.DeviceID,
		BodyTemperature: v.BodyTemperature,
		PulseRate:       v.PulseRate,
		HeartRate:       v.HeartRate,
		SpO2:            v.SpO2,
		BatteryLevel:    v.BatteryLevel,
		SignalStrength:  v.SignalStrength,
		RecordedAt:      time.Now().UTC(),
	}
	a.buf.Push(r)

	if !a.online {
		return
	}
	if err := a.up.SendSingle(ctx, r); err != nil {
		a.logger.Warnf("Fast-path upload failed, reading stays buffered: %v", err)
		return
	}
	a.buf.PopNewest(r.ReadingUID)
	a.logger.Debugf("Fast-path upload acked for reading %s", r.ReadingUID)
}

// CheckConnectivity probes the server and flips the online flag. A
// transition to online only unlocks the drain path for its next tick, it
// does not upload anything itself.
func (a *Agent) CheckConnectivity(ctx context.Context) {
	a.lastConnCheck = time.Now()

	online := a.up.Ping(ctx)
	if online != a.online {
		if online {
			a.logger.Infof("Connectivity restored, %d readings buffered", a.buf.Len())
		} else {
			a.logger.Warnf("Connectivity lost, buffering readings")
		}
	}
	a.online = online
}

// Drain sends buffered readings oldest-first in batches while online,
// bounded to maxBatchesPerDrain per tick, stopping at the first batch
// failure. Eviction happens only for readings the server gave a final
// verdict: accepted ones and validation-rejected ones (a rejected reading
// can never succeed; it is counted and logged as lost).
func (a *Agent) Drain(ctx context.Context) {
	a.lastDrain = time.Now()

	if !a.online || a.buf.Len() == 0 {
		return
	}

	for i := 0; i < maxBatchesPerDrain; i++ {
		if a.buf.Len() == 0 {
			return
		}

		batch := a.buf.Peek(a.cfg.BatchSendSize)
		res, err := a.up.SendBatch(ctx, batch)
		if err != nil {
			a.logger.Warnf("Batch send failed, %d readings stay buffered: %v", a.buf.Len(), err)
			return
		}

		final := a.reconcile(batch, res)
		a.buf.Evict(final)
		if final < len(batch) {
			// A retryable item blocks the FIFO; wait for the next tick.
			return
		}
	}
}

// reconcile returns the length of the longest prefix of batch items with a
// final verdict. Items are in submission order; the first retryable failure
// stops the prefix since eviction is FIFO-only. Re-sending an already
// accepted reading later is harmless thanks to the idempotency key.
func (a *Agent) reconcile(batch []models.Reading, res *ingest.BatchResult) int {
	final := 0
	for _, item := range res.Items {
		if item.Index != final || item.Index >= len(batch) {
			break
		}
		if item.Retryable {
			break
		}
		if !item.Accepted {
			a.rejected++
			a.logger.Warnf("Reading %s permanently rejected by server (%d total): %s",
				batch[item.Index].ReadingUID, a.rejected, item.Error)
		}
		final++
	}
	return final
}
