package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vitals-service/internal/config"
	"vitals-service/internal/ingest"
	"vitals-service/internal/logging"
)

// fakeIngest is an in-process stand-in for the ingestion service. Verdicts
// per reading UID can be overridden; the default is accept-all.
type fakeIngest struct {
	t *testing.T

	mu          sync.Mutex
	healthOK    bool
	singleFail  bool
	batchCalls  int
	failOnCall  int // 1-based batch call to fail with 500; 0 = never
	verdicts    map[string]ingest.BatchItemResult
	singleUIDs  []string
	batchedUIDs []string
}

func newFakeIngest(t *testing.T) *fakeIngest {
	return &fakeIngest{t: t, healthOK: true, verdicts: map[string]ingest.BatchItemResult{}}
}

func (f *fakeIngest) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ok := f.healthOK
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	})
	mux.HandleFunc("/medical-data", func(w http.ResponseWriter, r *http.Request) {
		var sub ingest.ReadingSubmission
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&sub))

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.singleFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.singleUIDs = append(f.singleUIDs, sub.ReadingUID)
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    ingest.Result{ReadingID: int64(len(f.singleUIDs)), AlertsTriggered: 0},
		})
	})
	mux.HandleFunc("/medical-data/batch", func(w http.ResponseWriter, r *http.Request) {
		var batch ingest.BatchSubmission
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&batch))

		f.mu.Lock()
		defer f.mu.Unlock()
		f.batchCalls++
		if f.failOnCall != 0 && f.batchCalls == f.failOnCall {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		res := ingest.BatchResult{TotalReadings: len(batch.Readings)}
		for i, item := range batch.Readings {
			ir, override := f.verdicts[item.ReadingUID]
			if !override {
				ir = ingest.BatchItemResult{Accepted: true, ReadingID: int64(i + 1)}
			}
			ir.Index = i
			if ir.Accepted {
				res.SavedReadings++
			} else {
				res.RejectedReadings++
			}
			res.Items = append(res.Items, ir)
			f.batchedUIDs = append(f.batchedUIDs, item.ReadingUID)
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "data": res})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestAgent(t *testing.T, serverURL string) *Agent {
	cfg := config.Device{
		ServerURL:         serverURL,
		UserID:            1,
		DeviceID:          "D1",
		ReadingInterval:   5 * time.Minute,
		SendInterval:      30 * time.Second,
		WifiRetryInterval: time.Minute,
		MaxBufferSize:     10,
		BatchSendSize:     3,
		SingleTimeout:     2 * time.Second,
		BatchTimeout:      2 * time.Second,
	}
	logger := logging.NewNop()
	return NewAgent(cfg, NewSimulatedSensor(), NewUploader(cfg, logger), logger)
}

func TestSampleFastPathEvictsOnAck(t *testing.T) {
	f := newFakeIngest(t)
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()

	a.CheckConnectivity(ctx)
	require.True(t, a.Online())

	a.Sample(ctx)

	assert.Equal(t, 0, a.Buffer().Len())
	assert.Len(t, f.singleUIDs, 1)
}

func TestSampleOfflineOnlyBuffers(t *testing.T) {
	f := newFakeIngest(t)
	f.healthOK = false
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()

	a.CheckConnectivity(ctx)
	require.False(t, a.Online())

	a.Sample(ctx)
	a.Sample(ctx)

	assert.Equal(t, 2, a.Buffer().Len())
	assert.Empty(t, f.singleUIDs)
}

func TestEvictionOnlyOnAck(t *testing.T) {
	f := newFakeIngest(t)
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()
	a.CheckConnectivity(ctx)
	require.True(t, a.Online())

	// Fast path fails server-side: the reading must stay buffered.
	f.mu.Lock()
	f.singleFail = true
	f.mu.Unlock()
	a.Sample(ctx)
	assert.Equal(t, 1, a.Buffer().Len())

	// Batch path fails too: buffer unchanged.
	f.mu.Lock()
	f.failOnCall = 1
	f.mu.Unlock()
	a.Drain(ctx)
	assert.Equal(t, 1, a.Buffer().Len())
}

func TestDrainSendsOldestFirstAcrossBatches(t *testing.T) {
	f := newFakeIngest(t)
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()
	a.CheckConnectivity(ctx)

	want := []string{}
	for i := 0; i < 7; i++ {
		r := testReading(i)
		a.Buffer().Push(r)
		want = append(want, r.ReadingUID)
	}

	a.Drain(ctx)

	// Batch size 3: batches of 3+3+1, all within one tick's cap of 3.
	assert.Equal(t, 0, a.Buffer().Len())
	assert.Equal(t, 3, f.batchCalls)
	assert.Equal(t, want, f.batchedUIDs)
}

func TestDrainCapsBatchesPerTick(t *testing.T) {
	f := newFakeIngest(t)
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()
	a.CheckConnectivity(ctx)

	for i := 0; i < 10; i++ {
		a.Buffer().Push(testReading(i))
	}

	a.Drain(ctx)

	// Three batches of three per tick; the tenth reading waits.
	assert.Equal(t, 3, f.batchCalls)
	assert.Equal(t, 1, a.Buffer().Len())

	a.Drain(ctx)
	assert.Equal(t, 0, a.Buffer().Len())
}

func TestDrainStopsOnFirstBatchFailure(t *testing.T) {
	f := newFakeIngest(t)
	f.failOnCall = 2
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()
	a.CheckConnectivity(ctx)

	for i := 0; i < 7; i++ {
		a.Buffer().Push(testReading(i))
	}

	a.Drain(ctx)

	// First batch of 3 was acked and evicted; the failed second batch left
	// the remaining 4 untouched for the next tick.
	assert.Equal(t, 2, f.batchCalls)
	assert.Equal(t, 4, a.Buffer().Len())
	assert.Equal(t, []string{"uid-3", "uid-4", "uid-5", "uid-6"}, uids(a.Buffer().Peek(10)))
}

func TestDrainEvictsPermanentRejections(t *testing.T) {
	f := newFakeIngest(t)
	f.verdicts["uid-1"] = ingest.BatchItemResult{Accepted: false, Error: "body_temperature out of valid range"}
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()
	a.CheckConnectivity(ctx)

	for i := 0; i < 3; i++ {
		a.Buffer().Push(testReading(i))
	}

	a.Drain(ctx)

	// A validation rejection is a final verdict: retrying can never succeed,
	// so the reading is evicted alongside the accepted ones.
	assert.Equal(t, 0, a.Buffer().Len())
	assert.Equal(t, uint64(1), a.rejected)
}

func TestDrainRetryableItemBlocksEviction(t *testing.T) {
	f := newFakeIngest(t)
	f.verdicts["uid-1"] = ingest.BatchItemResult{Accepted: false, Retryable: true, Error: "internal error"}
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()
	a.CheckConnectivity(ctx)

	for i := 0; i < 3; i++ {
		a.Buffer().Push(testReading(i))
	}

	a.Drain(ctx)

	// Only the prefix before the retryable item is evicted; the rest is
	// resubmitted next tick (the idempotency key makes that safe).
	assert.Equal(t, []string{"uid-1", "uid-2"}, uids(a.Buffer().Peek(10)))
}

func TestDrainOfflineIsNoop(t *testing.T) {
	f := newFakeIngest(t)
	f.healthOK = false
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()
	a.CheckConnectivity(ctx)

	a.Buffer().Push(testReading(0))
	a.Drain(ctx)

	assert.Equal(t, 1, a.Buffer().Len())
	assert.Equal(t, 0, f.batchCalls)
}

func TestConnectivityTransitionDoesNotUpload(t *testing.T) {
	f := newFakeIngest(t)
	f.healthOK = false
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	a := newTestAgent(t, ts.URL)
	ctx := context.Background()
	a.CheckConnectivity(ctx)
	a.Buffer().Push(testReading(0))

	f.mu.Lock()
	f.healthOK = true
	f.mu.Unlock()

	a.CheckConnectivity(ctx)
	assert.True(t, a.Online())
	// Coming back online only unlocks drain for its next tick.
	assert.Equal(t, 1, a.Buffer().Len())
	assert.Equal(t, 0, f.batchCalls)
}
