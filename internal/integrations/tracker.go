package integrations

import (
	"sync"
	"time"

	"pricebridge/internal/logger"
)

// Recorder receives one observation per outbound call attempt. The analytics
// collector implements this; everything past Record is out of scope here.
type Recorder interface {
	Record(endpoint string, success bool, elapsedMs int64)
}

// NopRecorder drops observations. Used when no collector is wired.
type NopRecorder struct{}

func (NopRecorder) Record(string, bool, int64) {}

// LogRecorder writes observations to the service log.
type LogRecorder struct {
	Logger *logger.Logger
}

func (r *LogRecorder) Record(endpoint string, success bool, elapsedMs int64) {
	if success {
		r.Logger.Debug("call %s ok in %dms", endpoint, elapsedMs)
	} else {
		r.Logger.Warn("call %s failed in %dms", endpoint, elapsedMs)
	}
}

// Tracker times adapter calls and forwards them to a Recorder. One tracker
// per adapter instance; it also keeps running counters for health checks.
type Tracker struct {
	recorder Recorder

	mu       sync.Mutex
	total    int64
	failures int64
}

func NewTracker(recorder Recorder) *Tracker {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Tracker{recorder: recorder}
}

// Observe runs fn, records the attempt with its latency, and passes the
// error through. Every outbound attempt goes through here regardless of
// outcome.
func (t *Tracker) Observe(endpoint string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start).Milliseconds()

	t.mu.Lock()
	t.total++
	if err != nil {
		t.failures++
	}
	t.mu.Unlock()

	t.recorder.Record(endpoint, err == nil, elapsed)
	return err
}

// Stats returns total and failed attempt counts since construction.
func (t *Tracker) Stats() (total, failures int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total, t.failures
}
