// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for system-level monitoring.
// Exposes counters in a thread-safe map with dynamic registration.

package control

import (
	"strconv"
	"sync"
	"time"

	"github.com/momentics/ixmap-go/ring"
)

// MetricsRegistry holds mutable and read-only metrics.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// RecordEngine copies one port's ring-engine counters into the registry
// under worker.<workerID>.port.<portIdx>.<counter>: the data model's
// rx_alloc_failed/rx_clean_total/tx_xmit_failed/tx_clean_total set, plus
// rx_frame_errors (logged only, in the original driver; restored here as a
// counter per the supplemented-features list). Engine itself carries no
// metrics dependency; this is the one place the two packages meet.
func (mr *MetricsRegistry) RecordEngine(workerID, portIdx int, e *ring.Engine) {
	prefix := "worker." + strconv.Itoa(workerID) + ".port." + strconv.Itoa(portIdx) + "."
	mr.Set(prefix+"rx_alloc_failed", e.CountRxAllocFailed)
	mr.Set(prefix+"rx_clean_total", e.CountRxCleanTotal)
	mr.Set(prefix+"rx_frame_errors", e.CountRxFrameErrors)
	mr.Set(prefix+"tx_xmit_failed", e.CountTxXmitFailed)
	mr.Set(prefix+"tx_clean_total", e.CountTxCleanTotal)
}
