package protocol

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Metrics contains atomic counters for an Engine.
// Counters can be used as the value of a prometheus CounterFunc.
type Metrics struct {
	// CommandCount indicates the number of mutating commands executed.
	CommandCount atomic.Uint64
	// QueryCount indicates the number of checked queries issued.
	QueryCount atomic.Uint64
	// StatusReadCount indicates the number of status register reads.
	StatusReadCount atomic.Uint64
	// DeviceFaultCount indicates the number of faults reported by the instrument.
	DeviceFaultCount atomic.Uint64
	// CommErrCount indicates the number of communication failures.
	CommErrCount atomic.Uint64
	// RecoveredCount indicates the number of failed queries that were
	// explained by a device reported fault.
	RecoveredCount atomic.Uint64

	errorCodes *xsync.MapOf[int, *atomic.Uint64]
}

func newMetrics() *Metrics {
	return &Metrics{errorCodes: xsync.NewMapOf[int, *atomic.Uint64]()}
}

// ErrorCodeCount returns how many times the execution error code was reported.
func (m *Metrics) ErrorCodeCount(code int) uint64 {
	if c, ok := m.errorCodes.Load(code); ok {
		return c.Load()
	}

	return 0
}

// ErrorCodes returns a snapshot of all execution error codes seen so far.
func (m *Metrics) ErrorCodes() map[int]uint64 {
	out := make(map[int]uint64, m.errorCodes.Size())
	m.errorCodes.Range(func(code int, c *atomic.Uint64) bool {
		out[code] = c.Load()
		return true
	})

	return out
}

func (m *Metrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *Metrics) incQueryCount() {
	m.QueryCount.Add(1)
}

func (m *Metrics) incStatusReadCount() {
	m.StatusReadCount.Add(1)
}

func (m *Metrics) incDeviceFaultCount() {
	m.DeviceFaultCount.Add(1)
}

func (m *Metrics) incCommErrCount() {
	m.CommErrCount.Add(1)
}

func (m *Metrics) incRecoveredCount() {
	m.RecoveredCount.Add(1)
}

func (m *Metrics) incErrorCode(code int) {
	c, _ := m.errorCodes.LoadOrCompute(code, func() *atomic.Uint64 { return &atomic.Uint64{} })
	c.Add(1)
}
