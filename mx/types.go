package mx

import (
	"fmt"
	"time"
)

// MultiActionType selects how an output takes part in a Multi-On or
// Multi-Off operation.
type MultiActionType int

const (
	// MultiQuick switches the output immediately.
	MultiQuick MultiActionType = iota
	// MultiNever leaves the output untouched.
	MultiNever
	// MultiDelay switches the output after its configured delay.
	MultiDelay
)

func (a MultiActionType) String() string {
	switch a {
	case MultiQuick:
		return "QUICK"
	case MultiNever:
		return "NEVER"
	case MultiDelay:
		return "DELAY"
	default:
		return fmt.Sprintf("MultiActionType(%d)", int(a))
	}
}

// MultiOperation is the per-output configuration applied before a Multi-On
// or Multi-Off operation.
type MultiOperation struct {
	action MultiActionType
	delay  time.Duration
}

// MultiAction returns a quick (true) or never (false) configuration.
func MultiAction(quick bool) MultiOperation {
	if quick {
		return MultiOperation{action: MultiQuick}
	}

	return MultiOperation{action: MultiNever}
}

// MultiDelayOf returns a configuration switching the output after d.
// The instrument works in whole milliseconds.
func MultiDelayOf(d time.Duration) MultiOperation {
	return MultiOperation{action: MultiDelay, delay: d}
}

// Action returns the configured action.
func (m MultiOperation) Action() MultiActionType { return m.action }

// Delay returns the configured delay; it is zero unless Action is MultiDelay.
func (m MultiOperation) Delay() time.Duration { return m.delay }

// MeterAveraging is the current meter averaging setting.
type MeterAveraging int

const (
	AveragingOn MeterAveraging = iota
	AveragingOff
	AveragingLow
	AveragingMed
	AveragingHigh
)

func (m MeterAveraging) String() string {
	switch m {
	case AveragingOn:
		return "ON"
	case AveragingOff:
		return "OFF"
	case AveragingLow:
		return "LOW"
	case AveragingMed:
		return "MED"
	case AveragingHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("MeterAveraging(%d)", int(m))
	}
}

// Protection is an over-voltage or over-current trip setting.
type Protection struct {
	Enabled bool
	Level   float64 // trip point in volts or amps; zero when disabled
}
