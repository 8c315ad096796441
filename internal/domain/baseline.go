package domain

import "time"

// BaselineWindow is the lookback period a baseline is computed over
type BaselineWindow string

const (
	BaselineWindow1h  BaselineWindow = "1h"
	BaselineWindow24h BaselineWindow = "24h"
	BaselineWindow7d  BaselineWindow = "7d"
)

// AllBaselineWindows lists every supported window
var AllBaselineWindows = []BaselineWindow{
	BaselineWindow1h,
	BaselineWindow24h,
	BaselineWindow7d,
}

// Duration returns the lookback duration for the window
func (w BaselineWindow) Duration() time.Duration {
	switch w {
	case BaselineWindow1h:
		return time.Hour
	case BaselineWindow24h:
		return 24 * time.Hour
	case BaselineWindow7d:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Valid reports whether the window is one of the supported values
func (w BaselineWindow) Valid() bool {
	for _, v := range AllBaselineWindows {
		if w == v {
			return true
		}
	}
	return false
}

// CostBaseline is the rolling cost distribution for one
// (service, endpoint, window). It is recomputed wholesale on each scheduled
// run; percentiles are never patched incrementally.
type CostBaseline struct {
	ServiceName string         `json:"serviceName"`
	Endpoint    string         `json:"endpoint"`
	Window      BaselineWindow `json:"window"`
	P50         float64        `json:"p50"`
	P95         float64        `json:"p95"`
	P99         float64        `json:"p99"`
	SampleCount int            `json:"sampleCount"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// SweepReport summarizes one baseline sweep for a single window
type SweepReport struct {
	Window  BaselineWindow `json:"window"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	Errors  int            `json:"errors"`
}
