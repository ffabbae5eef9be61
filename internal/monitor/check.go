package monitor

import (
	"context"
	"time"
)

// ProbeReport is the outcome of probing one target outside the loop.
type ProbeReport struct {
	ID       string        `json:"id"`
	Name     string        `json:"name,omitempty"`
	Port     int           `json:"port"`
	Probe    string        `json:"probe"`
	Up       bool          `json:"up"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Check probes every target once and returns the results in configuration
// order. It never launches anything and leaves the monitor's state, the
// restart policy and metrics untouched.
func (m *Monitor) Check(ctx context.Context) []ProbeReport {
	start := m.now()
	results := m.probeAll(ctx)
	out := make([]ProbeReport, 0, len(m.targets))
	for i, t := range m.targets {
		r := results[i]
		pr := ProbeReport{
			ID:       t.ID,
			Name:     t.Name,
			Port:     t.Port,
			Probe:    t.Detector.Describe(),
			Up:       r.up,
			Duration: r.at.Sub(start),
		}
		if r.err != nil {
			pr.Error = r.err.Error()
		}
		out = append(out, pr)
	}
	return out
}

// AllUp reports whether every report in rs is up.
func AllUp(rs []ProbeReport) bool {
	for _, r := range rs {
		if !r.Up {
			return false
		}
	}
	return true
}
