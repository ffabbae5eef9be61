package monitor

import (
	"time"

	"github.com/loykin/portwatch/internal/policy"
)

// Phase returns the loop's current phase.
func (m *Monitor) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// LastCycle returns the most recent completed cycle.
func (m *Monitor) LastCycle() (CycleResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return CycleResult{}, false
	}
	return *m.last, true
}

// Targets returns the configured targets in configuration order.
func (m *Monitor) Targets() []Target {
	return append([]Target(nil), m.targets...)
}

// Status returns every target's status in configuration order.
func (m *Monitor) Status() []TargetStatus {
	now := m.now()
	out := make([]TargetStatus, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, m.status(t, now))
	}
	return out
}

// TargetStatus returns the status of the target with the given id.
func (m *Monitor) TargetStatus(id string) (TargetStatus, bool) {
	for _, t := range m.targets {
		if t.ID == id {
			return m.status(t, m.now()), true
		}
	}
	return TargetStatus{}, false
}

func (m *Monitor) status(t Target, now time.Time) TargetStatus {
	ts := TargetStatus{
		ID:    t.ID,
		Name:  t.Name,
		Port:  t.Port,
		Probe: t.Detector.Describe(),
	}
	m.mu.RLock()
	st := m.state[t.ID]
	ts.Checked = st.checked
	ts.Up = st.up
	ts.LastError = st.lastErr
	ts.LastDecision = st.decision
	if !st.lastChecked.IsZero() {
		at := st.lastChecked
		ts.LastChecked = &at
	}
	if !st.lastRestart.IsZero() {
		at := st.lastRestart
		ts.LastRestart = &at
	}
	m.mu.RUnlock()

	snap, _ := m.policy.Snapshot(t.ID, now)
	ts.Attempts = len(snap.Attempts)
	ts.Remaining = snap.Remaining
	if snap.Suppressed() {
		// budget exhausted; the last decision tells whether it already bit
		ts.Suppressed = ts.LastDecision == policy.Suppress.String()
		retry := snap.RetryAt
		ts.RetryAt = &retry
	}
	return ts
}
