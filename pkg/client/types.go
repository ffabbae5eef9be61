package client

import "time"

// TargetStatus is the status of one watched port as reported by the daemon.
type TargetStatus struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Port         int        `json:"port"`
	Probe        string     `json:"probe"`
	Checked      bool       `json:"checked"`
	Up           bool       `json:"up"`
	LastChecked  *time.Time `json:"last_checked,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	LastDecision string     `json:"last_decision,omitempty"`
	LastRestart  *time.Time `json:"last_restart,omitempty"`
	Attempts     int        `json:"attempts_in_window"`
	Remaining    int        `json:"remaining"`
	Suppressed   bool       `json:"suppressed"`
	RetryAt      *time.Time `json:"retry_at,omitempty"`
}

// Cycle summarises the daemon's most recent monitoring cycle.
type Cycle struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Up           []string      `json:"up"`
	Down         []string      `json:"down"`
	ProbeErrors  []string      `json:"probe_errors,omitempty"`
	Restarted    []string      `json:"restarted,omitempty"`
	Suppressed   []string      `json:"suppressed,omitempty"`
	LaunchFailed []string      `json:"launch_failed,omitempty"`
}

// Status is the body of GET /status.
type Status struct {
	Phase     string         `json:"phase"`
	LastCycle *Cycle         `json:"last_cycle,omitempty"`
	Targets   []TargetStatus `json:"targets"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
