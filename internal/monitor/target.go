package monitor

import (
	"context"
	"time"

	"github.com/loykin/portwatch/internal/detector"
	"github.com/loykin/portwatch/internal/process"
)

// Target is one watched port and the command that brings it back.
type Target struct {
	ID       string // unique key, the port number as a string
	Name     string // optional display name
	Port     int
	Detector detector.Detector
	Spec     process.Spec
}

func (t Target) label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// Launcher starts a target's command. *process.Launcher satisfies it.
type Launcher interface {
	Launch(ctx context.Context, spec process.Spec) error
}

// Settings are the loop timings shared by all targets.
type Settings struct {
	CheckInterval    time.Duration // pause between cycles
	SettleDelay      time.Duration // pause after each successful launch
	ProbeTimeout     time.Duration // per-probe bound, 0 = unbounded
	ProbeConcurrency int           // parallel probes, <= 1 probes sequentially
}

// Phase is where the loop currently is.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseProbing
	PhaseRecovering
)

func (p Phase) String() string {
	switch p {
	case PhaseProbing:
		return "probing"
	case PhaseRecovering:
		return "recovering"
	default:
		return "idle"
	}
}

// TargetStatus is a point-in-time view of one target.
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

// CycleResult summarises one probe and recovery pass. Slices hold target IDs.
type CycleResult struct {
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
