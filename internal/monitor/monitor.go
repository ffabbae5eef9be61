package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/portwatch/internal/detector"
	"github.com/loykin/portwatch/internal/history"
	"github.com/loykin/portwatch/internal/logger"
	"github.com/loykin/portwatch/internal/metrics"
	"github.com/loykin/portwatch/internal/policy"
)

var (
	ErrNoTargets       = errors.New("no targets to monitor")
	ErrDuplicateTarget = errors.New("duplicate target id")
)

const defaultCheckInterval = 2 * time.Minute

// Monitor probes every target each cycle and restarts the ones that are down,
// subject to the restart policy.
type Monitor struct {
	targets  []Target
	policy   *policy.Policy
	launcher Launcher
	settings Settings

	log     *slog.Logger
	history *history.Recorder
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	phase Phase
	state map[string]*targetState
	last  *CycleResult
}

type targetState struct {
	checked     bool
	up          bool
	lastChecked time.Time
	lastErr     string
	decision    string
	lastRestart time.Time
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

// WithHistory attaches an event recorder.
func WithHistory(r *history.Recorder) Option {
	return func(m *Monitor) { m.history = r }
}

// WithClock replaces the wall clock and the sleep function. Both must be safe
// for concurrent use; sleep must return ctx.Err() when ctx is done.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// New validates targets and returns a Monitor ready to Run.
func New(targets []Target, pol *policy.Policy, launcher Launcher, s Settings, opts ...Option) (*Monitor, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if pol == nil || launcher == nil {
		return nil, errors.New("monitor requires a policy and a launcher")
	}
	state := make(map[string]*targetState, len(targets))
	for _, t := range targets {
		if t.ID == "" {
			return nil, fmt.Errorf("target on port %d has no id", t.Port)
		}
		if t.Detector == nil {
			return nil, fmt.Errorf("target %s has no detector", t.ID)
		}
		if _, dup := state[t.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTarget, t.ID)
		}
		state[t.ID] = &targetState{}
	}
	if s.CheckInterval <= 0 {
		s.CheckInterval = defaultCheckInterval
	}
	if s.ProbeConcurrency < 1 {
		s.ProbeConcurrency = 1
	}
	m := &Monitor{
		targets:  append([]Target(nil), targets...),
		policy:   pol,
		launcher: launcher,
		settings: s,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		sleep:    sleepContext,
		state:    state,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run repeats RunCycle, sleeping CheckInterval between cycles, until ctx is
// cancelled. Cancellation is a normal stop and returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("Starting port monitor",
		"targets", len(m.targets),
		"check_interval", m.settings.CheckInterval,
		"max_restarts", m.policy.MaxRestarts(),
		"restart_window", m.policy.Window())
	defer m.log.Info("Monitoring stopped")
	for {
		if _, err := m.RunCycle(ctx); err != nil {
			return nil
		}
		m.log.Debug("Waiting for the next check interval", "interval", m.settings.CheckInterval)
		if err := m.sleep(ctx, m.settings.CheckInterval); err != nil {
			return nil
		}
	}
}

type probeResult struct {
	up  bool
	err error
	at  time.Time
}

// RunCycle performs one PROBING pass over all targets followed by one
// RECOVERING pass over the ones found down. It only fails when ctx is done;
// per-target failures are logged and recorded.
func (m *Monitor) RunCycle(ctx context.Context) (CycleResult, error) {
	res := CycleResult{ID: uuid.NewString(), StartedAt: m.now()}
	log := m.log.With("cycle", res.ID)
	defer m.setPhase(PhaseIdle)

	m.setPhase(PhaseProbing)
	results := m.probeAll(ctx)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	var down []Target
	for i, t := range m.targets {
		r := results[i]
		metrics.ObserveProbe(t.ID, r.up)
		if r.err != nil {
			res.ProbeErrors = append(res.ProbeErrors, t.ID)
			metrics.IncProbeError(t.ID)
			log.Error("Failed to check port", "port", t.Port, "target", t.label(), "error", r.err)
			ev := m.event(history.EventProbeError, t, res.ID, r.at)
			ev.Error = r.err.Error()
			m.history.Record(ctx, ev)
		}
		recovered := m.observe(t.ID, r)
		if r.up {
			res.Up = append(res.Up, t.ID)
			log.Info("Port is running", "port", t.Port, "target", t.label())
			if recovered {
				log.Info("Port recovered", "port", t.Port, "target", t.label())
				m.history.Record(ctx, m.event(history.EventRecovered, t, res.ID, r.at))
			}
			continue
		}
		res.Down = append(res.Down, t.ID)
		down = append(down, t)
	}

	if len(down) == 0 {
		log.Info("All ports are running")
	} else {
		m.setPhase(PhaseRecovering)
		for _, t := range down {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			launched := m.recover(ctx, log, t, &res)
			if launched {
				if err := m.sleep(ctx, m.settings.SettleDelay); err != nil {
					return res, err
				}
			}
		}
	}

	res.Duration = m.now().Sub(res.StartedAt)
	metrics.ObserveCycle(res.Duration)
	m.mu.Lock()
	last := res
	m.last = &last
	m.mu.Unlock()
	log.Info("Completed a monitoring cycle",
		"up", len(res.Up), "down", len(res.Down), "restarted", len(res.Restarted),
		"suppressed", len(res.Suppressed), "duration", res.Duration)
	return res, nil
}

func (m *Monitor) probeAll(ctx context.Context) []probeResult {
	results := make([]probeResult, len(m.targets))
	var g errgroup.Group
	g.SetLimit(m.settings.ProbeConcurrency)
	for i, t := range m.targets {
		g.Go(func() error {
			pctx := ctx
			if m.settings.ProbeTimeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(ctx, m.settings.ProbeTimeout)
				defer cancel()
			}
			up, err := detector.Probe(pctx, t.ID, t.Detector)
			results[i] = probeResult{up: up, err: err, at: m.now()}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// observe stores a probe result and reports a down to up transition.
func (m *Monitor) observe(id string, r probeResult) (recovered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state[id]
	recovered = st.checked && !st.up && r.up
	st.checked = true
	st.up = r.up
	st.lastChecked = r.at
	st.lastErr = ""
	if r.err != nil {
		st.lastErr = r.err.Error()
	}
	return recovered
}

// recover consults the policy for one down target and launches it when
// allowed. It reports whether the command was started.
func (m *Monitor) recover(ctx context.Context, log *slog.Logger, t Target, res *CycleResult) bool {
	now := m.now()
	decision := m.policy.Decide(t.ID, now)
	snap, _ := m.policy.Snapshot(t.ID, now)
	attempts := len(snap.Attempts)
	metrics.SetAttemptsInWindow(t.ID, attempts)
	m.setDecision(t.ID, decision, now)

	if decision == policy.Suppress {
		res.Suppressed = append(res.Suppressed, t.ID)
		metrics.IncSuppressed(t.ID)
		logger.Critical(ctx, log, "Port is down and the restart budget is exhausted",
			"port", t.Port, "target", t.label(),
			"attempts", attempts, "window", m.policy.Window(), "retry_at", snap.RetryAt)
		ev := m.event(history.EventSuppressed, t, res.ID, now)
		ev.Attempts = attempts
		m.history.Record(ctx, ev)
		return false
	}

	log.Warn("Port is down. Attempting to restart",
		"port", t.Port, "target", t.label(), "attempt", attempts, "max", m.policy.MaxRestarts())
	metrics.IncRestart(t.ID)
	ev := m.event(history.EventRestart, t, res.ID, now)
	ev.Attempts = attempts
	m.history.Record(ctx, ev)

	if err := m.launcher.Launch(ctx, t.Spec); err != nil {
		res.LaunchFailed = append(res.LaunchFailed, t.ID)
		metrics.IncLaunchError(t.ID)
		log.Error("Failed to start process", "port", t.Port, "target", t.label(), "command", t.Spec.Command, "error", err)
		fe := m.event(history.EventLaunchFailed, t, res.ID, m.now())
		fe.Attempts = attempts
		fe.Error = err.Error()
		m.history.Record(ctx, fe)
		return false
	}
	res.Restarted = append(res.Restarted, t.ID)
	log.Info("Process started successfully", "port", t.Port, "target", t.label(), "command", t.Spec.Command)
	return true
}

func (m *Monitor) event(typ history.EventType, t Target, cycle string, at time.Time) history.Event {
	e := history.NewEvent(typ, t.ID, t.Port, at)
	e.CycleID = cycle
	e.Name = t.Name
	e.Command = t.Spec.Command
	return e
}

func (m *Monitor) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

func (m *Monitor) setDecision(id string, d policy.Decision, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state[id]
	st.decision = d.String()
	if d == policy.Allow {
		st.lastRestart = at
	}
}
