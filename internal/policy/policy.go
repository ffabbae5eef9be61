package policy

import (
	"errors"
	"sync"
	"time"
)

// Decision is the outcome of consulting the restart budget for a down target.
type Decision int

const (
	// Allow means a restart attempt was recorded and the caller should launch.
	Allow Decision = iota
	// Suppress means the target has used its budget inside the window.
	// Nothing was recorded.
	Suppress
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Suppress:
		return "suppress"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidMaxRestarts = errors.New("max restarts must be positive")
	ErrInvalidWindow      = errors.New("restart window must be positive")
)

// record holds the attempt instants for one target, oldest first.
type record struct {
	timestamps []time.Time
}

// prune drops every attempt older than window relative to now.
func (r *record) prune(now time.Time, window time.Duration) {
	i := 0
	for i < len(r.timestamps) && now.Sub(r.timestamps[i]) > window {
		i++
	}
	if i == 0 {
		return
	}
	// copy down so the backing array does not grow without bound for flapping targets
	n := copy(r.timestamps, r.timestamps[i:])
	r.timestamps = r.timestamps[:n]
}

// Policy is a sliding-window restart budget shared by all targets.
// A target may be restarted at most MaxRestarts times within any Window.
//
// Records are created lazily the first time a target is decided on and are
// only ever trimmed by elapsed time; there is no reset operation.
// Policy is safe for concurrent use.
type Policy struct {
	mu          sync.Mutex
	maxRestarts int
	window      time.Duration
	records     map[string]*record
}

// New builds a Policy. maxRestarts and window must both be positive.
func New(maxRestarts int, window time.Duration) (*Policy, error) {
	if maxRestarts <= 0 {
		return nil, ErrInvalidMaxRestarts
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &Policy{
		maxRestarts: maxRestarts,
		window:      window,
		records:     make(map[string]*record),
	}, nil
}

func (p *Policy) MaxRestarts() int      { return p.maxRestarts }
func (p *Policy) Window() time.Duration { return p.window }

// Decide is called once per cycle for a target observed down.
// Stale attempts are pruned first; if the remaining count is below the budget,
// now is recorded and Allow is returned. Otherwise Suppress is returned and the
// record is left untouched.
//
// Calling Decide twice for the same observation counts two attempts.
func (p *Policy) Decide(id string, now time.Time) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[id]
	if !ok {
		rec = &record{timestamps: make([]time.Time, 0, p.maxRestarts)}
		p.records[id] = rec
	}
	rec.prune(now, p.window)
	if len(rec.timestamps) < p.maxRestarts {
		rec.timestamps = append(rec.timestamps, now)
		return Allow
	}
	return Suppress
}

// Snapshot is a read-only view of one target's budget at a point in time.
type Snapshot struct {
	ID       string      `json:"id"`
	Attempts []time.Time `json:"attempts"`
	// Remaining is how many restarts would still be allowed at the snapshot time.
	Remaining int `json:"remaining"`
	// RetryAt is when the oldest attempt ages out. Zero when Remaining > 0.
	RetryAt time.Time `json:"retry_at,omitempty"`
}

// Suppressed reports whether a Decide at the snapshot time would return Suppress.
func (s Snapshot) Suppressed() bool { return s.Remaining == 0 }

// Snapshot returns the budget state of id as of now. Stale attempts are pruned
// first. ok is false when the target has never been decided on.
func (p *Policy) Snapshot(id string, now time.Time) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[id]
	if !ok {
		return Snapshot{ID: id, Remaining: p.maxRestarts}, false
	}
	rec.prune(now, p.window)
	snap := Snapshot{
		ID:        id,
		Attempts:  append([]time.Time(nil), rec.timestamps...),
		Remaining: p.maxRestarts - len(rec.timestamps),
	}
	if snap.Remaining <= 0 {
		snap.Remaining = 0
		// an entry is pruned once now-t exceeds the window
		snap.RetryAt = rec.timestamps[0].Add(p.window + time.Nanosecond)
	}
	return snap, true
}

// Tracked returns the number of targets that have a restart record.
func (p *Policy) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}
