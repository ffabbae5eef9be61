package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the kind of watchdog event.
type EventType string

const (
	EventRestart      EventType = "restart"
	EventSuppressed   EventType = "suppressed"
	EventLaunchFailed EventType = "launch_failed"
	EventProbeError   EventType = "probe_error"
	EventRecovered    EventType = "recovered"
)

// Event is one restart-related occurrence for a target, exported to
// analytics or audit systems.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	CycleID    string    `json:"cycle_id,omitempty"`
	Target     string    `json:"target"`
	Name       string    `json:"name,omitempty"`
	Port       int       `json:"port"`
	Command    string    `json:"command,omitempty"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
}

// NewEvent fills in the ID and timestamp.
func NewEvent(typ EventType, target string, port int, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at.UTC(),
		Target:     target,
		Port:       port,
	}
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

const defaultSendTimeout = 5 * time.Second

// Recorder fans events out to every configured sink. A failing sink is
// logged at warn and never reported to the caller.
type Recorder struct {
	mu      sync.Mutex
	sinks   []Sink
	log     *slog.Logger
	timeout time.Duration
}

// NewRecorder returns a Recorder over sinks. A nil logger discards.
func NewRecorder(log *slog.Logger, sinks ...Sink) *Recorder {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{sinks: sinks, log: log, timeout: defaultSendTimeout}
}

// Enabled reports whether at least one sink is attached.
func (r *Recorder) Enabled() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks) > 0
}

// Record delivers e to all sinks sequentially. Safe on a nil Recorder.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()
	for _, s := range sinks {
		sctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := s.Send(sctx, e)
		cancel()
		if err != nil {
			r.log.Warn("history sink failed", "type", string(e.Type), "target", e.Target, "error", err)
		}
	}
}

// Close closes every sink that implements io.Closer.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, s := range r.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	r.sinks = nil
	return errors.Join(errs...)
}
