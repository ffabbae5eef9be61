package detector

import (
	"context"
	"fmt"
)

// Detector is a strategy that determines whether a target's service is up.
// Implementations may inspect the socket table, dial the port, or run a
// custom health command. It must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the service is detected as up. A non-nil error
	// means the state could not be determined.
	Alive(ctx context.Context) (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// ProbeError reports that the health query itself failed, not the service.
type ProbeError struct {
	Target string
	Method string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s for target %s failed: %v", e.Method, e.Target, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Probe asks d whether target is up.
//
// A query failure is reported as down together with a *ProbeError: an
// undeterminable target is handed to the restart policy rather than assumed
// healthy.
func Probe(ctx context.Context, target string, d Detector) (bool, error) {
	alive, err := d.Alive(ctx)
	if err != nil {
		return false, &ProbeError{Target: target, Method: d.Describe(), Err: err}
	}
	return alive, nil
}
