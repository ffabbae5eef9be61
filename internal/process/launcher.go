package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ErrEarlyExit is wrapped by a LaunchError when the start command exits with
// a failure inside the launch grace period.
var ErrEarlyExit = errors.New("start command exited early")

// LaunchError reports that a target's start command could not be invoked.
type LaunchError struct {
	Target  string
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s (%s): %v", e.Target, e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// IsEarlyExit reports whether err is a launch that failed inside the grace period.
func IsEarlyExit(err error) bool { return errors.Is(err, ErrEarlyExit) }

// Launcher starts target commands detached from the monitor.
//
// Launch is fire-and-forget: success means the command was started, not that
// the service is healthy. When Grace is positive, Launch additionally waits up
// to Grace for the command to finish; a non-zero exit in that period is a
// failure, a zero exit (a start script that spawns the service and returns) is
// a success. Children are always reaped in the background.
type Launcher struct {
	// Env composes the child environment from the spec's extra variables.
	// When nil the monitor's own environment plus spec.Env is used.
	Env func(perTarget []string) []string
	// Grace is how long to watch the command for an early failure.
	Grace time.Duration
	// Timeout bounds the whole Launch call, including the grace wait.
	Timeout time.Duration
}

func (l *Launcher) Launch(ctx context.Context, spec Spec) error {
	if err := spec.Validate(); err != nil {
		return &LaunchError{Target: spec.Name, Command: spec.Command, Err: err}
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if l.Env != nil {
		cmd.Env = l.Env(spec.Env)
	} else if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	configureSysProcAttr(cmd)

	closers, err := attachOutput(cmd, spec)
	if err != nil {
		return &LaunchError{Target: spec.Name, Command: spec.Command, Err: err}
	}
	err = cmd.Start()
	// the child holds its own descriptors once started
	closeAll(closers)
	if err != nil {
		return &LaunchError{Target: spec.Name, Command: spec.Command, Err: err}
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if l.Grace <= 0 {
		return nil
	}
	t := time.NewTimer(l.Grace)
	defer t.Stop()
	select {
	case err := <-exited:
		if err != nil {
			return &LaunchError{Target: spec.Name, Command: spec.Command, Err: fmt.Errorf("%w: %v", ErrEarlyExit, err)}
		}
		return nil
	case <-t.C:
		return nil
	case <-ctx.Done():
		// the command is running; the deadline only ends our watch
		return nil
	}
}

// attachOutput points stdout/stderr at append-mode files when the spec asks
// for it, otherwise at the null device. The child gets the files directly so
// its output does not depend on the monitor staying alive.
func attachOutput(cmd *exec.Cmd, spec Spec) ([]io.Closer, error) {
	stdout, stderr := spec.Log.Paths(spec.Name)
	open := func(p string) (*os.File, error) {
		if p == "" {
			return os.OpenFile(os.DevNull, os.O_RDWR, 0)
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		// #nosec G304 -- path comes from operator configuration
		return os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	}
	outF, err := open(stdout)
	if err != nil {
		return nil, err
	}
	errF, err := open(stderr)
	if err != nil {
		_ = outF.Close()
		return nil, err
	}
	cmd.Stdout = outF
	cmd.Stderr = errF
	return []io.Closer{outF, errF}, nil
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		if c != nil {
			_ = c.Close()
		}
	}
}
