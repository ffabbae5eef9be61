package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/loykin/portwatch"
	"github.com/loykin/portwatch/pkg/client"
)

// errTargetsDown makes check exit non-zero after the table is printed.
var errTargetsDown = errors.New("one or more ports are down")

func runWatchdog(ctx context.Context, out io.Writer, path string, f RunFlags) error {
	cfg, err := portwatch.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	pidFile := firstNonEmpty(f.PidFile, cfg.Daemon.PidFile)
	if f.Daemonize && !isDaemonChild() {
		return daemonize(out, os.Args[1:], pidFile, firstNonEmpty(f.LogFile, cfg.Daemon.LogFile))
	}
	if pidFile != "" {
		if err := writePidFile(pidFile, os.Getpid()); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = removePidFile(pidFile) }()
	}

	w, err := portwatch.NewWatchdog(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if f.Once {
		_, err := w.RunCycle(ctx)
		return err
	}
	return w.Serve(ctx)
}

func runCheck(ctx context.Context, out io.Writer, path string, f CheckFlags) error {
	cfg, err := portwatch.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	w, err := portwatch.NewWatchdog(cfg,
		portwatch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		portwatch.WithoutHistory())
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	reports := w.Check(ctx)
	if f.JSON {
		printJSON(out, reports)
	} else {
		p := newPrinter(out)
		rows := make([][]string, 0, len(reports))
		for _, r := range reports {
			state := stateUp
			if !r.Up {
				state = stateDown
			}
			rows = append(rows, []string{strconv.Itoa(r.Port), r.Name, r.Probe, state, r.Error})
		}
		p.table([]string{"PORT", "NAME", "PROBE", "STATE", "ERROR"}, rows, 3)
	}
	if !portwatch.AllUp(reports) {
		return errTargetsDown
	}
	return nil
}

func runStatus(ctx context.Context, out io.Writer, f StatusFlags) error {
	cfg := client.DefaultConfig()
	if f.APIUrl != "" {
		cfg.BaseURL = f.APIUrl
	}
	if f.APITimeout > 0 {
		cfg.Timeout = f.APITimeout
	}
	cfg.Insecure = f.Insecure
	if f.CACert != "" {
		cfg.TLS = &client.TLSClientConfig{CACert: f.CACert}
	}
	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	if !c.IsReachable(ctx) {
		return fmt.Errorf("daemon not reachable at %s - please start it first with 'portwatch run'", cfg.BaseURL)
	}

	if f.Port != 0 {
		ts, err := c.Target(ctx, f.Port)
		if err != nil {
			return err
		}
		if f.JSON {
			printJSON(out, ts)
			return nil
		}
		printTargets(newPrinter(out), []client.TargetStatus{ts})
		return nil
	}

	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	if f.JSON {
		printJSON(out, st)
		return nil
	}
	p := newPrinter(out)
	p.keyValue("phase", st.Phase)
	if lc := st.LastCycle; lc != nil {
		p.keyValue("last cycle", fmt.Sprintf("%s (%s, %d up, %d down, %d restarted, %d suppressed)",
			lc.StartedAt.Local().Format(time.DateTime), lc.Duration.Round(time.Millisecond),
			len(lc.Up), len(lc.Down), len(lc.Restarted), len(lc.Suppressed)))
	}
	printTargets(p, st.Targets)
	return nil
}

func printTargets(p *printer, targets []client.TargetStatus) {
	rows := make([][]string, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, []string{
			strconv.Itoa(t.Port),
			t.Name,
			targetState(t),
			fmt.Sprintf("%d/%d", t.Attempts, t.Attempts+t.Remaining),
			formatTime(t.LastChecked),
			formatTime(t.RetryAt),
			t.LastError,
		})
	}
	p.table([]string{"PORT", "NAME", "STATE", "RESTARTS", "LAST CHECKED", "RETRY AT", "ERROR"}, rows, 2)
}

func targetState(t client.TargetStatus) string {
	switch {
	case !t.Checked:
		return stateUnknown
	case t.Up:
		return stateUp
	case t.Suppressed:
		return stateSuppressed
	default:
		return stateDown
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func printJSON(out io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(out, string(b))
}
