// Package portwatch embeds the port watchdog: load a configuration, build a
// Watchdog and run it, optionally together with its status API and metrics.
package portwatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/portwatch/internal/config"
	"github.com/loykin/portwatch/internal/history"
	"github.com/loykin/portwatch/internal/history/factory"
	"github.com/loykin/portwatch/internal/logger"
	"github.com/loykin/portwatch/internal/metrics"
	"github.com/loykin/portwatch/internal/monitor"
	"github.com/loykin/portwatch/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type TargetConfig = config.TargetConfig

type TargetStatus = monitor.TargetStatus

type CycleResult = monitor.CycleResult

type ProbeReport = monitor.ProbeReport

type Phase = monitor.Phase

type Event = history.Event

type HistorySink = history.Sink

// LoadConfig reads and validates a TOML, YAML or JSON configuration file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

type options struct {
	console   io.Writer
	log       *slog.Logger
	sinks     []HistorySink
	noHistory bool
}

// Option customises NewWatchdog.
type Option func(*options)

// WithLogger replaces the logger built from the [log] section.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithConsole sets the console writer of the configured logger. Default stderr.
func WithConsole(w io.Writer) Option { return func(o *options) { o.console = w } }

// WithHistorySinks adds sinks next to the ones named in the history DSNs.
// They are closed by Watchdog.Close when they implement io.Closer.
func WithHistorySinks(s ...HistorySink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s...) }
}

// WithoutHistory skips the sinks named in the history DSNs.
func WithoutHistory() Option { return func(o *options) { o.noHistory = true } }

// Watchdog is a configured monitor loop plus the resources it owns.
type Watchdog struct {
	cfg     *Config
	mon     *monitor.Monitor
	log     *slog.Logger
	history *history.Recorder
	closers []io.Closer
}

// NewWatchdog assembles the logger, environment, launcher, restart policy,
// targets and history sinks described by cfg.
func NewWatchdog(cfg *Config, opts ...Option) (*Watchdog, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{console: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	w := &Watchdog{cfg: cfg, log: o.log}
	if w.log == nil {
		l, closer, err := logger.New(cfg.Logger(), o.console)
		if err != nil {
			return nil, err
		}
		w.log = l
		w.closers = append(w.closers, closer)
	}

	mon, err := w.build(o)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	w.mon = mon
	return w, nil
}

func (w *Watchdog) build(o options) (*monitor.Monitor, error) {
	e, err := w.cfg.Environment()
	if err != nil {
		return nil, err
	}
	pol, err := w.cfg.Policy()
	if err != nil {
		return nil, err
	}
	targets, err := w.cfg.BuildTargets()
	if err != nil {
		return nil, err
	}
	var sinks []HistorySink
	if !o.noHistory {
		if sinks, err = factory.NewSinksFromDSNs(w.cfg.History); err != nil {
			return nil, err
		}
	}
	w.history = history.NewRecorder(w.log, append(sinks, o.sinks...)...)
	return monitor.New(targets, pol, w.cfg.Launcher(e), w.cfg.Settings(),
		monitor.WithLogger(w.log),
		monitor.WithHistory(w.history))
}

// Logger returns the watchdog's logger.
func (w *Watchdog) Logger() *slog.Logger { return w.log }

// Run runs the monitor loop until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) error { return w.mon.Run(ctx) }

// RunCycle runs a single probe and recovery pass.
func (w *Watchdog) RunCycle(ctx context.Context) (CycleResult, error) { return w.mon.RunCycle(ctx) }

// Check probes every target once without restarting anything.
func (w *Watchdog) Check(ctx context.Context) []ProbeReport { return w.mon.Check(ctx) }

func (w *Watchdog) Status() []TargetStatus { return w.mon.Status() }

func (w *Watchdog) TargetStatus(id string) (TargetStatus, bool) { return w.mon.TargetStatus(id) }

func (w *Watchdog) LastCycle() (CycleResult, bool) { return w.mon.LastCycle() }

func (w *Watchdog) Phase() Phase { return w.mon.Phase() }

// Handler returns the status API handler, with /metrics mounted when m is non-nil.
func (w *Watchdog) Handler(m http.Handler) http.Handler {
	r := server.NewRouter(w.mon, w.cfg.Server.BasePath)
	if m != nil {
		r.WithMetrics(m)
	}
	return r.Handler()
}

// Serve runs the monitor loop together with the status API ([server].listen)
// and the metrics endpoint ([metrics]) until ctx is cancelled or one of them
// fails. Metrics share the API listener when [metrics].listen is empty.
func (w *Watchdog) Serve(ctx context.Context) error {
	var metricsHandler http.Handler
	if w.cfg.Metrics.Enabled {
		if err := RegisterMetricsDefault(); err != nil {
			return err
		}
		metricsHandler = metrics.Handler()
	}

	g, ctx := errgroup.WithContext(ctx)
	if metricsHandler != nil && w.cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		srv := &http.Server{Addr: w.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: server.ReadHeaderTimeout}
		w.log.Info("Serving metrics", "listen", w.cfg.Metrics.Listen)
		g.Go(func() error { return server.Serve(ctx, srv) })
		metricsHandler = nil
	}
	if w.cfg.Server.Listen != "" {
		srv, err := server.NewServer(w.cfg.Server, w.mon, metricsHandler)
		if err != nil {
			return err
		}
		w.log.Info("Serving status API", "listen", w.cfg.Server.Listen,
			"base_path", w.cfg.Server.BasePath, "tls", srv.TLSConfig != nil)
		g.Go(func() error { return server.Serve(ctx, srv) })
	}
	g.Go(func() error { return w.mon.Run(ctx) })
	return g.Wait()
}

// Close releases the history sinks and the log file.
func (w *Watchdog) Close() error {
	errs := []error{w.history.Close()}
	for _, c := range w.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// AllUp reports whether every probe in rs found its port up.
func AllUp(rs []ProbeReport) bool { return monitor.AllUp(rs) }

// RegisterMetrics registers portwatch collectors with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// RegisterMetricsDefault registers portwatch collectors with the default registry.
func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler { return metrics.Handler() }
