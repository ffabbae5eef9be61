package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/portwatch/internal/config"
	"github.com/loykin/portwatch/internal/monitor"
	ptls "github.com/loykin/portwatch/internal/tls"
)

// StatusSource is the read side of a running monitor.
type StatusSource interface {
	Status() []monitor.TargetStatus
	TargetStatus(id string) (monitor.TargetStatus, bool)
	LastCycle() (monitor.CycleResult, bool)
	Phase() monitor.Phase
}

// Router provides embeddable read-only HTTP handlers for the watchdog.
// Endpoints:
//
//	GET {basePath}/status       all targets plus the last cycle
//	GET {basePath}/status/:id   one target, 404 when unknown
//	GET {basePath}/healthz      liveness of the monitor itself
//	GET {basePath}/metrics      Prometheus exposition, when attached
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	src      StatusSource
	basePath string
	metrics  http.Handler
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Phase     string                 `json:"phase"`
	LastCycle *monitor.CycleResult   `json:"last_cycle,omitempty"`
	Targets   []monitor.TargetStatus `json:"targets"`
}

type errorResp struct {
	Error string `json:"error"`
}

// NewRouter constructs a Router. Example basePath "/api" serves /api/status.
func NewRouter(src StatusSource, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath)}
}

// WithMetrics mounts h at {basePath}/metrics.
func (r *Router) WithMetrics(h http.Handler) *Router {
	r.metrics = h
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/status/:id", r.handleTarget)
	group.GET("/healthz", r.handleHealth)
	if r.metrics != nil {
		group.GET("/metrics", gin.WrapH(r.metrics))
	}
	return g
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := StatusResponse{
		Phase:   r.src.Phase().String(),
		Targets: r.src.Status(),
	}
	if last, ok := r.src.LastCycle(); ok {
		resp.LastCycle = &last
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleTarget(c *gin.Context) {
	id := c.Param("id")
	if !isTargetID(id) {
		c.JSON(http.StatusBadRequest, errorResp{Error: "target id must be a port number"})
		return
	}
	st, ok := r.src.TargetStatus(id)
	if !ok {
		c.JSON(http.StatusNotFound, errorResp{Error: "unknown target " + id})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "phase": r.src.Phase().String()})
}

// ReadHeaderTimeout bounds how long a client may take to send headers.
const ReadHeaderTimeout = 10 * time.Second

// NewServer builds an http.Server for cfg. TLS is configured from cfg.TLS.
func NewServer(cfg config.ServerConfig, src StatusSource, metrics http.Handler) (*http.Server, error) {
	tlsCfg, err := ptls.SetupTLS(cfg)
	if err != nil {
		return nil, err
	}
	r := NewRouter(src, cfg.BasePath)
	if metrics != nil {
		r.WithMetrics(metrics)
	}
	return &http.Server{
		Addr:              cfg.Listen,
		Handler:           r.Handler(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, nil
}

// Serve listens on srv.Addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, srv, ln)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if srv.TLSConfig != nil {
			errCh <- srv.ServeTLS(ln, "", "")
		} else {
			errCh <- srv.Serve(ln)
		}
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
