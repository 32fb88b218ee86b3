package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/selfheal/internal/fault"
	"github.com/loykin/selfheal/internal/instance"
	"github.com/loykin/selfheal/internal/liveness"
	"github.com/loykin/selfheal/internal/metrics"
)

// Router provides the service's HTTP handlers.
// Endpoints:
//   GET /         liveness: 200 with a static body while the instance is ready
//   GET /crash    fault injection: connection reset, process exits non-zero
//   GET /metrics  Prometheus metrics (only when enabled)
// Once the instance is terminated every request is dropped without a response.
type Router struct {
	inst     *instance.Instance
	liveness *liveness.Handler
	injector *fault.Injector
	log      *slog.Logger
	metrics  bool
}

const crashPath = "/crash"

// RouterOptions configures a Router. Injector defaults to one that calls os.Exit.
type RouterOptions struct {
	Instance *instance.Instance
	Injector *fault.Injector
	Logger   *slog.Logger
	Metrics  bool
}

func NewRouter(opts RouterOptions) *Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	inj := opts.Injector
	if inj == nil {
		inj = fault.NewInjector(opts.Instance, log)
	}
	return &Router{
		inst:     opts.Instance,
		liveness: liveness.New(opts.Instance),
		injector: inj,
		log:      log,
		metrics:  opts.Metrics,
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(r.recovery, r.accessLog, r.guard)
	g.GET("/", r.liveness.Handle)
	g.GET(crashPath, r.injector.Handle)
	if r.metrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// guard enforces the instance lifecycle: nothing is served after termination,
// and an embedded router that was never marked ready answers 503 on every
// route but /crash.
func (r *Router) guard(c *gin.Context) {
	switch r.inst.State() {
	case instance.StateTerminated:
		fault.Abandon(c)
	case instance.StateStarting:
		// the crash is unconditional
		if c.FullPath() == crashPath {
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusServiceUnavailable)
	default:
		c.Next()
	}
}

func (r *Router) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	r.log.Debug("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"remote", c.ClientIP(),
		"duration", time.Since(start))
}

// recovery turns handler panics into 500s like gin.Recovery, except
// http.ErrAbortHandler, which must reach net/http so the connection or
// stream is reset without a response.
func (r *Router) recovery(c *gin.Context) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
			panic(v)
		}
		r.log.Error("panic recovered", "path", c.Request.URL.Path, "panic", v, "stack", string(debug.Stack()))
		c.AbortWithStatus(http.StatusInternalServerError)
	}()
	c.Next()
}
