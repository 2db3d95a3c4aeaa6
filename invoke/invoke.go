// Package invoke is the HTTP surface of the mirror.
//
// The function runtime POSTs each event payload to /invoke. /reconcile
// rebuilds the index from the bucket. /health answers liveness checks and
// /ready checks the index can be reached.
// Status codes tell the runtime what to do with a failed invocation: 400 for
// a payload that will never succeed, 503 for a store failure worth retrying.
package invoke

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/datatrails/go-wallpaper-mirror/errhandling"
	"github.com/datatrails/go-wallpaper-mirror/logger"
	"github.com/datatrails/go-wallpaper-mirror/mirror"
	"github.com/datatrails/go-wallpaper-mirror/readiness"
	"github.com/datatrails/go-wallpaper-mirror/reconcile"
	"github.com/datatrails/go-wallpaper-mirror/tracing"
	"github.com/datatrails/go-wallpaper-mirror/wallpaper"
)

type Logger = logger.Logger

const (
	// RequestIDHeader carries the runtime's id for the invocation.
	RequestIDHeader    = "X-Fc-Request-Id"
	InvocationIDHeader = "X-Invocation-Id"
	// TraceIDHeader echoes the b3 trace id of the server span.
	TraceIDHeader = "X-B3-Traceid"

	defaultReconcileRate = 5
)

type EventHandler interface {
	HandleEvent(ctx context.Context, payload []byte) (mirror.Result, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, categories ...wallpaper.Category) (reconcile.Counts, error)
}

type Handlers struct {
	log        Logger
	events     EventHandler
	reconciler Reconciler
	limiter    *RateLimiter
	ready      readiness.Check
	proxies    []string
}

type HandlersOption func(*Handlers)

// WithReconciler enables /reconcile. Without it the route answers 501.
func WithReconciler(r Reconciler) HandlersOption {
	return func(h *Handlers) {
		h.reconciler = r
	}
}

// WithReadyCheck makes /ready report the result of check. Without it /ready
// behaves like /health.
func WithReadyCheck(check readiness.Check) HandlersOption {
	return func(h *Handlers) {
		h.ready = check
	}
}

// WithTrustedProxies lists the proxies whose X-Forwarded-For is believed when
// working out the client address. By default none are, so the rate limit on
// /reconcile keys on the peer address.
func WithTrustedProxies(proxies ...string) HandlersOption {
	return func(h *Handlers) {
		h.proxies = proxies
	}
}

// WithRateLimiter replaces the default limit on /reconcile.
func WithRateLimiter(l *RateLimiter) HandlersOption {
	return func(h *Handlers) {
		h.limiter = l
	}
}

func NewHandlers(log Logger, events EventHandler, opts ...HandlersOption) *Handlers {
	h := &Handlers{
		log:    log.WithIndex("component", "invoke"),
		events: events,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.limiter == nil {
		h.limiter = NewRateLimiter(log, defaultReconcileRate)
	}
	return h
}

// RateLimiter is exposed so its sweeper can be run as a listener.
func (h *Handlers) RateLimiter() *RateLimiter {
	return h.limiter
}

// Router builds the gin engine serving every route.
func (h *Handlers) Router() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(h.proxies); err != nil {
		h.log.Infof("trusted proxies %v: %v, trusting none", h.proxies, err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), h.logRequests())

	r.GET("/health", h.health)
	r.GET("/ready", h.readyz)
	r.POST("/invoke", h.invoke)
	r.POST("/reconcile", h.limiter.Middleware(), h.reconcile)

	r.NoRoute(func(c *gin.Context) {
		failure(c, http.StatusNotFound, "The page or route you requested does not exist", nil)
	})
	return r
}

func (h *Handlers) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := h.log.FromContext(c.Request.Context())
		defer log.Close()
		if traceID := tracing.TraceIDFromContext(c.Request.Context(), log); traceID != "" {
			c.Header(TraceIDHeader, traceID)
		}
		c.Next()
		log.DebugR("request", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), tracingHeaders(c.Request.Header))
	}
}

// tracingHeaders picks the trace state headers out of a request, keyed in
// lower case.
func tracingHeaders(header http.Header) map[string]string {
	found := map[string]string{}
	for key := range header {
		if tracing.IsTracingHeader(key) {
			found[strings.ToLower(key)] = header.Get(key)
		}
	}
	return found
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) readyz(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			failure(c, http.StatusServiceUnavailable, "not ready", err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) invoke(c *gin.Context) {
	ctx := c.Request.Context()
	if id := c.GetHeader(RequestIDHeader); id != "" {
		ctx = mirror.WithInvocationID(ctx, id)
	}
	id := mirror.InvocationID(ctx)
	ctx = mirror.WithInvocationID(ctx, id)
	c.Header(InvocationIDHeader, id)

	payload, err := c.GetRawData()
	if err != nil {
		failure(c, http.StatusBadRequest, "cannot read event payload", err)
		return
	}

	result, err := h.events.HandleEvent(ctx, payload)
	if err != nil {
		log := h.log.FromContext(ctx).WithIndex("invocation", id)
		defer log.Close()
		log.Infof("invocation failed: %v", err)
		failure(c, errhandling.HTTPStatus(err), "Failed to mirror event", err)
		return
	}
	success(c, fmt.Sprintf("Mirrored %d notifications", result.Added+result.Removed+result.Ignored), result)
}

func (h *Handlers) reconcile(c *gin.Context) {
	if h.reconciler == nil {
		failure(c, http.StatusNotImplemented, "Reconcile needs an object store to be configured", nil)
		return
	}

	var categories []wallpaper.Category
	if t, ok := c.GetQuery("type"); ok {
		category, err := wallpaper.ParseCategory(t)
		if err != nil {
			failure(c, http.StatusBadRequest, fmt.Sprintf("The device type '%s' is not recognized or supported.", t), err)
			return
		}
		categories = append(categories, category)
	}

	counts, err := h.reconciler.Reconcile(c.Request.Context(), categories...)
	if err != nil {
		h.log.Infof("reconcile failed: %v", err)
		failure(c, errhandling.HTTPStatus(err), "Failed to rebuild index", err)
		return
	}
	success(c, "Index rebuilt successfully", counts)
}
