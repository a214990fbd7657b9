// Package httpapi exposes users.Service over HTTP using gin.
//
// Routes:
//
//	POST   /users       create, 201 + user JSON
//	GET    /users/:id   fetch, 200 + user JSON
//	PUT    /users/:id   replace name and email, 200 + user JSON
//	DELETE /users/:id   remove, 204 with no body
//	GET    /healthz     store health, 200 ok or 503 unavailable
//	GET    /metrics     Prometheus exposition (only with WithMetrics)
//
// Every error response has the shape {"error": "<message>"}.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dshills/usersvc/users"
)

// Messages for failures detected by the HTTP layer itself.
const (
	MsgInvalidBody   = "Request body must be valid JSON."
	MsgRouteNotFound = "Not found."
)

// Option configures the router built by New.
type Option func(*routerConfig)

type routerConfig struct {
	logger   *zap.Logger
	metrics  *users.PrometheusMetrics
	gatherer prometheus.Gatherer
	tracer   trace.Tracer
}

// WithLogger sets the logger used for access logs and internal errors.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *routerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics records request metrics into m and serves gatherer at /metrics.
// gatherer is normally the registry m was registered with.
func WithMetrics(m *users.PrometheusMetrics, gatherer prometheus.Gatherer) Option {
	return func(cfg *routerConfig) {
		cfg.metrics = m
		cfg.gatherer = gatherer
	}
}

// WithTracer starts a server span per request. Service operations handled
// within the request join its trace.
func WithTracer(tracer trace.Tracer) Option {
	return func(cfg *routerConfig) {
		cfg.tracer = tracer
	}
}

// New builds the gin engine serving svc.
//
// gin's mode is process-global; callers set it (gin.SetMode) before calling New.
func New(svc *users.Service, opts ...Option) (*gin.Engine, error) {
	if svc == nil {
		return nil, errors.New("service must not be nil")
	}

	cfg := routerConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := gin.New()
	r.Use(requestID())
	if cfg.tracer != nil {
		r.Use(traceRequests(cfg.tracer))
	}
	r.Use(accessLog(cfg.logger))
	if cfg.metrics != nil {
		r.Use(recordMetrics(cfg.metrics))
	}
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		cfg.logger.Error("panic while handling request",
			zap.Any("panic", recovered),
			zap.String("request_id", users.RequestIDFrom(c.Request.Context())),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: users.MsgInternal})
	}))

	h := &handler{svc: svc, log: cfg.logger}

	r.POST("/users", h.create)
	r.GET("/users/:id", h.get)
	r.PUT("/users/:id", h.update)
	r.DELETE("/users/:id", h.delete)

	r.GET("/healthz", h.healthz)
	if cfg.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{})))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: MsgRouteNotFound})
	})

	return r, nil
}
