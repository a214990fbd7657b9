package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/usersvc/config"
	"github.com/dshills/usersvc/users"
	"github.com/dshills/usersvc/users/emit"
	"github.com/dshills/usersvc/users/httpapi"
	"github.com/dshills/usersvc/users/store"
)

// app is a fully wired service ready to serve.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	handler http.Handler
	closers []func(context.Context) error
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var zc zap.Config
	if cfg.Format == config.FormatText {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func newStore(ctx context.Context, backend string, logger *zap.Logger) (store.Store[users.User], error) {
	switch backend {
	case config.BackendMemory:
		return store.NewMemStore[users.User](logger.Named("store")), nil
	case config.BackendSQLite:
		return store.NewSQLiteStore[users.User](ctx)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// buildApp wires store, emitters, metrics, service and router. The returned
// app's closers must run on shutdown even if serving fails.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	st, err := newStore(ctx, cfg.Store.Backend, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return st.Close() })

	emitters := []emit.Emitter{emit.NewLogEmitter(logger.Named("events"))}
	routerOpts := []httpapi.Option{httpapi.WithLogger(logger.Named("http"))}
	if cfg.Tracing.Enabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		tracer := tp.Tracer(cfg.Tracing.ServiceName)
		otelEmitter := emit.NewOTelEmitter(tracer)
		emitters = append(emitters, otelEmitter)
		routerOpts = append(routerOpts, httpapi.WithTracer(tracer))
		// closers run in reverse, so spans are flushed before the provider shuts down.
		a.closers = append(a.closers, tp.Shutdown, otelEmitter.Flush)
	}

	svcOpts := []users.Option{users.WithEmitter(emit.NewMultiEmitter(emitters...))}
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := users.NewPrometheusMetrics(registry)
		svcOpts = append(svcOpts, users.WithMetrics(metrics))
		routerOpts = append(routerOpts, httpapi.WithMetrics(metrics, registry))
	}

	svc, err := users.NewService(st, svcOpts...)
	if err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	router, err := httpapi.New(svc, routerOpts...)
	if err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	a.handler = router

	return a, nil
}

// close runs closers in reverse order and joins their errors.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// serve runs the HTTP server on ln until ctx is canceled, then shuts down
// gracefully within the configured timeout.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", ln.Addr().String()), zap.String("store", a.cfg.Store.Backend))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := a.close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// run is the serve command body: build everything from cfg and block until ctx
// is canceled.
func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		_ = a.close(ctx)
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}

	return a.serve(ctx, ln)
}
