package users

import (
	"errors"

	"github.com/google/uuid"

	"github.com/dshills/usersvc/users/emit"
)

// Option is a functional option for configuring a Service.
//
// Example:
//
//	svc, err := users.NewService(st,
//	    users.WithEmitter(emit.NewLogEmitter(logger)),
//	    users.WithMetrics(metrics),
//	)
type Option func(*serviceConfig) error

type serviceConfig struct {
	emitter emit.Emitter
	metrics *PrometheusMetrics
	newID   func() string
}

func defaultConfig() serviceConfig {
	return serviceConfig{
		emitter: emit.NewNullEmitter(),
		newID:   uuid.NewString,
	}
}

// WithEmitter sets where operation events are sent. Default: emit.NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *serviceConfig) error {
		if e == nil {
			return errors.New("emitter must not be nil")
		}
		cfg.emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus recording of operations and collection size.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *serviceConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithIDGenerator replaces the UUID v4 generator. Intended for tests that need
// predictable IDs; the generator must never repeat a value.
func WithIDGenerator(gen func() string) Option {
	return func(cfg *serviceConfig) error {
		if gen == nil {
			return errors.New("id generator must not be nil")
		}
		cfg.newID = gen
		return nil
	}
}
