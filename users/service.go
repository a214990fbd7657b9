package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/usersvc/users/emit"
	"github.com/dshills/usersvc/users/store"
)

// Operation names used in events and metrics.
const (
	OpCreate = "create"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Service owns the user collection and implements the four record operations.
//
// All failures are detected before any mutation. Validation always runs before
// the existence lookup, so an update with missing fields reports
// ErrInvalidInput even for an unknown ID.
//
// Service is safe for concurrent use as long as its store is; every shipped
// store.Store implementation is.
type Service struct {
	store   store.Store[User]
	emitter emit.Emitter
	metrics *PrometheusMetrics
	newID   func() string
}

// NewService creates a Service over st.
//
// Example:
//
//	svc, err := users.NewService(store.NewMemStore[users.User](logger),
//	    users.WithEmitter(emit.NewLogEmitter(logger)),
//	)
func NewService(st store.Store[User], opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("store must not be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("invalid service option: %w", err)
		}
	}

	return &Service{
		store:   st,
		emitter: cfg.emitter,
		metrics: cfg.metrics,
		newID:   cfg.newID,
	}, nil
}

// Create validates name and email, assigns a fresh ID and appends the record.
func (s *Service) Create(ctx context.Context, name, email string) (User, error) {
	start := time.Now()

	if !hasRequiredFields(name, email) {
		err := invalidInput(MsgCreateFieldsRequired)
		s.observe(ctx, OpCreate, "", start, err)
		return User{}, err
	}

	u := User{ID: s.newID(), Name: name, Email: email}
	if err := s.store.Insert(ctx, u.ID, u); err != nil {
		serr := internal(fmt.Errorf("insert user %s: %w", u.ID, err))
		s.observe(ctx, OpCreate, u.ID, start, serr)
		return User{}, serr
	}

	s.observe(ctx, OpCreate, u.ID, start, nil)
	return u, nil
}

// Get returns the record with exactly this ID.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	start := time.Now()

	u, err := s.store.Get(ctx, id)
	if err != nil {
		serr := s.translate(id, "get", err)
		s.observe(ctx, OpGet, id, start, serr)
		return User{}, serr
	}

	s.observe(ctx, OpGet, id, start, nil)
	return u, nil
}

// Update replaces name and email of an existing record, keeping its ID.
func (s *Service) Update(ctx context.Context, id, name, email string) (User, error) {
	start := time.Now()

	if !hasRequiredFields(name, email) {
		err := invalidInput(MsgUpdateFieldsRequired)
		s.observe(ctx, OpUpdate, id, start, err)
		return User{}, err
	}

	u := User{ID: id, Name: name, Email: email}
	if err := s.store.Replace(ctx, id, u); err != nil {
		serr := s.translate(id, "replace", err)
		s.observe(ctx, OpUpdate, id, start, serr)
		return User{}, serr
	}

	s.observe(ctx, OpUpdate, id, start, nil)
	return u, nil
}

// Delete removes the record with this ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	start := time.Now()

	if err := s.store.Delete(ctx, id); err != nil {
		serr := s.translate(id, "delete", err)
		s.observe(ctx, OpDelete, id, start, serr)
		return serr
	}

	s.observe(ctx, OpDelete, id, start, nil)
	return nil
}

// Count returns the size of the collection.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, internal(fmt.Errorf("count users: %w", err))
	}
	return n, nil
}

// Ping checks that the underlying store can serve requests.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return internal(fmt.Errorf("store unavailable: %w", err))
	}
	return nil
}

// translate maps a store error to the service taxonomy.
func (s *Service) translate(id, action string, err error) *ServiceError {
	if errors.Is(err, store.ErrNotFound) {
		return notFound()
	}
	return internal(fmt.Errorf("%s user %s: %w", action, id, err))
}

// observe emits the operation event and updates metrics.
func (s *Service) observe(ctx context.Context, op, userID string, start time.Time, err error) {
	meta := map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	}

	msg := successMsg(op)
	outcome := "ok"
	switch CodeOf(err) {
	case "":
	case CodeInvalidInput:
		msg, outcome = emit.MsgInvalidInput, "invalid_input"
	case CodeNotFound:
		msg, outcome = emit.MsgNotFound, "not_found"
	default:
		msg, outcome = emit.MsgStoreError, "error"
	}
	if err != nil {
		meta["error"] = err.Error()
	}

	mutated := err == nil && op != OpGet
	if mutated && s.metrics != nil {
		if n, cerr := s.store.Count(ctx); cerr == nil {
			meta["count"] = n
			s.metrics.SetUsers(n)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordOperation(op, outcome)
	}

	s.emitter.Emit(emit.Event{
		RequestID:   RequestIDFrom(ctx),
		Op:          op,
		UserID:      userID,
		Msg:         msg,
		SpanContext: trace.SpanContextFromContext(ctx),
		Meta:        meta,
	})
}

func successMsg(op string) string {
	switch op {
	case OpCreate:
		return emit.MsgUserCreated
	case OpUpdate:
		return emit.MsgUserUpdated
	case OpDelete:
		return emit.MsgUserDeleted
	default:
		return emit.MsgUserFetched
	}
}
