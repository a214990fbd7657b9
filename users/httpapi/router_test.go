package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/usersvc/users"
	"github.com/dshills/usersvc/users/emit"
	"github.com/dshills/usersvc/users/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fixture struct {
	router http.Handler
	store  *store.MemStore[users.User]
	events *emit.BufferedEmitter
	logs   *observer.ObservedLogs
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st := store.NewMemStore[users.User](nil)
	t.Cleanup(func() { _ = st.Close() })

	events := emit.NewBufferedEmitter()
	svc, err := users.NewService(st, users.WithEmitter(events))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	router, err := New(svc, append([]Option{WithLogger(zap.New(core))}, opts...)...)
	require.NoError(t, err)

	return &fixture{router: router, store: st, events: events, logs: logs}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) users.User {
	t.Helper()
	var u users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u), "body: %s", rec.Body.String())
	return u
}

func (f *fixture) size(t *testing.T) int {
	t.Helper()
	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestNew_RequiresService(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

// TestRouter_Scenario walks the create/get/update/delete lifecycle of one record.
func TestRouter_Scenario(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	created := decodeUser(t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Ada", created.Name)
	assert.Equal(t, "ada@example.com", created.Email)

	rec = f.do(t, http.MethodGet, "/users/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decodeUser(t, rec))

	rec = f.do(t, http.MethodPut, "/users/"+created.ID, `{"name":"Ada L.","email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, users.User{ID: created.ID, Name: "Ada L.", Email: "ada@example.com"}, decodeUser(t, rec))

	rec = f.do(t, http.MethodDelete, "/users/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/users/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"User not found."}`, rec.Body.String())
}

func TestRouter_UserJSONShape(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Len(t, raw, 3)
	assert.IsType(t, "", raw["id"])
	assert.Equal(t, "Ada", raw["name"])
	assert.Equal(t, "ada@example.com", raw["email"])
}

func TestRouter_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"ada@example.com"}`},
		{"missing email", `{"name":"Ada"}`},
		{"empty name", `{"name":"","email":"ada@example.com"}`},
		{"null email", `{"name":"Ada","email":null}`},
		{"empty object", `{}`},
		{"empty body", ``},
		{"json null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(t, http.MethodPost, "/users", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Both name and email are required."}`, rec.Body.String())
			assert.Zero(t, f.size(t))
		})
	}
}

func TestRouter_MalformedBody(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
	}{
		{"truncated create", http.MethodPost, `{"name":"Ada"`},
		{"truthy number name", http.MethodPost, `{"name":42,"email":"a@b.c"}`},
		{"true email", http.MethodPut, `{"name":"Ada","email":true}`},
		{"object name", http.MethodPost, `{"name":{"first":"Ada"},"email":"a@b.c"}`},
		{"garbage update", http.MethodPut, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			path := "/users"
			if tt.method == http.MethodPut {
				path = "/users/some-id"
			}

			rec := f.do(t, tt.method, path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Request body must be valid JSON."}`, rec.Body.String())
			assert.Zero(t, f.size(t))
		})
	}
}

func TestRouter_FalsyValuesAreMissing(t *testing.T) {
	bodies := []struct {
		name string
		body string
	}{
		{"zero name", `{"name":0,"email":"a@b.c"}`},
		{"false name", `{"name":false,"email":"a@b.c"}`},
		{"zero email", `{"name":"Ada","email":0}`},
		{"missing wins over non-string", `{"name":0,"email":true}`},
		{"empty array", `[]`},
		{"array of fields", `["Ada","a@b.c"]`},
		{"string body", `"Ada"`},
		{"number body", `7`},
	}
	methods := []struct {
		method  string
		path    string
		message string
	}{
		{http.MethodPost, "/users", users.MsgCreateFieldsRequired},
		{http.MethodPut, "/users/x", users.MsgUpdateFieldsRequired},
	}

	for _, m := range methods {
		for _, tt := range bodies {
			t.Run(m.method+" "+tt.name, func(t *testing.T) {
				f := newFixture(t)

				rec := f.do(t, m.method, m.path, tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.JSONEq(t, `{"error":"`+m.message+`"}`, rec.Body.String())
				assert.Zero(t, f.size(t))
			})
		}
	}
}

func TestRouter_UpdateErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	existing := decodeUser(t, rec)

	tests := []struct {
		name     string
		id       string
		body     string
		wantCode int
		wantBody string
	}{
		{"unknown id", "missing", `{"name":"Bob","email":"bob@example.com"}`, http.StatusNotFound,
			`{"error":"User not found."}`},
		{"unknown id missing fields", "missing", `{"name":"Bob"}`, http.StatusBadRequest,
			`{"error":"Both name and email are required for update."}`},
		{"existing id missing fields", existing.ID, `{"email":"x@example.com"}`, http.StatusBadRequest,
			`{"error":"Both name and email are required for update."}`},
		{"partial update is rejected", existing.ID, `{"name":"Only Name"}`, http.StatusBadRequest,
			`{"error":"Both name and email are required for update."}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPut, "/users/"+tt.id, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}

	rec = f.do(t, http.MethodGet, "/users/"+existing.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, existing, decodeUser(t, rec), "failed updates must leave the record intact")
}

func TestRouter_UpdateIgnoresBodyID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	existing := decodeUser(t, rec)

	rec = f.do(t, http.MethodPut, "/users/"+existing.ID, `{"id":"hijack","name":"Ada","email":"new@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, existing.ID, decodeUser(t, rec).ID)

	rec = f.do(t, http.MethodGet, "/users/hijack", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_DeleteTwice(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	u := decodeUser(t, rec)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/users/"+u.ID, "").Code)

	rec = f.do(t, http.MethodDelete, "/users/"+u.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"User not found."}`, rec.Body.String())
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found."}`, rec.Body.String())
}

func TestRouter_Healthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	require.NoError(t, f.store.Close())

	rec = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
	assert.Equal(t, 1, f.logs.FilterMessage("health check failed").Len())
}

func TestRouter_RequestID(t *testing.T) {
	f := newFixture(t)

	t.Run("generated", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
		id := rec.Header().Get(HeaderRequestID)
		require.NotEmpty(t, id)

		history := f.events.GetHistory(id)
		require.Len(t, history, 1)
		assert.Equal(t, emit.MsgUserCreated, history[0].Msg)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/missing", nil)
		req.Header.Set(HeaderRequestID, "client-id-1")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, "client-id-1", rec.Header().Get(HeaderRequestID))
		history := f.events.GetHistory("client-id-1")
		require.Len(t, history, 1)
		assert.Equal(t, emit.MsgNotFound, history[0].Msg)
	})

	t.Run("oversized header is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		got := rec.Header().Get(HeaderRequestID)
		assert.NotEmpty(t, got)
		assert.LessOrEqual(t, len(got), maxRequestIDLen)
	})
}

func TestRouter_AccessLog(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/users/abc", "")

	entries := f.logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/users/abc", fields["path"])
	assert.Equal(t, "/users/:id", fields["route"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
}

func TestRouter_StoreFailureIs500(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	rec := f.do(t, http.MethodGet, "/users/any", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error."}`, rec.Body.String())

	assert.Equal(t, 1, f.logs.FilterMessage("request failed").Len())
}

func TestRouter_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := users.NewPrometheusMetrics(registry)
	f := newFixture(t, WithMetrics(metrics, registry))

	f.do(t, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	f.do(t, http.MethodGet, "/users/a", "")
	f.do(t, http.MethodGet, "/users/b", "")
	f.do(t, http.MethodGet, "/nope", "")

	expected := `
# HELP usersvc_http_requests_total HTTP requests handled, by method, route template and status code
# TYPE usersvc_http_requests_total counter
usersvc_http_requests_total{method="GET",route="/users/:id",status="404"} 2
usersvc_http_requests_total{method="GET",route="unmatched",status="404"} 1
usersvc_http_requests_total{method="POST",route="/users",status="201"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, bytes.NewBufferString(expected), "usersvc_http_requests_total"))

	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "usersvc_http_request_duration_ms")
}

func TestRouter_TracingJoinsOperationSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	st := store.NewMemStore[users.User](nil)
	t.Cleanup(func() { _ = st.Close() })
	svc, err := users.NewService(st, users.WithEmitter(emit.NewOTelEmitter(tp.Tracer("test"))))
	require.NoError(t, err)
	router, err := New(svc, WithTracer(tp.Tracer("test")))
	require.NoError(t, err)

	spanNamed := func(t *testing.T, name string) sdktrace.ReadOnlySpan {
		t.Helper()
		for _, s := range exporter.GetSpans().Snapshots() {
			if s.Name() == name {
				return s
			}
		}
		require.Failf(t, "span not exported", "no span named %q", name)
		return nil
	}

	t.Run("request span parents operation span", func(t *testing.T) {
		exporter.Reset()

		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		server := spanNamed(t, "POST /users")
		op := spanNamed(t, "users.create")
		assert.Equal(t, trace.SpanKindServer, server.SpanKind())
		assert.Equal(t, server.SpanContext().TraceID(), op.SpanContext().TraceID())
		assert.Equal(t, server.SpanContext().SpanID(), op.Parent().SpanID())
	})

	t.Run("inbound traceparent is continued", func(t *testing.T) {
		exporter.Reset()

		req := httptest.NewRequest(http.MethodGet, "/users/missing", nil)
		req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)

		server := spanNamed(t, "GET /users/:id")
		op := spanNamed(t, "users.get")
		assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", server.SpanContext().TraceID().String())
		assert.Equal(t, "b7ad6b7169203331", server.Parent().SpanID().String())
		assert.Equal(t, server.SpanContext().TraceID(), op.SpanContext().TraceID())
	})
}
