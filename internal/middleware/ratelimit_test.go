package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime/multipart"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/marshalljacobs12/upredis/internal/events"
	"github.com/marshalljacobs12/upredis/internal/middleware"
	"github.com/marshalljacobs12/upredis/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const (
	testHostAddr  = "192.168.1.1:12345"
	testUserAgent = "TestAgent/1.0"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), huma.DefaultConfig("Test", "1.0.0"))
}

type mockLimiter struct {
	result      ratelimit.Result
	err         error
	capturedKey *string
}

func (m *mockLimiter) Limit(_ context.Context, key string) (ratelimit.Result, error) {
	if m.capturedKey != nil {
		*m.capturedKey = key
	}

	return m.result, m.err
}

type mockEventPublisher struct {
	events []*events.DecisionEvent
}

func (m *mockEventPublisher) PublishDecision(event *events.DecisionEvent) error {
	m.events = append(m.events, event)

	return nil
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	headers    map[string]string
	setHeaders map[string]string
	host       string
	written    []byte
	statusCode int
	method     string
	operation  *huma.Operation
}

func newMockHumaContext() *mockHumaContext {
	return &mockHumaContext{
		headers:    make(map[string]string),
		setHeaders: make(map[string]string),
		method:     "GET",
	}
}

func (m *mockHumaContext) Operation() *huma.Operation {
	return m.operation
}
func (m *mockHumaContext) Context() context.Context              { return context.Background() }
func (m *mockHumaContext) TLS() *tls.ConnectionState             { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion            { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                        { return m.method }
func (m *mockHumaContext) Host() string                          { return m.host }
func (m *mockHumaContext) RemoteAddr() string                    { return m.host }
func (m *mockHumaContext) URL() url.URL                          { return url.URL{Path: "/test"} }
func (m *mockHumaContext) Param(_ string) string                 { return "" }
func (m *mockHumaContext) Query(_ string) string                 { return "" }
func (m *mockHumaContext) Header(name string) string             { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string)) {}
func (m *mockHumaContext) BodyReader() io.Reader                 { return nil }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) {
	return nil, errMultipartNotSupported
}
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error { return nil }
func (m *mockHumaContext) SetStatus(code int)                { m.statusCode = code }
func (m *mockHumaContext) Status() int                       { return m.statusCode }
func (m *mockHumaContext) AppendHeader(name, value string)   { m.setHeaders[name] = value }
func (m *mockHumaContext) SetHeader(name, value string)      { m.setHeaders[name] = value }
func (m *mockHumaContext) BodyWriter() io.Writer             { return &mockBodyWriter{ctx: m} }

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (n int, err error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows request and sets quota headers", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{result: ratelimit.Result{Allowed: true, Remaining: 4, Limit: 5}}
		mw := middleware.RateLimiter(api, limiter, ratelimit.AlgorithmFixedWindow, nil, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.host = testHostAddr
		ctx.headers["User-Agent"] = testUserAgent

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.True(t, nextCalled, "next should be called when allowed")
		assert.Equal(t, "5", ctx.setHeaders["X-RateLimit-Limit"])
		assert.Equal(t, "4", ctx.setHeaders["X-RateLimit-Remaining"])
	})

	t.Run("returns 429 with Retry-After when denied", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{result: ratelimit.Result{
			Allowed:    false,
			Remaining:  0,
			Limit:      5,
			RetryAfter: 30 * time.Second,
		}}
		mw := middleware.RateLimiter(api, limiter, ratelimit.AlgorithmFixedWindow, nil, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.host = testHostAddr
		ctx.headers["User-Agent"] = testUserAgent

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.False(t, nextCalled, "next should not be called when denied")
		assert.Equal(t, 429, ctx.statusCode)
		assert.Equal(t, "30", ctx.setHeaders["Retry-After"])
		assert.Contains(t, string(ctx.written), "rate limit")
	})

	t.Run("returns 500 when the limiter fails", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{err: errors.New("redis unreachable")}
		mw := middleware.RateLimiter(api, limiter, ratelimit.AlgorithmFixedWindow, nil, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.host = testHostAddr

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.False(t, nextCalled)
		assert.Equal(t, 500, ctx.statusCode)
	})

	t.Run("same client yields the same key", func(t *testing.T) {
		api := newTestAPI()

		var capturedKey string

		limiter := &mockLimiter{
			result:      ratelimit.Result{Allowed: true},
			capturedKey: &capturedKey,
		}
		mw := middleware.RateLimiter(api, limiter, ratelimit.AlgorithmFixedWindow, nil, zap.NewNop())

		ctx1 := newMockHumaContext()
		ctx1.host = testHostAddr
		ctx1.headers["User-Agent"] = testUserAgent

		mw(ctx1, func(_ huma.Context) {})

		key1 := capturedKey

		ctx2 := newMockHumaContext()
		ctx2.host = testHostAddr
		ctx2.headers["User-Agent"] = testUserAgent

		mw(ctx2, func(_ huma.Context) {})

		assert.Equal(t, key1, capturedKey, "same IP and User-Agent should produce same key")

		ctx3 := newMockHumaContext()
		ctx3.host = testHostAddr
		ctx3.headers["User-Agent"] = "DifferentAgent/2.0"

		mw(ctx3, func(_ huma.Context) {})

		assert.NotEqual(t, key1, capturedKey, "different User-Agent should produce different key")
	})

	t.Run("prefers X-Forwarded-For over host", func(t *testing.T) {
		api := newTestAPI()

		var capturedKey string

		limiter := &mockLimiter{
			result:      ratelimit.Result{Allowed: true},
			capturedKey: &capturedKey,
		}
		mw := middleware.RateLimiter(api, limiter, ratelimit.AlgorithmFixedWindow, nil, zap.NewNop())

		ctx1 := newMockHumaContext()
		ctx1.host = "10.0.0.1:12345"
		ctx1.headers["X-Forwarded-For"] = "203.0.113.195, 70.41.3.18"
		ctx1.headers["User-Agent"] = testUserAgent

		mw(ctx1, func(_ huma.Context) {})

		key1 := capturedKey

		ctx2 := newMockHumaContext()
		ctx2.host = "10.0.0.2:54321"
		ctx2.headers["X-Forwarded-For"] = "203.0.113.195"
		ctx2.headers["User-Agent"] = testUserAgent

		mw(ctx2, func(_ huma.Context) {})

		assert.Equal(t, key1, capturedKey, "same forwarded client should share a key")
	})

	t.Run("publishes a decision event per request", func(t *testing.T) {
		api := newTestAPI()
		publisher := &mockEventPublisher{}
		limiter := &mockLimiter{result: ratelimit.Result{Allowed: true, Remaining: 1, Limit: 2}}
		mw := middleware.RateLimiter(api, limiter, ratelimit.AlgorithmSlidingWindow, publisher, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.host = testHostAddr
		ctx.headers["User-Agent"] = testUserAgent

		mw(ctx, func(_ huma.Context) {})

		assert.Len(t, publisher.events, 1)
		assert.True(t, publisher.events[0].Allowed)
		assert.Equal(t, string(ratelimit.AlgorithmSlidingWindow), publisher.events[0].Algorithm)
	})
}
