package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"estatehub/internal/models"
	"estatehub/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := observability.Tracer
	observability.Tracer = tp.Tracer("tracing-test")
	t.Cleanup(func() { observability.Tracer = previous })
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware_RouteAndPrincipal(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	signedIn := func(c *fiber.Ctx) error {
		c.Locals("userID", uint(42))
		c.Locals("role", models.RoleAdmin)
		return c.Next()
	}
	app.Get("/api/listings/:id", signedIn, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/listings/7", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/listings/:id", spans[0].Name())
	attrs := spanAttrs(spans[0])
	assert.Equal(t, "/api/listings/:id", attrs["http.route"].AsString())
	assert.Equal(t, "42", attrs["enduser.id"].AsString())
	assert.Equal(t, "admin", attrs["enduser.role"].AsString())
	assert.EqualValues(t, 200, attrs["http.status_code"].AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracingMiddleware_ErrorStatus(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/api/questions/:id", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "missing")
	})
	app.Get("/api/tickets/stats", func(c *fiber.Ctx) error {
		return errors.New("database is down")
	})

	_, err := app.Test(httptest.NewRequest("GET", "/api/questions/9", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest("GET", "/api/tickets/stats", nil))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	notFound := spanAttrs(spans[0])
	assert.EqualValues(t, 404, notFound["http.status_code"].AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	_, anonymous := notFound["enduser.id"]
	assert.False(t, anonymous)

	assert.EqualValues(t, 500, spanAttrs(spans[1])["http.status_code"].AsInt64())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestTracingMiddleware_UnmatchedKeepsRawPath(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/api/listings", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/api/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/nowhere", spans[0].Name())
	_, routed := spanAttrs(spans[0])["http.route"]
	assert.False(t, routed)
}
