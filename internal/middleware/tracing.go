package middleware

import (
	"errors"
	"strconv"
	"strings"

	"estatehub/internal/models"
	"estatehub/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request and propagates it through
// the user context. Once the handler has run the span is renamed to the
// matched route pattern and tagged with the authenticated principal.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())
		if requestID, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", requestID))
		}
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		if pattern, ok := matchedRoute(c); ok {
			span.SetName(c.Method() + " " + pattern)
			span.SetAttributes(attribute.String("http.route", pattern))
		}
		if id, ok := c.Locals("userID").(uint); ok && id != 0 {
			span.SetAttributes(attribute.String("enduser.id", strconv.FormatUint(uint64(id), 10)))
		}
		if role, ok := c.Locals("role").(models.Role); ok && role != "" {
			span.SetAttributes(attribute.String("enduser.role", string(role)))
		}

		status := responseStatus(c, err)
		span.SetAttributes(attribute.Int("http.status_code", status))
		if err != nil {
			span.RecordError(err)
		}
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
		return err
	}
}

// matchedRoute returns the pattern of the endpoint that served the request.
// Prefix-only middleware routes, left in place when nothing matched, are not
// endpoints.
func matchedRoute(c *fiber.Ctx) (string, bool) {
	route := c.Route()
	if route == nil || route.Path == "" {
		return "", false
	}
	if len(route.Params) > 0 || strings.EqualFold(route.Path, c.Path()) {
		return route.Path, true
	}
	return "", false
}

// responseStatus is the status the client will see. When the handler returned
// an error the ErrorHandler has not written the response yet.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
