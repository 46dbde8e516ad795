package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request and tags it with the request ID.
// It must run after RequestID and before logger.GinMiddleware so request logs
// carry the trace ID.
func Tracing(serviceName string, provider trace.TracerProvider) gin.HandlersChain {
	return gin.HandlersChain{
		otelgin.Middleware(serviceName, otelgin.WithTracerProvider(provider)),
		tagSpan,
	}
}

// tagSpan runs inside the otelgin span, so attributes land before it ends
func tagSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if span.IsRecording() {
		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
	}
	c.Next()
}
