// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spcledger/internal/core/apperror"
	"spcledger/pkg/logger"
)

// Recovery converts a panic in a handler into an INTERNAL_ERROR rendered by
// ErrorHandler. The panic is recorded on the request span.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := c.Request.Context()
			cause := fmt.Errorf("panic: %v", r)

			span := trace.SpanFromContext(ctx)
			span.RecordError(cause)
			span.SetStatus(codes.Error, "panic")

			logger.Error(ctx, "panic recovered",
				"route", c.FullPath(),
				"error", r,
				"stack", string(debug.Stack()),
			)
			_ = c.Error(apperror.NewInternal(cause).WithDetail("request_id", c.GetString(ctxRequestID)))
			c.Abort()
		}()
		c.Next()
	}
}
