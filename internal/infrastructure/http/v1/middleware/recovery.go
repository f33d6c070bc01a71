// Package middleware holds the gin middleware chain of the HTTP API.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"batterystock/internal/core/apperror"
	"batterystock/pkg/logger"
)

// Recovery turns a panic into an INTERNAL_ERROR response. The stack goes
// to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"panic", r,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)
			_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", r)).
				WithDetail("request_id", c.GetString("request_id")))
			c.Abort()
		}()
		c.Next()
	}
}
