package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/logger"
)

// PanicRecover converts an unhandled panic in any handler into a 500
// response instead of crashing the process, logging the stack trace for
// later triage.
func PanicRecover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Logger.Error("panic detected",
					zap.Any("panic", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path))
				_, envelope := apperr.ToEnvelope(apperr.New(apperr.KindInternal, "internal_error"))
				c.JSON(http.StatusInternalServerError, envelope)
				c.Abort()
			}
		}()
		c.Next()
	}
}
