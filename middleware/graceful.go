package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/common/graceful"
)

// TrackRequests counts in-flight requests so shutdown can drain them
// before the process exits.
func TrackRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		done := graceful.BeginRequest()
		defer done()
		c.Next()
	}
}
