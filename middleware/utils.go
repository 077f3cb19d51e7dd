package middleware

import (
	"errors"
	"strconv"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/i18n"
)

// AbortWithError maps err to the {error, msg_key, hint?} envelope and
// aborts the request with the kind's HTTP status.
func AbortWithError(c *gin.Context, err error) {
	status, envelope := apperr.ToEnvelope(err)
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}
	if translated := i18n.Translate(c, envelope.MsgKey); translated != envelope.MsgKey {
		envelope.Hint = translated
	}
	logger := gmw.GetLogger(c)
	if status >= 500 {
		logger.Error("request failed", zap.Int("status_code", status), zap.Error(err))
	} else {
		logger.Warn("request failed", zap.Int("status_code", status), zap.Error(err))
	}
	c.JSON(status, envelope)
	c.Abort()
}
