package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/common/i18n"
)

// Language stores the request's preferred language for i18n.Translate.
// Only the primary tag of the first Accept-Language entry is considered.
func Language() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.GetHeader("Accept-Language")
		if idx := strings.IndexAny(lang, ",;"); idx >= 0 {
			lang = lang[:idx]
		}
		if idx := strings.Index(lang, "-"); idx >= 0 {
			lang = lang[:idx]
		}
		c.Set(i18n.ContextKey, strings.ToLower(strings.TrimSpace(lang)))
		c.Next()
	}
}
