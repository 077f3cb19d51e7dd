package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/common/apperr"
)

func TestAbortWithError_MapsKindToStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	AbortWithError(c, apperr.ErrInvalidCredentials)

	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !c.IsAborted() {
		t.Fatal("expected context to be aborted")
	}
}
