package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
)

// GetNotifications handles GET /notifications: the caller's unread
// notification rows.
func GetNotifications(c *gin.Context) {
	rows, err := model.GetUnreadNotifications(middleware.CurrentUserId(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": rows,
		"unread_count":  len(rows),
	})
}

// MarkNotificationsRead handles POST /notifications/mark-read.
func MarkNotificationsRead(c *gin.Context) {
	var body struct {
		Ids []uint `json:"identities" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	if err := model.MarkNotificationsRead(middleware.CurrentUserId(c), body.Ids); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
