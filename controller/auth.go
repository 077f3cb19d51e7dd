// Package controller adapts HTTP requests onto the auth/score/chat/room
// domain packages and shapes their results into JSON responses. Handlers
// stay thin: bind, delegate, translate errors through
// middleware.AbortWithError.
package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/auth"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/external"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
)

// Grant handles POST /oauth/token: every grant_type
// funnels through auth.Grant, which dispatches internally.
func Grant(c *gin.Context) {
	var body struct {
		GrantType    string `form:"grant_type" json:"grant_type"`
		ClientId     string `form:"client_id" json:"client_id"`
		ClientSecret string `form:"client_secret" json:"client_secret"`
		Username     string `form:"username" json:"username"`
		Password     string `form:"password" json:"password"`
		RefreshToken string `form:"refresh_token" json:"refresh_token"`
		Code         string `form:"code" json:"code"`
	}
	if err := c.ShouldBind(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "invalid_request"))
		return
	}

	resp, err := auth.Grant(c.Request.Context(), auth.GrantRequest{
		GrantType:    body.GrantType,
		ClientId:     body.ClientId,
		ClientSecret: body.ClientSecret,
		Username:     body.Username,
		Password:     body.Password,
		RefreshToken: body.RefreshToken,
		Code:         body.Code,
		APIVersion:   clientAPIVersion(c),
		ClientIP:     c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func clientAPIVersion(c *gin.Context) int {
	v, _ := strconv.Atoi(c.GetHeader("x-api-version"))
	return v
}

// Register handles POST /users.
func Register(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}

	user, err := auth.Register(c.Request.Context(), auth.RegisterRequest{
		Username:  body.Username,
		Email:     body.Email,
		Password:  body.Password,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, external.SubnetGeoLookup{})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.Id, "username": user.Username})
}

// VerifySession handles POST /session/verify.
func VerifySession(c *gin.Context) {
	var body struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}

	req := currentVerifyRequest(c, body.Code)
	if err := auth.VerifySession(c.Request.Context(), req); err != nil {
		writeVerifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// ReissueVerificationMail handles POST /session/verify/reissue and
// /session/verify/mail-fallback (both resend the mail code; the latter
// additionally downgrades a totp session, which auth.ReissueEmailCode
// already does unconditionally when the session isn't already `mail`).
func ReissueVerificationMail(c *gin.Context) {
	req := currentVerifyRequest(c, "")
	if err := auth.ReissueEmailCode(c.Request.Context(), req); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func currentVerifyRequest(c *gin.Context, code string) auth.VerifyRequest {
	userID := middleware.CurrentUserId(c)
	user, _ := model.GetUserById(userID)
	email := ""
	if user != nil {
		email = user.Email
	}
	jti, _ := tokenJTIFromBearer(c)
	return auth.VerifyRequest{
		UserId:    userID,
		JTI:       jti,
		Code:      code,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		UserEmail: email,
		Mailer:    external.SMTPMailer{},
	}
}

func tokenJTIFromBearer(c *gin.Context) (string, error) {
	raw := middleware.BearerToken(c)
	claims, err := auth.VerifyJWT(raw)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}

func writeVerifyError(c *gin.Context, err error) {
	if reasonErr, ok := err.(*auth.VerifyReasonError); ok {
		c.JSON(http.StatusForbidden, gin.H{"error": reasonErr.Reason})
		return
	}
	middleware.AbortWithError(c, err)
}

// RequestPasswordReset handles POST /password-reset/request.
func RequestPasswordReset(c *gin.Context) {
	var body struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	if err := auth.RequestPasswordReset(c.Request.Context(), body.Email, external.SMTPMailer{}); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// ResetPassword handles POST /password-reset/reset.
func ResetPassword(c *gin.Context) {
	var body struct {
		Email       string `json:"email" binding:"required"`
		Code        string `json:"code" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	if err := auth.ResetPassword(c.Request.Context(), body.Email, body.Code, body.NewPassword); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}
