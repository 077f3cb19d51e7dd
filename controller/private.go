package controller

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/appctx"
	"github.com/aquareto/aquareto-server/auth"
	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/random"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/score"
)

// ChangePassword handles POST /api/private/password: requires TOTP (or a
// backup code) when enrolled, the current password otherwise; revokes all
// sessions on success.
func ChangePassword(c *gin.Context) {
	var body struct {
		CurrentPassword string `json:"current_password"`
		Code            string `json:"code"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	userID := middleware.CurrentUserId(c)
	if err := auth.ChangePassword(c.Request.Context(), userID, body.CurrentPassword, body.Code, body.NewPassword); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TotpSetupStart handles POST /api/private/totp/start.
func TotpSetupStart(c *gin.Context) {
	user, err := model.GetUserById(middleware.CurrentUserId(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	secret, uri, err := auth.TotpSetupStart(c.Request.Context(), user.Id, user.Username, user.Email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "uri": uri})
}

// TotpSetupFinish handles POST /api/private/totp/finish: confirms the
// pending secret and returns the freshly generated backup codes, shown to
// the user exactly once.
func TotpSetupFinish(c *gin.Context) {
	var body struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	user, err := model.GetUserById(middleware.CurrentUserId(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	backupCodes, err := auth.TotpSetupFinish(c.Request.Context(), user.Id, user.Email, body.Code)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backup_codes": backupCodes})
}

// TotpDisable handles DELETE /api/private/totp: requires a current TOTP
// code or backup code before removing the key.
func TotpDisable(c *gin.Context) {
	var body struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	userID := middleware.CurrentUserId(c)
	key, err := model.GetTotpKey(userID)
	if err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "totp_not_enabled"))
		return
	}

	ok := auth.VerifyTotpWithReplayGuard(c.Request.Context(), userID, key.Secret, body.Code)
	if !ok && len(body.Code) == 10 {
		ok, _ = auth.VerifyBackupCode(userID, body.Code)
	}
	if !ok {
		middleware.AbortWithError(c, apperr.New(apperr.KindAuthentication, "incorrect_key"))
		return
	}
	if err := model.DeleteTotpKey(userID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RenameUser handles POST /api/private/rename.
func RenameUser(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	if model.IsUsernameTaken(body.Username) {
		middleware.AbortWithError(c, apperr.New(apperr.KindConflict, "duplicate_username"))
		return
	}
	user, err := model.GetUserById(middleware.CurrentUserId(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := user.Rename(body.Username); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	cache.InvalidateUser(c.Request.Context(), user.Id)
	c.JSON(http.StatusOK, gin.H{"username": user.Username})
}

// UpdatePreferences handles POST /api/private/preferences: display
// customization and active ruleset. Absent fields are left untouched.
func UpdatePreferences(c *gin.Context) {
	var body struct {
		PlayMode      *int    `json:"playmode"`
		ProfileColour *string `json:"profile_colour"`
		ProfileHue    *int    `json:"profile_hue"`
		CoverURL      *string `json:"cover_url"`
		PageRaw       *string `json:"page_raw"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}

	fields := map[string]any{}
	if body.PlayMode != nil {
		fields["play_mode"] = *body.PlayMode
	}
	if body.ProfileColour != nil {
		fields["profile_colour"] = *body.ProfileColour
	}
	if body.ProfileHue != nil {
		fields["profile_hue"] = *body.ProfileHue
	}
	if body.CoverURL != nil {
		fields["cover_url"] = *body.CoverURL
	}
	if body.PageRaw != nil {
		fields["page_raw"] = *body.PageRaw
		fields["page_html"] = appctx.BBCode.Render(*body.PageRaw)
	}

	userID := middleware.CurrentUserId(c)
	if err := model.UpdateUserProfile(userID, fields); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	cache.InvalidateUser(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

// UploadAvatar handles POST /api/private/avatar: stores the image bytes
// and points the profile at the served path.
func UploadAvatar(c *gin.Context) { uploadUserImage(c, "avatar", "avatar_url") }

// UploadCover handles POST /api/private/cover.
func UploadCover(c *gin.Context) { uploadUserImage(c, "cover", "cover_url") }

func uploadUserImage(c *gin.Context, kind, column string) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "missing_file"))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "unreadable_file"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, 8<<20))
	if err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "unreadable_file"))
		return
	}

	userID := middleware.CurrentUserId(c)
	key := fmt.Sprintf("%s/%d", kind, userID)
	if err := appctx.FileStorage.Put(c.Request.Context(), key, data); err != nil {
		middleware.AbortWithError(c, apperr.Wrap(apperr.KindUpstream, "storage_failed", err))
		return
	}
	url := fmt.Sprintf("%s/assets/%s", config.ServerURL, key)
	if err := model.UpdateUserProfile(userID, map[string]any{column: url}); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	cache.InvalidateUser(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CheckRelationship handles GET /api/private/relationship/{id}: whether
// the caller follows/blocks the target and vice versa.
func CheckRelationship(c *gin.Context) {
	targetID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	userID := middleware.CurrentUserId(c)

	friends, err := model.GetFriendIds(userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	isFriend := false
	for _, id := range friends {
		if id == targetID {
			isFriend = true
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"following":  isFriend,
		"blocked":    model.IsBlocked(userID, targetID),
		"blocked_by": model.IsBlocked(targetID, userID),
	})
}

// RateBeatmapset handles POST /api/private/beatmapsets/{id}/rating: record
// or replace the caller's 1-10 vote and return the new aggregate.
func RateBeatmapset(c *gin.Context) {
	setID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	var body struct {
		Rating int `json:"rating" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Rating < 1 || body.Rating > 10 {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	if _, err := model.GetBeatmapset(setID); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "beatmapset_not_found"))
		return
	}
	if err := model.RateBeatmapset(middleware.CurrentUserId(c), setID, body.Rating); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	count, average, err := model.BeatmapsetRatingSummary(setID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count, "average": average})
}

// ProxyAudio handles GET /api/private/audio/{id}: serve the beatmapset
// preview clip through the binary Redis store so repeat plays never touch
// the upstream CDN.
func ProxyAudio(c *gin.Context) {
	setID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	key := fmt.Sprintf("audio:%d", setID)
	if common.IsRedisEnabled() {
		if data, err := common.RBinary.Get(c.Request.Context(), key).Bytes(); err == nil && len(data) > 0 {
			c.Data(http.StatusOK, "audio/mpeg", data)
			return
		}
	}

	data, err := appctx.Fetcher.FetchPreviewAudio(c.Request.Context(), setID)
	if err != nil {
		middleware.AbortWithError(c, apperr.Wrap(apperr.KindUpstream, "upstream_fetch_failed", err))
		return
	}
	if common.IsRedisEnabled() {
		if err := common.RBinary.Set(c.Request.Context(), key, data, 24*time.Hour).Err(); err != nil {
			common.LogRedisFailure("set", key, err)
		}
	}
	c.Data(http.StatusOK, "audio/mpeg", data)
}

// ListOAuthApps handles GET /api/private/oauth-apps.
func ListOAuthApps(c *gin.Context) {
	clients, err := model.GetOAuthClientsByOwner(middleware.CurrentUserId(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// CreateOAuthApp handles POST /api/private/oauth-apps: the secret is
// returned exactly once, on creation.
func CreateOAuthApp(c *gin.Context) {
	var body struct {
		Name         string   `json:"name" binding:"required"`
		Description  string   `json:"description"`
		RedirectURIs []string `json:"redirect_uris"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	secret := random.GetRandomString(40)
	client := &model.OAuthClient{
		Secret:       secret,
		Name:         body.Name,
		Description:  body.Description,
		RedirectURIs: body.RedirectURIs,
		OwnerId:      middleware.CurrentUserId(c),
	}
	if err := model.CreateOAuthClient(client); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": client.Id, "secret": secret, "name": client.Name})
}

// DeleteOAuthApp handles DELETE /api/private/oauth-apps/{id}: removes the
// app and revokes every token it issued.
func DeleteOAuthApp(c *gin.Context) {
	clientID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := model.DeleteOAuthClient(middleware.CurrentUserId(c), clientID); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "oauth_client_not_found"))
		return
	}
	c.Status(http.StatusNoContent)
}

const apiKeyClientId = "api_key"

// ListAPIKeys handles GET /api/private/api-keys.
func ListAPIKeys(c *gin.Context) {
	tokens, err := model.ListTokensByClient(middleware.CurrentUserId(c), apiKeyClientId)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// CreateAPIKey handles POST /api/private/api-keys: a long-lived bearer
// token bound to the caller, shown exactly once.
func CreateAPIKey(c *gin.Context) {
	userID := middleware.CurrentUserId(c)
	accessToken, jti, err := auth.IssueJWT(userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	token, err := model.CreateOAuthToken(userID, apiKeyClientId, jti, random.GetRandomString(64), []string{"public"})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	// API keys skip the second factor: they are created from an
	// already-verified session.
	if _, err := model.CreateLoginSession(userID, jti, "", c.ClientIP(), c.Request.UserAgent(), true); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": token.Id, "key": accessToken})
}

// DeleteAPIKey handles DELETE /api/private/api-keys/{id}.
func DeleteAPIKey(c *gin.Context) {
	tokenID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := model.DeleteTokenById(middleware.CurrentUserId(c), tokenID); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "api_key_not_found"))
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncBeatmapset handles POST /api/private/beatmapsets/{id}/sync: refetch
// upstream metadata and invalidate the set's caches.
func SyncBeatmapset(c *gin.Context) {
	setID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	meta, err := appctx.Fetcher.FetchBeatmapset(c.Request.Context(), setID)
	if err != nil {
		middleware.AbortWithError(c, apperr.Wrap(apperr.KindUpstream, "upstream_fetch_failed", err))
		return
	}
	set := score.BeatmapsetFromMetadata(meta)
	if err := model.UpsertBeatmapset(set); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	cache.InvalidateBeatmapset(c.Request.Context(), setID)
	c.JSON(http.StatusOK, set)
}
