package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
)

// userProfile is the JSON shape for GET /me and GET /users/{id}: the User
// row plus its per-ruleset UserStatistics, following the
// "per-(user, ruleset) gameplay stats live separately" data model.
type userProfile struct {
	*model.User
	Statistics *model.UserStatistics `json:"statistics,omitempty"`
}

func loadProfile(userID uint, rulesetID int) (*userProfile, error) {
	user, err := model.GetUserById(userID)
	if err != nil {
		return nil, apperr.New(apperr.KindNotFound, "user_not_found")
	}
	stats, _ := model.GetUserStatistics(userID, rulesetID)
	return &userProfile{User: user, Statistics: stats}, nil
}

func cacheTTL() time.Duration {
	return time.Duration(config.CacheDefaultTTLSeconds) * time.Second
}

// Me handles GET /me[/{ruleset}].
func Me(c *gin.Context) {
	rulesetID := rulesetParam(c, 0)
	profile, err := loadProfile(middleware.CurrentUserId(c), rulesetID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetUser handles GET /users/{id}[/{ruleset}], cache-fronted.
func GetUser(c *gin.Context) {
	userID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	rulesetID := rulesetParam(c, 0)

	profile, err := cache.GetOrLoad(c.Request.Context(), cache.UserRulesetKey(userID, rulesetID), cacheTTL(),
		func(context.Context) (*userProfile, error) { return loadProfile(userID, rulesetID) })
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetUserScores handles GET /users/{id}/scores/{type}.
func GetUserScores(c *gin.Context) {
	userID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	listType := model.ScoreListType(c.Param("type"))
	limit, offset := pagingParams(c)

	var rulesetID *int
	if raw := c.Query("ruleset"); raw != "" {
		v := rulesetParam(c, -1)
		if v >= 0 {
			rulesetID = &v
		}
	}

	scores, err := model.GetUserScores(userID, rulesetID, listType, limit, offset)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, scores)
}

// PinScore handles PUT /score-pins/{id}.
func PinScore(c *gin.Context) {
	scoreID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	userID := middleware.CurrentUserId(c)
	if err := model.PinScore(userID, scoreID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	cache.InvalidateUserScores(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"pinned": true})
}

// UnpinScore handles DELETE /score-pins/{id}.
func UnpinScore(c *gin.Context) {
	scoreID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	userID := middleware.CurrentUserId(c)
	if err := model.UnpinScore(userID, scoreID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	cache.InvalidateUserScores(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"pinned": false})
}

// ReorderScorePin handles POST /score-pins/{id}/reorder.
func ReorderScorePin(c *gin.Context) {
	scoreID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	var body struct {
		AfterScoreId uint `json:"after_score_id"`
	}
	_ = c.ShouldBindJSON(&body)

	userID := middleware.CurrentUserId(c)
	if err := model.ReorderPinnedScore(userID, scoreID, body.AfterScoreId); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	cache.InvalidateUserScores(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"reordered": true})
}

// ListFriends handles GET /friends.
func ListFriends(c *gin.Context) {
	rows, err := model.ListRelationships(middleware.CurrentUserId(c), model.RelationshipFollow)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListBlocks handles GET /blocks.
func ListBlocks(c *gin.Context) {
	rows, err := model.ListRelationships(middleware.CurrentUserId(c), model.RelationshipBlock)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// AddFriend handles POST /friends.
func AddFriend(c *gin.Context) { addRelationship(c, model.RelationshipFollow) }

// AddBlock handles POST /blocks.
func AddBlock(c *gin.Context) { addRelationship(c, model.RelationshipBlock) }

func addRelationship(c *gin.Context, relType string) {
	var body struct {
		TargetId uint `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	if err := model.CreateRelationship(middleware.CurrentUserId(c), body.TargetId, relType); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": true})
}

// RemoveFriend handles DELETE /friends/{id}.
func RemoveFriend(c *gin.Context) { removeRelationship(c, model.RelationshipFollow) }

// RemoveBlock handles DELETE /blocks/{id}.
func RemoveBlock(c *gin.Context) { removeRelationship(c, model.RelationshipBlock) }

func removeRelationship(c *gin.Context, relType string) {
	targetID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := model.DeleteRelationship(middleware.CurrentUserId(c), targetID, relType); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// idParam parses a uint path parameter, returning a typed apperr on failure.
func idParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.KindValidation, "invalid_parameter")
	}
	return uint(v), nil
}

// rulesetParam reads the `ruleset` path or query parameter, defaulting when
// absent or unparseable.
func rulesetParam(c *gin.Context, def int) int {
	raw := c.Param("ruleset")
	if raw == "" {
		raw = c.Query("ruleset")
	}
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// pagingParams reads `limit`/`offset` query parameters with the shared
// defaults and an upper bound.
func pagingParams(c *gin.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// GetUserBeatmapsets handles GET /users/{id}/beatmapsets/{type}. Only the
// `favourite` listing is backed by local state; other types return empty
// lists since mapping/hosting is out of scope.
func GetUserBeatmapsets(c *gin.Context) {
	userID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	setType := c.Param("type")
	limit, offset := pagingParams(c)

	if setType != "favourite" {
		c.JSON(http.StatusOK, []*model.Beatmapset{})
		return
	}

	key := cache.UserBeatmapsetsKey(userID, setType, limit, offset)
	sets, err := cache.GetOrLoad(c.Request.Context(), key, cacheTTL(),
		func(ctx context.Context) (*[]*model.Beatmapset, error) {
			ids, err := model.GetFavouriteSetIds(userID, limit, offset)
			if err != nil {
				return nil, err
			}
			rows := make([]*model.Beatmapset, 0, len(ids))
			for _, id := range ids {
				if set, err := model.GetBeatmapset(id); err == nil {
					rows = append(rows, set)
				}
			}
			return &rows, nil
		})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, *sets)
}

// GetUserRecentActivity handles GET /users/{id}/recent_activity.
func GetUserRecentActivity(c *gin.Context) {
	userID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	limit, _ := pagingParams(c)
	events, err := model.GetUserEvents(userID, limit)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
