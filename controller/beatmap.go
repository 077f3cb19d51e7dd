package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/appctx"
	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/calculator"
	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/helper"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/score"
)

// GetBeatmap handles GET /beatmaps/{id} and GET /beatmaps/lookup (the
// latter via the `id` query parameter), ensuring the beatmap is cached
// locally, fetching upstream metadata on first reference.
func GetBeatmap(c *gin.Context) {
	beatmapID, err := idParam(c, "id")
	if err != nil {
		beatmapID, err = idParamFromQuery(c, "id")
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	bm, _, err := score.EnsureBeatmap(c.Request.Context(), beatmapID, appctx.Fetcher)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bm)
}

func idParamFromQuery(c *gin.Context, name string) (uint, error) {
	v, ok := c.GetQuery(name)
	if !ok {
		return 0, apperr.New(apperr.KindValidation, "invalid_parameter")
	}
	c.Params = append(c.Params, gin.Param{Key: name, Value: v})
	return idParam(c, name)
}

// GetBeatmaps handles GET /beatmaps/ (bulk lookup): repeated `ids[]`
// query values, capped at 50 per request, unknown ids silently skipped.
func GetBeatmaps(c *gin.Context) {
	ids := c.QueryArray("ids[]")
	if len(ids) == 0 {
		ids = c.QueryArray("ids")
	}
	if len(ids) > 50 {
		ids = ids[:50]
	}

	beatmaps := make([]*model.Beatmap, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		if bm, err := model.GetBeatmap(uint(id)); err == nil {
			beatmaps = append(beatmaps, bm)
		}
	}
	c.JSON(http.StatusOK, gin.H{"beatmaps": beatmaps})
}

// BeatmapAttributes handles POST /beatmaps/{id}/attributes, a
// difficulty-only calculator request used by the client's song-select
// mod preview.
func BeatmapAttributes(c *gin.Context) {
	beatmapID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	var body struct {
		Ruleset int      `json:"ruleset"`
		Mods    []string `json:"mods"`
	}
	_ = c.ShouldBindJSON(&body)

	bm, _, err := score.EnsureBeatmap(c.Request.Context(), beatmapID, appctx.Fetcher)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	// Attributes persist until a recompute replaces them; a zero TTL
	// stores without expiry.
	modsKey := strings.Join(body.Mods, ",")
	key := cache.BeatmapAttributesKey(beatmapID, body.Ruleset, modsKey)
	if raw, cacheErr := common.RedisGet(c.Request.Context(), key); cacheErr == nil {
		var cached calculator.Attributes
		if json.Unmarshal([]byte(raw), &cached) == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	attrs, err := appctx.Calculator.Difficulty(c.Request.Context(), calculator.Request{
		BeatmapId: beatmapID,
		Checksum:  bm.Checksum,
		Mods:      body.Mods,
		Ruleset:   body.Ruleset,
	})
	if err != nil {
		middleware.AbortWithError(c, apperr.Wrap(apperr.KindUpstream, "upstream_error", err))
		return
	}
	if common.IsRedisEnabled() {
		if raw, marshalErr := json.Marshal(attrs); marshalErr == nil {
			if setErr := common.RedisSet(c.Request.Context(), key, string(raw), 0); setErr != nil {
				common.LogRedisFailure("set", key, setErr)
			}
		}
	}
	c.JSON(http.StatusOK, attrs)
}

// BeatmapScores handles GET /beatmaps/{id}/scores.
func BeatmapScores(c *gin.Context) {
	beatmapID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	rulesetID := rulesetParam(c, 0)
	limit, _ := pagingParams(c)

	result, err := score.Leaderboard(beatmapID, rulesetID, score.ScopeGlobal, middleware.CurrentUserId(c), nil, limit)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBeatmapset handles GET /beatmapsets/{id} and /beatmapsets/lookup,
// cache-fronted
func GetBeatmapset(c *gin.Context) {
	setID, err := idParam(c, "id")
	if err != nil {
		setID, err = idParamFromQuery(c, "id")
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	set, err := cache.GetOrLoad(c.Request.Context(), cache.BeatmapsetKey(setID), cacheTTL(),
		func(context.Context) (*model.Beatmapset, error) { return model.GetBeatmapset(setID) })
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

// SearchBeatmapsets handles GET /beatmapsets/search. Pagination is by
// opaque cursor; the next page's token is returned only while full pages
// keep coming back.
func SearchBeatmapsets(c *gin.Context) {
	query := c.Query("q")
	status := 0
	if v := c.Query("status"); v != "" {
		status = rulesetParamFromString(v)
	}
	limit, _ := pagingParams(c)

	rawCursor := c.Query("cursor_string")
	if rawCursor == "" {
		rawCursor = c.Query("cursor")
	}
	cursor, err := helper.DecodeCursor(rawCursor)
	if err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "invalid_cursor"))
		return
	}

	key := cache.BeatmapsetSearchKey(query, rawCursor)
	sets, err := cache.GetOrLoad(c.Request.Context(), key, cacheTTL(),
		func(context.Context) (*[]*model.Beatmapset, error) {
			rows, err := model.SearchBeatmapsets(query, status, limit, cursor.Offset)
			return &rows, err
		})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	resp := gin.H{"beatmapsets": *sets}
	if len(*sets) == limit {
		resp["cursor_string"] = helper.EncodeCursor(helper.Cursor{Offset: cursor.Offset + limit})
	}
	c.JSON(http.StatusOK, resp)
}

func rulesetParamFromString(s string) int {
	v := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		v = v*10 + int(r-'0')
	}
	return v
}

// ToggleFavourite handles POST /beatmapsets/{id}/favourites with
// `action` = favourite|unfavourite. Favouriting an already-favourited set
// is a no-op.
func ToggleFavourite(c *gin.Context) {
	setID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	var body struct {
		Action string `json:"action" form:"action"`
	}
	_ = c.ShouldBind(&body)
	userID := middleware.CurrentUserId(c)

	if _, err := model.GetBeatmapset(setID); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "beatmapset_not_found"))
		return
	}

	switch body.Action {
	case "unfavourite":
		err = model.UnfavouriteSet(userID, setID)
	default:
		err = model.FavouriteSet(userID, setID)
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	cache.Invalidate(c.Request.Context(), cache.UserBeatmapsetsKey(userID, "favourite", 50, 0))
	c.Status(http.StatusNoContent)
}

// DownloadBeatmapset handles GET /beatmapsets/{id}/download by redirecting
// to the upstream package host; raw set archives are never stored locally.
func DownloadBeatmapset(c *gin.Context) {
	setID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if _, err := model.GetBeatmapset(setID); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "beatmapset_not_found"))
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("%s/beatmapsets/%d/download", config.FetcherBaseURL, setID))
}
