package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/appctx"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/score"
)

// ReserveScoreToken handles POST /beatmaps/{id}/solo/scores, Phase A of
// the score submission pipeline.
func ReserveScoreToken(c *gin.Context) {
	beatmapID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	var body struct {
		RulesetId          int    `json:"ruleset_id"`
		BeatmapHash        string `json:"beatmap_hash"`
		VersionHash        string `json:"version_hash"`
		ClientVersion      string `json:"client_version"`
		RoomId             *uint  `json:"room_id"`
		PlaylistItemId     *uint  `json:"playlist_item_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}

	token, err := score.ReserveToken(c.Request.Context(), score.ReserveRequest{
		UserId:             middleware.CurrentUserId(c),
		BeatmapId:          beatmapID,
		RulesetId:          body.RulesetId,
		BeatmapHash:        body.BeatmapHash,
		ClientVersion:      body.ClientVersion,
		RulesetVersionHash: body.VersionHash,
		RoomId:             body.RoomId,
		PlaylistItemId:     body.PlaylistItemId,
	}, appctx.Fetcher)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// SubmitScore handles PUT /beatmaps/{id}/solo/scores/{token}, Phase B.
func SubmitScore(c *gin.Context) {
	tokenID, err := idParam(c, "token")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	req, err := bindSubmitRequest(c, tokenID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	result, err := score.Submit(c.Request.Context(), req, appctx.Calculator, appctx.Fetcher)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindSubmitRequest parses a SoloScoreSubmissionInfo body into the score
// pipeline's request shape; shared by the solo and playlist submission
// endpoints.
func bindSubmitRequest(c *gin.Context, tokenID uint) (score.SubmitRequest, error) {
	var body struct {
		Mods              []string       `json:"mods"`
		Accuracy          float64        `json:"accuracy"`
		MaxCombo          int            `json:"max_combo"`
		TotalScore        int64          `json:"total_score"`
		Rank              string         `json:"rank"`
		Passed            bool           `json:"passed"`
		Perfect           bool           `json:"perfect"`
		Statistics        map[string]int `json:"statistics"`
		MaximumStatistics map[string]int `json:"maximum_statistics"`
		EndedAt           time.Time      `json:"ended_at"`
		ReplayFilename    string         `json:"replay_filename"`
		BuildId           string         `json:"build_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return score.SubmitRequest{}, apperr.New(apperr.KindValidation, "validation_error")
	}
	if body.EndedAt.IsZero() {
		body.EndedAt = time.Now()
	}

	return score.SubmitRequest{
		TokenId:           tokenID,
		UserId:            middleware.CurrentUserId(c),
		Mods:              body.Mods,
		Accuracy:          body.Accuracy,
		MaxCombo:          body.MaxCombo,
		TotalScore:        body.TotalScore,
		Rank:              body.Rank,
		Passed:            body.Passed,
		Perfect:           body.Perfect,
		Statistics:        body.Statistics,
		MaximumStatistics: body.MaximumStatistics,
		EndedAt:           body.EndedAt,
		ReplayFilename:    body.ReplayFilename,
		BuildId:           body.BuildId,
	}, nil
}

// BeatmapUserScore handles GET /beatmaps/{id}/scores/users/{uid}[/all].
func BeatmapUserScore(c *gin.Context) {
	beatmapID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	userID, err := idParam(c, "uid")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	rulesetID := rulesetParam(c, 0)

	result, err := score.Leaderboard(beatmapID, rulesetID, score.ScopeGlobal, userID, nil, 1)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
