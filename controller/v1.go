package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/chat"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
)

// v1PlayerInfo is the legacy stringly-typed player payload: the v1 API
// predates typed clients, so every numeric field is serialized as text.
type v1PlayerInfo struct {
	UserId      string `json:"user_id"`
	Username    string `json:"username"`
	Country     string `json:"country"`
	JoinDate    string `json:"join_date"`
	PlayCount   string `json:"playcount"`
	RankedScore string `json:"ranked_score"`
	TotalScore  string `json:"total_score"`
	PPRaw       string `json:"pp_raw"`
	Accuracy    string `json:"accuracy"`
	Level       string `json:"level"`
	GlobalRank  string `json:"pp_rank"`
}

// V1GetPlayerInfo handles GET /api/v1/get_player_info. Accepts `u` as a
// user id or username, plus an optional `m` ruleset.
func V1GetPlayerInfo(c *gin.Context) {
	subject := c.Query("u")
	if subject == "" {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "missing_user"))
		return
	}
	rulesetID, _ := strconv.Atoi(c.DefaultQuery("m", "0"))

	user, err := v1LookupUser(subject)
	if err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "user_not_found"))
		return
	}

	info, err := cache.GetOrLoad(c.Request.Context(), cache.V1UserRulesetKey(user.Id, rulesetID), cacheTTL(),
		func(context.Context) (*v1PlayerInfo, error) { return buildV1PlayerInfo(user, rulesetID) })
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, []*v1PlayerInfo{info})
}

func v1LookupUser(subject string) (*model.User, error) {
	if id, err := strconv.ParseUint(subject, 10, 64); err == nil {
		if user, err := model.GetUserById(uint(id)); err == nil {
			return user, nil
		}
	}
	return model.GetUserByUsername(subject)
}

func buildV1PlayerInfo(user *model.User, rulesetID int) (*v1PlayerInfo, error) {
	stats, err := model.GetUserStatistics(user.Id, rulesetID)
	if err != nil {
		return nil, err
	}
	rank, _ := model.GetUserGlobalRank(user.Id, rulesetID)

	return &v1PlayerInfo{
		UserId:      strconv.FormatUint(uint64(user.Id), 10),
		Username:    user.Username,
		Country:     user.CountryCode,
		JoinDate:    strconv.FormatInt(user.JoinedAt, 10),
		PlayCount:   strconv.FormatInt(stats.PlayCount, 10),
		RankedScore: strconv.FormatInt(stats.RankedScore, 10),
		TotalScore:  strconv.FormatInt(stats.TotalScore, 10),
		PPRaw:       strconv.FormatFloat(stats.PP, 'f', 2, 64),
		Accuracy:    strconv.FormatFloat(stats.HitAccuracy, 'f', 4, 64),
		Level:       strconv.FormatFloat(float64(stats.Level), 'f', 2, 64),
		GlobalRank:  strconv.Itoa(rank),
	}, nil
}

// V1GetPlayerCount handles GET /api/v1/get_player_count: registered total
// plus how many users currently hold a live chat connection.
func V1GetPlayerCount(c *gin.Context) {
	var total int64
	if err := model.DB.Model(&model.User{}).Count(&total).Error; err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"registered": strconv.FormatInt(total, 10),
		"online":     strconv.Itoa(chat.Default.OnlineUserCount()),
	})
}
