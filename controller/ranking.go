package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/score"
)

// GetRankings handles GET /rankings/{ruleset}/{sort}, with an optional
// `country` query parameter for the country-scoped table.
func GetRankings(c *gin.Context) {
	rulesetID := rulesetParam(c, 0)
	sort := model.RankingSort(c.Param("sort"))
	if sort == "" {
		sort = model.RankingSortPerformance
	}
	page := 1
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}

	page2, err := score.Rankings(c.Request.Context(), rulesetID, sort, c.Query("country"), page)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page2)
}

// GetCountryRankings handles GET /rankings/{ruleset}/country.
func GetCountryRankings(c *gin.Context) {
	rulesetID := rulesetParam(c, 0)
	rows, err := model.GetCountryRankings(rulesetID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": rows})
}

// GetTeamRankings handles GET /rankings/{ruleset}/team.
func GetTeamRankings(c *gin.Context) {
	rulesetID := rulesetParam(c, 0)
	rows, err := model.GetTeamRankings(rulesetID)
	if err != nil {
		middleware.AbortWithError(c, apperr.Wrap(apperr.KindInternal, "ranking_unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": rows})
}
