package controller

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/appctx"
	"github.com/aquareto/aquareto-server/chat"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/eventhub"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/room"
	"github.com/aquareto/aquareto-server/score"
)

// LioAuth gates the /_lio internal RPC surface behind the shared token the
// spectator server is configured with. An empty LIO_TOKEN disables the
// surface entirely.
func LioAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.LioToken == "" || c.GetHeader("Authorization") != "Bearer "+config.LioToken {
			middleware.AbortWithError(c, apperr.New(apperr.KindAuthentication, "invalid_token"))
			return
		}
		c.Next()
	}
}

// LioEnsureBeatmap handles GET /_lio/beatmaps/{id}: fetch-and-store the
// beatmap if the store has never seen it, so the spectator server can rely
// on it existing before a replay session starts.
func LioEnsureBeatmap(c *gin.Context) {
	beatmapID, err := idParam(c, "id")
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

// LioSaveReplay handles PUT /_lio/replays/{score}: store the raw replay
// frames and point the score at the file.
func LioSaveReplay(c *gin.Context) {
	scoreID, err := idParam(c, "score")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	s, err := model.GetScore(scoreID)
	if err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "score_not_found"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, 32<<20))
	if err != nil || len(data) == 0 {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "empty_replay"))
		return
	}

	key := fmt.Sprintf("replay/%d", scoreID)
	if err := appctx.FileStorage.Put(c.Request.Context(), key, data); err != nil {
		middleware.AbortWithError(c, apperr.Wrap(apperr.KindUpstream, "storage_failed", err))
		return
	}
	if err := model.DB.Model(s).Update("replay_filename", key).Error; err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	eventhub.Default.Publish(eventhub.TopicReplayDownloaded, scoreID)
	c.Status(http.StatusNoContent)
}

// LioEndRoom handles DELETE /_lio/rooms/{id}/users/{uid}: the spectator
// server's room lifecycle hook, same semantics as the public leave
// endpoint but trusted to act on any user.
func LioEndRoom(c *gin.Context) {
	roomID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	userID, err := idParam(c, "uid")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := room.RemoveUser(chat.Default, roomID, userID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LioRulesetHash handles GET /_lio/ruleset-hash: the version hash score
// token reservation validates against, so the spectator server can reject
// mismatched clients before they spectate.
func LioRulesetHash(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ruleset_version_hash": config.RulesetsVersionHash})
}
