// Package router maps the HTTP surface of the public client API, the
// legacy v1 API, the private extensions, the auth-flow endpoints, and the
// internal spectator RPC onto the controller package.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/chat"
	"github.com/aquareto/aquareto-server/controller"
	"github.com/aquareto/aquareto-server/middleware"
)

// SetRouter registers every route group on server.
func SetRouter(server *gin.Engine) {
	setAuthFlowRouter(server)
	setAPIv2Router(server)
	setAPIv1Router(server)
	setPrivateRouter(server)
	setLioRouter(server)

	// Real-time chat and notifications.
	server.GET("/notification-server", chat.ServeWS(chat.Default))
}

func setAuthFlowRouter(server *gin.Engine) {
	server.POST("/oauth/token", middleware.RateLimitByIP(30, 10), controller.Grant)
	server.POST("/users", middleware.TurnstileCheck(), controller.Register)
	server.POST("/password-reset/request", middleware.RateLimitByIP(6, 3), controller.RequestPasswordReset)
	server.POST("/password-reset/reset", middleware.RateLimitByIP(6, 3), controller.ResetPassword)
}

func setAPIv2Router(server *gin.Engine) {
	// Session-verification endpoints must be reachable with a token whose
	// session is not yet verified; everything else demands a verified one.
	session := server.Group("/api/v2/session", middleware.Auth(false))
	{
		session.POST("/verify", controller.VerifySession)
		session.POST("/verify/reissue", middleware.RateLimitByIP(6, 2), controller.ReissueVerificationMail)
		session.POST("/verify/mail-fallback", controller.ReissueVerificationMail)
	}

	api := server.Group("/api/v2", middleware.Auth(true))
	{
		api.GET("/me", controller.Me)
		api.GET("/me/:ruleset", controller.Me)

		api.GET("/users/:id", controller.GetUser)
		api.GET("/users/:id/:ruleset", controller.GetUser)
		api.GET("/users/:id/scores/:type", controller.GetUserScores)
		api.GET("/users/:id/beatmapsets/:type", controller.GetUserBeatmapsets)
		api.GET("/users/:id/recent_activity", controller.GetUserRecentActivity)

		api.GET("/beatmaps", controller.GetBeatmaps)
		api.GET("/beatmaps/lookup", controller.GetBeatmap)
		api.GET("/beatmaps/:id", controller.GetBeatmap)
		api.POST("/beatmaps/:id/attributes", controller.BeatmapAttributes)
		api.GET("/beatmaps/:id/scores", controller.BeatmapScores)
		api.GET("/beatmaps/:id/scores/users/:uid", controller.BeatmapUserScore)
		api.GET("/beatmaps/:id/scores/users/:uid/all", controller.BeatmapUserScore)
		api.POST("/beatmaps/:id/solo/scores", controller.ReserveScoreToken)
		api.PUT("/beatmaps/:id/solo/scores/:token", controller.SubmitScore)

		api.GET("/beatmapsets/lookup", controller.GetBeatmapset)
		api.GET("/beatmapsets/search", controller.SearchBeatmapsets)
		api.GET("/beatmapsets/:id", controller.GetBeatmapset)
		api.GET("/beatmapsets/:id/download", controller.DownloadBeatmapset)
		api.POST("/beatmapsets/:id/favourites", controller.ToggleFavourite)

		api.GET("/rankings/:ruleset/country", controller.GetCountryRankings)
		api.GET("/rankings/:ruleset/country/:sort", controller.GetCountryRankings)
		api.GET("/rankings/:ruleset/team", controller.GetTeamRankings)
		api.GET("/rankings/:ruleset/team/:sort", controller.GetTeamRankings)
		api.GET("/rankings/:ruleset/:sort", controller.GetRankings)

		api.GET("/friends", controller.ListFriends)
		api.POST("/friends", controller.AddFriend)
		api.DELETE("/friends/:id", controller.RemoveFriend)
		api.GET("/blocks", controller.ListBlocks)
		api.POST("/blocks", controller.AddBlock)
		api.DELETE("/blocks/:id", controller.RemoveBlock)

		api.PUT("/score-pins/:id", controller.PinScore)
		api.DELETE("/score-pins/:id", controller.UnpinScore)
		api.POST("/score-pins/:id/reorder", controller.ReorderScorePin)

		api.POST("/rooms", controller.CreateRoom)
		api.GET("/rooms", controller.ListRooms)
		api.GET("/rooms/:id", controller.GetRoom)
		api.DELETE("/rooms/:id", controller.DeleteRoom)
		api.PUT("/rooms/:id/users/:uid", controller.JoinRoom)
		api.DELETE("/rooms/:id/users/:uid", controller.LeaveRoom)
		api.GET("/rooms/:id/leaderboard", controller.RoomLeaderboard)
		api.GET("/rooms/:id/events", controller.RoomEvents)
		api.POST("/rooms/:id/playlist/:pid/scores", controller.ReservePlaylistScoreToken)
		api.PUT("/rooms/:id/playlist/:pid/scores/:token", controller.SubmitPlaylistScore)
		api.GET("/rooms/:id/playlist/:pid/scores", controller.PlaylistItemScores)

		api.GET("/notifications", controller.GetNotifications)
		api.POST("/notifications/mark-read", controller.MarkNotificationsRead)

		api.GET("/chat/updates", controller.ChatUpdates)
		api.POST("/chat/ack", controller.ChatAck)
		api.POST("/chat/new", controller.NewPM)
		api.GET("/chat/channels", controller.ListChannels)
		api.POST("/chat/channels", controller.CreateChannel)
		api.PUT("/chat/channels/:channel/users/:user", controller.JoinChannel)
		api.DELETE("/chat/channels/:channel/users/:user", controller.LeaveChannel)
		api.POST("/chat/channels/:channel/messages", controller.SendChannelMessage)
		api.GET("/chat/channels/:channel/messages", controller.GetChannelMessages)
		api.PUT("/chat/channels/:channel/mark-as-read/:message", controller.MarkChannelRead)
	}
}

func setAPIv1Router(server *gin.Engine) {
	v1 := server.Group("/api/v1")
	{
		v1.GET("/get_player_info", controller.V1GetPlayerInfo)
		v1.GET("/get_player_count", controller.V1GetPlayerCount)
	}
}

func setPrivateRouter(server *gin.Engine) {
	private := server.Group("/api/private", middleware.Auth(true))
	{
		private.POST("/password", controller.ChangePassword)
		private.POST("/totp/start", controller.TotpSetupStart)
		private.POST("/totp/finish", controller.TotpSetupFinish)
		private.DELETE("/totp", controller.TotpDisable)
		private.POST("/rename", controller.RenameUser)
		private.POST("/preferences", controller.UpdatePreferences)
		private.POST("/avatar", controller.UploadAvatar)
		private.POST("/cover", controller.UploadCover)
		private.GET("/relationship/:id", controller.CheckRelationship)
		private.POST("/beatmapsets/:id/sync", controller.SyncBeatmapset)
		private.POST("/beatmapsets/:id/rating", controller.RateBeatmapset)
		private.GET("/audio/:id", controller.ProxyAudio)
		private.GET("/oauth-apps", controller.ListOAuthApps)
		private.POST("/oauth-apps", controller.CreateOAuthApp)
		private.DELETE("/oauth-apps/:id", controller.DeleteOAuthApp)
		private.GET("/api-keys", controller.ListAPIKeys)
		private.POST("/api-keys", controller.CreateAPIKey)
		private.DELETE("/api-keys/:id", controller.DeleteAPIKey)
	}
}

func setLioRouter(server *gin.Engine) {
	lio := server.Group("/_lio", controller.LioAuth())
	{
		lio.GET("/beatmaps/:id", controller.LioEnsureBeatmap)
		lio.PUT("/replays/:score", controller.LioSaveReplay)
		lio.DELETE("/rooms/:id/users/:uid", controller.LioEndRoom)
		lio.GET("/ruleset-hash", controller.LioRulesetHash)
	}
}
