package room

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/aquareto/aquareto-server/chat"
	"github.com/aquareto/aquareto-server/model"
)

func setupRoomTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.UserStatistics{},
		&model.ChatChannel{}, &model.ChatChannelMember{}, &model.SilencedUser{},
		&model.Room{}, &model.PlaylistItem{}, &model.RoomParticipant{},
		&model.ItemAttempt{}, &model.PlaylistBestScore{}, &model.MultiplayerEvent{},
		&model.DailyChallengeStats{},
		&model.UserAccountHistory{}, &model.Event{}, &model.Notification{},
	))

	prev := model.DB
	model.DB = db
	t.Cleanup(func() { model.DB = prev })
}

func createHost(t *testing.T, username string) *model.User {
	t.Helper()
	user, err := model.CreateUser(username, username+"@example.com", "pw_abcdefg1", "US")
	require.NoError(t, err)
	return user
}

func validCreateRequest(hostID uint) CreateRequest {
	return CreateRequest{
		HostId:    hostID,
		Name:      "versus",
		Category:  model.RoomCategoryNormal,
		Type:      model.RoomTypeHeadToHead,
		QueueMode: model.MultiplayerQueueHostOnly,
		Playlist:  []PlaylistItemRequest{{BeatmapId: 101, RulesetId: 0}},
	}
}

func TestCreateRoomWiresChannelAndPlaylist(t *testing.T) {
	setupRoomTestDB(t)
	host := createHost(t, "HostA")

	created, err := Create(validCreateRequest(host.Id))
	require.NoError(t, err)
	require.NotZero(t, created.Id)
	require.NotZero(t, created.ChannelId)
	require.Equal(t, model.RoomStatusActive, created.Status)

	ch, err := model.GetChannel(created.ChannelId)
	require.NoError(t, err)
	require.Equal(t, model.ChatChannelMultiplayer, ch.Type)

	playlist, err := model.GetRoomPlaylist(created.Id)
	require.NoError(t, err)
	require.Len(t, playlist, 1)
	require.Equal(t, uint(101), playlist[0].BeatmapId)

	count, err := model.ActiveParticipantCount(created.Id)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestCreateRoomRejectsEmptyPlaylist(t *testing.T) {
	setupRoomTestDB(t)
	host := createHost(t, "HostA")

	req := validCreateRequest(host.Id)
	req.Playlist = nil
	_, err := Create(req)
	require.Error(t, err)
}

func TestCreateRoomRejectsRestrictedHost(t *testing.T) {
	setupRoomTestDB(t)
	host := createHost(t, "HostA")
	require.NoError(t, host.Restrict("abuse", nil))

	_, err := Create(validCreateRequest(host.Id))
	require.Error(t, err)
}

func TestAddUserVerifiesPassword(t *testing.T) {
	setupRoomTestDB(t)
	host := createHost(t, "HostA")
	guest := createHost(t, "GuestB")

	req := validCreateRequest(host.Id)
	req.Password = "sekrit"
	created, err := Create(req)
	require.NoError(t, err)

	h := chat.NewHub()
	require.Error(t, AddUser(h, created.Id, guest.Id, "wrong"))
	require.NoError(t, AddUser(h, created.Id, guest.Id, "sekrit"))

	count, err := model.ActiveParticipantCount(created.Id)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestHostTransferOnHostLeave(t *testing.T) {
	setupRoomTestDB(t)
	host := createHost(t, "HostA")
	guest := createHost(t, "GuestB")

	created, err := Create(validCreateRequest(host.Id))
	require.NoError(t, err)

	h := chat.NewHub()
	require.NoError(t, AddUser(h, created.Id, guest.Id, ""))
	require.NoError(t, RemoveUser(h, created.Id, host.Id))

	reloaded, err := model.GetRoom(created.Id)
	require.NoError(t, err)
	require.Equal(t, guest.Id, reloaded.HostId)
	require.Equal(t, model.RoomStatusActive, reloaded.Status)
}

func TestRoomEndsWhenLastParticipantLeaves(t *testing.T) {
	setupRoomTestDB(t)
	host := createHost(t, "HostA")

	created, err := Create(validCreateRequest(host.Id))
	require.NoError(t, err)

	require.NoError(t, RemoveUser(chat.NewHub(), created.Id, host.Id))

	reloaded, err := model.GetRoom(created.Id)
	require.NoError(t, err)
	require.Equal(t, model.RoomStatusIdle, reloaded.Status)
	require.NotNil(t, reloaded.EndsAt)

	events, err := model.GetRoomEvents(created.Id, 100)
	require.NoError(t, err)
	var ended bool
	for _, e := range events {
		if e.Type == model.MultiplayerEventRoomEnded {
			ended = true
		}
	}
	require.True(t, ended)
}
