package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquareto/aquareto-server/common/config"
)

func TestCreateUserSeedsStatisticsPerRuleset(t *testing.T) {
	setupTestDB(t)

	user, err := CreateUser("Alice1", "a@b.c", "pw_abcdefg1", "US")
	require.NoError(t, err)
	require.NotZero(t, user.Id)

	for _, ruleset := range config.SupportedRulesets {
		stats, err := GetUserStatistics(user.Id, ruleset)
		require.NoError(t, err, "ruleset %d", ruleset)
		require.Equal(t, user.Id, stats.UserId)
	}

	var count int64
	require.NoError(t, DB.Model(&UserStatistics{}).Where("user_id = ?", user.Id).Count(&count).Error)
	require.Equal(t, int64(len(config.SupportedRulesets)), count)
}

func TestValidateCredentials(t *testing.T) {
	setupTestDB(t)
	user, err := CreateUser("Alice1", "a@b.c", "pw_abcdefg1", "US")
	require.NoError(t, err)

	byName, err := ValidateCredentials("Alice1", "pw_abcdefg1")
	require.NoError(t, err)
	require.Equal(t, user.Id, byName.Id)

	byEmail, err := ValidateCredentials("a@b.c", "pw_abcdefg1")
	require.NoError(t, err)
	require.Equal(t, user.Id, byEmail.Id)

	_, err = ValidateCredentials("Alice1", "wrong-password")
	require.Error(t, err)

	_, err = ValidateCredentials("NoSuchUser", "pw_abcdefg1")
	require.Error(t, err)
}

func TestUsernameUniqueness(t *testing.T) {
	setupTestDB(t)
	_, err := CreateUser("Alice1", "a@b.c", "pw_abcdefg1", "US")
	require.NoError(t, err)

	require.True(t, IsUsernameTaken("Alice1"))
	require.True(t, IsEmailTaken("a@b.c"))
	require.False(t, IsUsernameTaken("Bob2"))

	_, err = CreateUser("Alice1", "other@b.c", "pw_abcdefg1", "US")
	require.Error(t, err)
}

func TestRenameRecordsPreviousUsername(t *testing.T) {
	setupTestDB(t)
	user, err := CreateUser("Alice1", "a@b.c", "pw_abcdefg1", "US")
	require.NoError(t, err)

	require.NoError(t, user.Rename("Alicia"))

	reloaded, err := GetUserById(user.Id)
	require.NoError(t, err)
	require.Equal(t, "Alicia", reloaded.Username)
	require.Equal(t, StringList{"Alice1"}, reloaded.PreviousUsernames)

	events, err := GetUserEvents(user.Id, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
}

func TestFavouriteIsIdempotent(t *testing.T) {
	setupTestDB(t)
	require.NoError(t, DB.Create(&Beatmapset{Id: 11, Title: "t"}).Error)

	require.NoError(t, FavouriteSet(1, 11))
	require.NoError(t, FavouriteSet(1, 11))

	ids, err := GetFavouriteSetIds(1, 50, 0)
	require.NoError(t, err)
	require.Equal(t, []uint{11}, ids)

	require.NoError(t, UnfavouriteSet(1, 11))
	require.NoError(t, UnfavouriteSet(1, 11))
	ids, err = GetFavouriteSetIds(1, 50, 0)
	require.NoError(t, err)
	require.Empty(t, ids)
}
