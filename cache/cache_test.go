package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyPatterns(t *testing.T) {
	ruleset := 2
	tests := []struct {
		want string
		got  string
	}{
		{"user:7", UserKey(7)},
		{"user:7:ruleset:2", UserRulesetKey(7, 2)},
		{"v1_user:7", V1UserKey(7)},
		{"v1_user:7:ruleset:2", V1UserRulesetKey(7, 2)},
		{"user:7:scores:best:2:limit:50:offset:0:include_fail:false:is_legacy:false",
			UserScoresKey(7, "best", &ruleset, 50, 0, false, false)},
		{"user:7:scores:recent:none:limit:10:offset:5:include_fail:true:is_legacy:true",
			UserScoresKey(7, "recent", nil, 10, 5, true, true)},
		{"user:7:beatmapsets:favourite:limit:50:offset:0", UserBeatmapsetsKey(7, "favourite", 50, 0)},
		{"beatmapset:11", BeatmapsetKey(11)},
		{"beatmap_lookup:11:beatmapset", BeatmapLookupKey(11)},
		{"beatmap:11:raw", BeatmapRawKey(11)},
		{"ranking:0:pp:page:3", RankingPageKey(0, "pp", "", 3)},
		{"ranking:0:pp:US:page:3", RankingPageKey(0, "pp", "US", 3)},
		{"ranking:0:pp:stats", RankingStatsKey(0, "pp", "")},
		{"oauth:code:5:abc", OAuthCodeKey("5", "abc")},
		{"password_reset:code:a@b.c", PasswordResetKey("a@b.c")},
		{"totp:7:123456", TotpReplayKey(7, "123456")},
		{"totp:setup:a@b.c", TotpSetupKey("a@b.c")},
		{"fetcher:access_token:cid", FetcherAccessTokenKey("cid")},
		{"fetcher:expire_at:cid", FetcherExpireAtKey("cid")},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.got)
	}
}

func TestHashQueryStable(t *testing.T) {
	require.Equal(t, HashQuery("ranked maps"), HashQuery("ranked maps"))
	require.NotEqual(t, HashQuery("ranked maps"), HashQuery("loved maps"))
	require.Len(t, HashQuery("anything"), 32)
}

func TestSearchKeySeparatesQueryFromCursor(t *testing.T) {
	require.NotEqual(t,
		BeatmapsetSearchKey("abc", "def"),
		BeatmapsetSearchKey("abcdef", ""))
}
