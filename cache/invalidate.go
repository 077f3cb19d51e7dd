package cache

import (
	"context"
	"fmt"

	"github.com/aquareto/aquareto-server/common/config"
)

// InvalidateUser drops every profile-shaped cache entry for a user across
// all supported rulesets, covering every consumer of the "User
// profile" / "v1 User profile": on user mutation, avatar/cover, rename,
// preferences, score processed.
func InvalidateUser(ctx context.Context, userID uint) {
	keys := []string{UserKey(userID), V1UserKey(userID)}
	for _, ruleset := range config.SupportedRulesets {
		keys = append(keys, UserRulesetKey(userID, ruleset), V1UserRulesetKey(userID, ruleset))
	}
	Invalidate(ctx, keys...)
}

// InvalidateUserScores drops every cached score listing for the user via a
// pattern scan, since the full key encodes limit/offset/include_fail/
// is_legacy combinations that cannot be enumerated here, then drops the
// profile caches that embed score-derived fields.
func InvalidateUserScores(ctx context.Context, userID uint) {
	InvalidatePattern(ctx, fmt.Sprintf("user:%d:scores:*", userID))
	InvalidateUser(ctx, userID)
}

func InvalidateBeatmapset(ctx context.Context, id uint) {
	Invalidate(ctx, BeatmapsetKey(id), BeatmapLookupKey(id))
}
