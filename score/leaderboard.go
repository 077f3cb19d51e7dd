package score

import (
	"encoding/json"
	"sort"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/model"
)

// Scope selects which subset of users a leaderboard query considers.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeCountry Scope = "country"
	ScopeFriends Scope = "friends"
	ScopeTeam    Scope = "team"
)

// LeaderboardEntry pairs a BestScore row with its rank position.
type LeaderboardEntry struct {
	Position int
	Score    *model.BestScore
}

// LeaderboardResult is get_leaderboard's full response: the
// ranked page plus the caller's own entry and position, even when it falls
// outside the page.
type LeaderboardResult struct {
	Entries []LeaderboardEntry
	Self    *LeaderboardEntry
}

// Leaderboard returns the top-N BestScore rows for (beatmap, ruleset),
// scoped by type and optionally filtered to an exact mods set, plus the
// caller's own entry/position.
func Leaderboard(beatmapID uint, rulesetID int, scope Scope, callerID uint, mods []string, limit int) (*LeaderboardResult, error) {
	rows, err := model.GetLeaderboard(beatmapID, rulesetID, limit*4) // overfetch to survive scope/mods filtering
	if err != nil {
		return nil, errors.Wrap(err, "load leaderboard rows")
	}

	allowed, err := scopeFilter(scope, callerID)
	if err != nil {
		return nil, errors.Wrap(err, "build scope filter")
	}

	filtered := make([]*model.BestScore, 0, len(rows))
	for _, row := range rows {
		if allowed != nil {
			if _, ok := allowed[row.UserId]; !ok {
				continue
			}
		}
		if len(mods) > 0 && !scoreHasExactMods(row.ScoreId, mods) {
			continue
		}
		filtered = append(filtered, row)
	}

	result := &LeaderboardResult{}
	for i, row := range filtered {
		entry := LeaderboardEntry{Position: i + 1, Score: row}
		if i < limit {
			result.Entries = append(result.Entries, entry)
		}
		if row.UserId == callerID {
			self := entry
			result.Self = &self
		}
	}
	return result, nil
}

func scopeFilter(scope Scope, callerID uint) (map[uint]struct{}, error) {
	switch scope {
	case ScopeGlobal, "":
		return nil, nil
	case ScopeFriends:
		ids, err := model.GetFriendIds(callerID)
		if err != nil {
			return nil, err
		}
		set := map[uint]struct{}{callerID: {}}
		for _, id := range ids {
			set[id] = struct{}{}
		}
		return set, nil
	case ScopeCountry:
		caller, err := model.GetUserById(callerID)
		if err != nil {
			return nil, err
		}
		return countryMembers(caller.CountryCode)
	case ScopeTeam:
		// Team membership is out of this deployment's scope; degrade to global.
		return nil, nil
	default:
		return nil, nil
	}
}

func countryMembers(countryCode string) (map[uint]struct{}, error) {
	ids, err := model.SearchUsersByCountry(countryCode)
	if err != nil {
		return nil, err
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// scoreHasExactMods reports whether scoreID's stored mods, sorted, equal
// the caller-supplied sorted mods set.
func scoreHasExactMods(scoreID uint, wanted []string) bool {
	s, err := model.GetScore(scoreID)
	if err != nil {
		return false
	}
	var mods []string
	if err := json.Unmarshal([]byte(s.ModsJSON), &mods); err != nil {
		return false
	}
	if len(mods) != len(wanted) {
		return false
	}
	a, b := append([]string(nil), mods...), append([]string(nil), wanted...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
