package score

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/model"
)

// RankingPage is the cache-fronted response for GET /rankings/{ruleset}/{sort}.
type RankingPage struct {
	Users []*model.UserStatistics `json:"ranking"`
	Total int64                   `json:"total"`
}

// Rankings loads page perPage of the ranking table for rulesetID/sort,
// scoped to countryCode when non-empty, caching the result under
// cache.RankingPageKey.
func Rankings(ctx context.Context, rulesetID int, sort model.RankingSort, countryCode string, page int) (*RankingPage, error) {
	perPage := 50
	key := cache.RankingPageKey(rulesetID, string(sort), countryCode, page)

	result, err := cache.GetOrLoad(ctx, key, time.Duration(config.CacheDefaultTTLSeconds)*time.Second, func(ctx context.Context) (*RankingPage, error) {
		users, err := model.GetRankingPage(rulesetID, sort, countryCode, page, perPage)
		if err != nil {
			return nil, errors.Wrap(err, "load ranking page")
		}
		total, err := model.RankedUserCount(rulesetID)
		if err != nil {
			return nil, errors.Wrap(err, "count ranked users")
		}
		return &RankingPage{Users: users, Total: total}, nil
	})
	return result, errors.Wrap(err, "rankings")
}
