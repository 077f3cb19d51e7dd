package score

import (
	"fmt"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/eventhub"
	"github.com/aquareto/aquareto-server/model"
)

// AchievementContext is the input every medal predicate sees; state the
// predicates need is passed explicitly instead of threaded through a
// request-scoped session.
type AchievementContext struct {
	Score      *model.Score
	Beatmap    *model.Beatmap
	Beatmapset *model.Beatmapset
	Stats      *model.UserStatistics
	Playcount  int
}

// Medal is a single unlockable achievement.
type Medal struct {
	Id        string
	Name      string
	Predicate func(AchievementContext) bool
}

// Medals is the set of defined achievements evaluated after every scored
// play. New medals only need an entry here; the grant/notify machinery
// below is condition-agnostic.
var Medals = []Medal{
	{
		Id:   "rank-ss",
		Name: "Perfectionist",
		Predicate: func(c AchievementContext) bool {
			return c.Score.Rank == "X" || c.Score.Rank == "XH"
		},
	},
	{
		Id:   "full-combo",
		Name: "Full Combo",
		Predicate: func(c AchievementContext) bool {
			return c.Beatmap != nil && c.Beatmap.MaxCombo > 0 && c.Score.MaxCombo >= c.Beatmap.MaxCombo
		},
	},
	{
		Id:   "dedication-100",
		Name: "Dedication",
		Predicate: func(c AchievementContext) bool {
			return c.Playcount >= 100
		},
	},
	{
		Id:   "dedication-1000",
		Name: "Addicted",
		Predicate: func(c AchievementContext) bool {
			return c.Playcount >= 1000
		},
	},
	{
		Id:   "high-accuracy",
		Name: "Precision",
		Predicate: func(c AchievementContext) bool {
			return c.Score.Passed && c.Score.Accuracy >= 0.99
		},
	},
}

// ProcessAchievements grants every not-yet-held medal whose predicate
// passes, recording an achievement Event and a notification, and
// publishing TopicAchievementEarned for chat/notification consumers.
func ProcessAchievements(userID uint, c AchievementContext) error {
	for _, medal := range Medals {
		held, err := model.HasAchievement(userID, medal.Id)
		if err != nil {
			return errors.Wrapf(err, "check achievement %s", medal.Id)
		}
		if held || !medal.Predicate(c) {
			continue
		}

		granted, err := model.GrantAchievement(userID, medal.Id)
		if err != nil {
			return errors.Wrapf(err, "grant achievement %s", medal.Id)
		}
		if !granted {
			continue
		}

		detail := fmt.Sprintf(`{"slug":%q,"name":%q}`, medal.Id, medal.Name)
		if err := model.RecordEvent(userID, model.EventTypeAchievement, detail); err != nil {
			return errors.Wrapf(err, "record achievement event %s", medal.Id)
		}
		if err := model.CreateNotification(userID, "achievement", detail); err != nil {
			return errors.Wrapf(err, "create achievement notification %s", medal.Id)
		}
		eventhub.Default.Publish(eventhub.TopicAchievementEarned, map[string]any{
			"user_id": userID,
			"medal":   medal.Id,
		})
	}
	return nil
}
