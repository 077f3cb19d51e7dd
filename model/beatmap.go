package model

import (
	"time"

	"github.com/Laisky/errors/v2"
)

const (
	BeatmapStatusGraveyard = -2
	BeatmapStatusWIP       = -1
	BeatmapStatusPending   = 0
	BeatmapStatusRanked    = 1
	BeatmapStatusApproved  = 2
	BeatmapStatusQualified = 3
	BeatmapStatusLoved     = 4
)

// Beatmapset mirrors the upstream metadata cached on first reference; it is
// never the source of truth, the external fetcher is.
type Beatmapset struct {
	Id             uint       `json:"id" gorm:"primaryKey"`
	CreatorId      uint       `json:"creator_id" gorm:"index"`
	CreatorName    string     `json:"creator_name"`
	Status         int        `json:"status" gorm:"index"`
	Title          string     `json:"title"`
	Artist         string     `json:"artist"`
	Genre          string     `json:"genre"`
	Language       string     `json:"language"`
	Tags           string     `json:"tags" gorm:"type:text"`
	NSFW           bool       `json:"nsfw"`
	SubmittedAt    *time.Time `json:"submitted_date,omitempty"`
	RankedAt       *time.Time `json:"ranked_date,omitempty"`
	LastCheckedAt  time.Time  `json:"last_checked"`
	Beatmaps       []Beatmap  `json:"beatmaps" gorm:"foreignKey:BeatmapsetId"`
}

// Beatmap is a single difficulty within a Beatmapset.
type Beatmap struct {
	Id            uint    `json:"id" gorm:"primaryKey"`
	BeatmapsetId  uint    `json:"beatmapset_id" gorm:"index"`
	DifficultyName string `json:"version"`
	StarRating    float64 `json:"difficulty_rating"`
	RulesetId     int     `json:"mode_int"`
	TotalLength   int     `json:"total_length"`
	HitLength     int     `json:"hit_length"`
	CircleCount   int     `json:"count_circles"`
	SliderCount   int     `json:"count_sliders"`
	SpinnerCount  int     `json:"count_spinners"`
	MaxCombo      int     `json:"max_combo"`
	Checksum      string  `json:"checksum" gorm:"index"`
}

// IsScoreable reports whether pp may be computed for this beatmap, honoring
// config.AllBeatmapPPEnabled as an override for non-ranked content.
func (b *Beatmapset) IsScoreable(allBeatmapPPEnabled bool) bool {
	if allBeatmapPPEnabled {
		return true
	}
	switch b.Status {
	case BeatmapStatusRanked, BeatmapStatusApproved, BeatmapStatusLoved:
		return true
	default:
		return false
	}
}

func GetBeatmapset(id uint) (*Beatmapset, error) {
	var set Beatmapset
	if err := DB.Preload("Beatmaps").First(&set, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "get beatmapset %d", id)
	}
	return &set, nil
}

func GetBeatmap(id uint) (*Beatmap, error) {
	var bm Beatmap
	if err := DB.First(&bm, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "get beatmap %d", id)
	}
	return &bm, nil
}

// UpsertBeatmapset writes or refreshes a cached copy fetched from upstream.
func UpsertBeatmapset(set *Beatmapset) error {
	set.LastCheckedAt = time.Now()
	err := DB.Save(set).Error
	if err != nil {
		return errors.Wrapf(err, "upsert beatmapset %d", set.Id)
	}
	return nil
}

func SearchBeatmapsets(query string, status int, limit, offset int) ([]*Beatmapset, error) {
	q := DB.Model(&Beatmapset{}).Preload("Beatmaps")
	if query != "" {
		q = q.Where("title LIKE ? OR artist LIKE ? OR tags LIKE ?", "%"+query+"%", "%"+query+"%", "%"+query+"%")
	}
	if status != 0 {
		q = q.Where("status = ?", status)
	}
	var sets []*Beatmapset
	err := q.Order("ranked_at desc").Limit(limit).Offset(offset).Find(&sets).Error
	if err != nil {
		return nil, errors.Wrap(err, "search beatmapsets")
	}
	return sets, nil
}

// DailyChallengeBeatmap deterministically picks the ranked beatmap for a
// given day ordinal, cycling through the ranked pool in id order. The
// deterministic pick keeps the rotation job idempotent: re-running it on the
// same day always lands on the same map.
func DailyChallengeBeatmap(dayOrdinal int) (*Beatmap, error) {
	ranked := DB.Model(&Beatmap{}).
		Joins("JOIN beatmapsets ON beatmapsets.id = beatmaps.beatmapset_id").
		Where("beatmapsets.status = ?", BeatmapStatusRanked)

	var count int64
	if err := ranked.Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "count ranked beatmaps")
	}
	if count == 0 {
		return nil, errors.New("no ranked beatmaps available")
	}

	var bm Beatmap
	err := DB.Model(&Beatmap{}).
		Joins("JOIN beatmapsets ON beatmapsets.id = beatmaps.beatmapset_id").
		Where("beatmapsets.status = ?", BeatmapStatusRanked).
		Order("beatmaps.id asc").
		Offset(dayOrdinal % int(count)).
		First(&bm).Error
	if err != nil {
		return nil, errors.Wrap(err, "pick daily challenge beatmap")
	}
	return &bm, nil
}

// StaleBeatmapsetIds returns ids of non-terminal beatmapsets (graveyard,
// WIP, pending, or qualified) whose cached metadata hasn't been refreshed
// since before, for the periodic upstream sync job. Ranked/approved/loved
// sets are immutable enough upstream that they're excluded once seen.
func StaleBeatmapsetIds(before time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := DB.Model(&Beatmapset{}).
		Where("status IN ? AND last_checked_at < ?",
			[]int{BeatmapStatusGraveyard, BeatmapStatusWIP, BeatmapStatusPending, BeatmapStatusQualified}, before).
		Order("last_checked_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "list stale beatmapsets")
	}
	return ids, nil
}
