package model

import (
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/password"
)

// Privilege bits, or-ed into User.Privileges.
const (
	PrivilegeSupporter = 1 << iota
	PrivilegeBAT   // beatmap approval team
	PrivilegeMod
	PrivilegeAdmin
)

const (
	UserStatusActive     = 1
	UserStatusRestricted = 2
	UserStatusDeleted    = 3
)

// User is identity and profile, per-(user, ruleset) gameplay stats live in
// UserStatistics instead. Never physically deleted: UserStatusDeleted plus
// an anonymized username marks a closed account.
type User struct {
	Id               uint           `json:"id" gorm:"primaryKey"`
	Username         string         `json:"username" gorm:"unique;index" validate:"max=30"`
	PreviousUsernames StringList    `json:"previous_usernames" gorm:"type:text"`
	Email            string         `json:"email" gorm:"unique;index" validate:"max=254"`
	Password         string         `json:"-" gorm:"not null"`
	CountryCode      string         `json:"country_code" gorm:"type:varchar(2)"`
	Status           int            `json:"-" gorm:"type:int;default:1"`
	Privileges       int            `json:"-" gorm:"type:int;default:0"`
	PlayMode         int            `json:"playmode" gorm:"type:int;default:0"`
	ProfileColour    string         `json:"profile_colour" gorm:"type:varchar(7)"`
	ProfileHue       int            `json:"profile_hue" gorm:"default:0"`
	CoverURL         string         `json:"cover_url" gorm:"type:varchar(255)"`
	AvatarURL        string         `json:"avatar_url" gorm:"type:varchar(255)"`
	PageRaw          string         `json:"page_raw" gorm:"type:text"`
	PageHTML         string         `json:"page_html" gorm:"type:text"`
	SilenceEndAt     *int64         `json:"silence_end_at,omitempty"`
	DonorEndAt       *int64         `json:"donor_end_at,omitempty"`
	TotpSecret       string         `json:"-" gorm:"type:varchar(64)"`
	JoinedAt         int64          `json:"joined_at" gorm:"autoCreateTime"`
	LastVisitAt      int64          `json:"last_visit_at" gorm:"autoUpdateTime"`
	CreatedAt        int64          `json:"-" gorm:"autoCreateTime:milli"`
	UpdatedAt        int64          `json:"-" gorm:"autoUpdateTime:milli"`
}

// StringList is a comma-joined []string stored in a single text column,
// used for User.PreviousUsernames where a join table would be overkill.
type StringList []string

func (l StringList) Value() (any, error) {
	return strings.Join(l, "\x1f"), nil
}

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return errors.Errorf("unsupported StringList source type %T", src)
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = strings.Split(s, "\x1f")
	return nil
}

// IsRestricted reports whether the account is currently banned from
// submitting scores, chatting or appearing on leaderboards.
func (u *User) IsRestricted() bool {
	return u.Status == UserStatusRestricted
}

// IsSilenced reports whether the account is still within a chat mute window.
func (u *User) IsSilenced(nowUnix int64) bool {
	return u.SilenceEndAt != nil && *u.SilenceEndAt > nowUnix
}

func (u *User) HasPrivilege(bit int) bool {
	return u.Privileges&bit != 0
}

// GetUserById loads a user by primary key.
func GetUserById(id uint) (*User, error) {
	var user User
	if err := DB.First(&user, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "get user %d", id)
	}
	return &user, nil
}

func GetUserByUsername(username string) (*User, error) {
	var user User
	if err := DB.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, errors.Wrapf(err, "get user by username %q", username)
	}
	return &user, nil
}

func GetUserByEmail(email string) (*User, error) {
	var user User
	if err := DB.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, errors.Wrapf(err, "get user by email %q", email)
	}
	return &user, nil
}

func IsUsernameTaken(username string) bool {
	return DB.Where("username = ?", username).Find(&User{}).RowsAffected == 1
}

func IsEmailTaken(email string) bool {
	return DB.Where("email = ?", email).Find(&User{}).RowsAffected == 1
}

// CreateUser registers a new account and seeds a UserStatistics row for
// every configured ruleset inside a single transaction, so exactly one
// row exists per (user, ruleset) from the moment the account is visible.
func CreateUser(username, email, plainPassword, countryCode string) (*User, error) {
	hashed, err := password.Hash(plainPassword)
	if err != nil {
		return nil, errors.Wrap(err, "hash password for new user")
	}

	user := &User{
		Username:    username,
		Email:       email,
		Password:    hashed,
		CountryCode: countryCode,
		Status:      UserStatusActive,
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return errors.Wrap(err, "insert user")
		}
		for _, ruleset := range config.SupportedRulesets {
			stats := &UserStatistics{UserId: user.Id, RulesetId: ruleset, IsRanked: true}
			if err := tx.Create(stats).Error; err != nil {
				return errors.Wrapf(err, "seed statistics for ruleset %d", ruleset)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Rename changes the username, appending the old one to PreviousUsernames,
// and emits an Event the activity feed can render.
func (u *User) Rename(newUsername string) error {
	old := u.Username
	u.PreviousUsernames = append(u.PreviousUsernames, old)
	u.Username = newUsername
	if err := DB.Model(u).Select("username", "previous_usernames").Updates(u).Error; err != nil {
		return errors.Wrapf(err, "rename user %d", u.Id)
	}
	return RecordEvent(u.Id, EventTypeUsernameChange, fmt.Sprintf("%s -> %s", old, newUsername))
}

// ValidateCredentials checks username-or-email plus password against the
// stored digest, following the legacy md5-then-bcrypt fallback chain from
// common/password before reporting failure.
func ValidateCredentials(usernameOrEmail, plainPassword string) (*User, error) {
	var user User
	err := DB.Where("username = ?", usernameOrEmail).First(&user).Error
	if err != nil {
		if err = DB.Where("email = ?", usernameOrEmail).First(&user).Error; err != nil {
			return nil, errors.New("invalid credentials")
		}
	}
	if !password.Verify(plainPassword, user.Password) {
		return nil, errors.New("invalid credentials")
	}
	if user.Status == UserStatusDeleted {
		return nil, errors.New("invalid credentials")
	}
	return &user, nil
}

// Restrict flags the account as restricted and appends a UserAccountHistory
// entry recording why and for how long.
func (u *User) Restrict(reason string, until *int64) error {
	u.Status = UserStatusRestricted
	if err := DB.Model(u).Update("status", UserStatusRestricted).Error; err != nil {
		return errors.Wrapf(err, "restrict user %d", u.Id)
	}
	return DB.Create(&UserAccountHistory{
		UserId: u.Id,
		Type:   AccountHistoryTypeRestriction,
		Reason: reason,
		Until:  until,
	}).Error
}

// Silence mutes the account from chat until the given unix timestamp.
func (u *User) Silence(until int64, reason string) error {
	u.SilenceEndAt = &until
	if err := DB.Model(u).Update("silence_end_at", until).Error; err != nil {
		return errors.Wrapf(err, "silence user %d", u.Id)
	}
	return DB.Create(&UserAccountHistory{
		UserId: u.Id,
		Type:   AccountHistoryTypeSilence,
		Reason: reason,
		Until:  &until,
	}).Error
}

// SearchUsers supports the typeahead/admin lookup path.
func SearchUsers(keyword string) ([]*User, error) {
	var users []*User
	var err error
	if common.UsingPostgreSQL.Load() {
		err = DB.Where("username ILIKE ? or email ILIKE ?", keyword+"%", keyword+"%").Limit(50).Find(&users).Error
	} else {
		err = DB.Where("username LIKE ? or email LIKE ?", keyword+"%", keyword+"%").Limit(50).Find(&users).Error
	}
	if err != nil {
		return nil, errors.Wrap(err, "search users")
	}
	return users, nil
}

// SearchUsersByCountry returns every user id registered under countryCode,
// used by the country-scoped leaderboard filter.
func SearchUsersByCountry(countryCode string) ([]uint, error) {
	var ids []uint
	err := DB.Model(&User{}).Where("country_code = ?", countryCode).Pluck("id", &ids).Error
	return ids, errors.Wrap(err, "search users by country")
}


// UpdateUserProfile applies a whitelisted set of display-customization
// columns. Callers build the map from validated request fields only.
func UpdateUserProfile(userID uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return errors.Wrapf(DB.Model(&User{}).Where("id = ?", userID).Updates(fields).Error,
		"update profile for user %d", userID)
}
