package model

const (
	AccountHistoryTypeRestriction = "restriction"
	AccountHistoryTypeSilence     = "silence"
)

// UserAccountHistory is an immutable audit trail of moderation actions,
// written whenever an account is restricted or silenced.
type UserAccountHistory struct {
	Id        uint   `json:"id" gorm:"primaryKey"`
	UserId    uint   `json:"user_id" gorm:"index"`
	Type      string `json:"type" gorm:"type:varchar(32)"`
	Reason    string `json:"reason" gorm:"type:text"`
	Until     *int64 `json:"until,omitempty"`
	CreatedAt int64  `json:"created_at" gorm:"autoCreateTime"`
}

func GetAccountHistory(userID uint) ([]*UserAccountHistory, error) {
	var rows []*UserAccountHistory
	err := DB.Where("user_id = ?", userID).Order("id desc").Find(&rows).Error
	return rows, err
}
