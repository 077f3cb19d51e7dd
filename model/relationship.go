package model

import "github.com/Laisky/errors/v2"

const (
	RelationshipFollow = "follow"
	RelationshipBlock  = "block"
)

// Relationship is a directed (user -> target) follow or block edge, read
// by the leaderboard "friends" scope and the chat block checks.
type Relationship struct {
	Id       uint   `json:"id" gorm:"primaryKey"`
	UserId   uint   `json:"user_id" gorm:"uniqueIndex:idx_relationship"`
	TargetId uint   `json:"target_id" gorm:"uniqueIndex:idx_relationship"`
	Type     string `json:"type" gorm:"type:varchar(16);uniqueIndex:idx_relationship"`
}

func GetFriendIds(userID uint) ([]uint, error) {
	var ids []uint
	err := DB.Model(&Relationship{}).
		Where("user_id = ? AND type = ?", userID, RelationshipFollow).
		Pluck("target_id", &ids).Error
	return ids, err
}

func IsBlocked(userID, targetID uint) bool {
	var count int64
	DB.Model(&Relationship{}).
		Where("user_id = ? AND target_id = ? AND type = ?", targetID, userID, RelationshipBlock).
		Count(&count)
	return count > 0
}

// CreateRelationship upserts a (userID -> targetID, relType) edge, used by
// both POST /friends and POST /blocks.
func CreateRelationship(userID, targetID uint, relType string) error {
	rel := Relationship{UserId: userID, TargetId: targetID, Type: relType}
	err := DB.Where(Relationship{UserId: userID, TargetId: targetID, Type: relType}).
		FirstOrCreate(&rel).Error
	return errors.Wrap(err, "create relationship")
}

// DeleteRelationship removes a (userID -> targetID, relType) edge.
func DeleteRelationship(userID, targetID uint, relType string) error {
	err := DB.Where("user_id = ? AND target_id = ? AND type = ?", userID, targetID, relType).
		Delete(&Relationship{}).Error
	return errors.Wrap(err, "delete relationship")
}

// ListRelationships returns every target of userID's edges of relType.
func ListRelationships(userID uint, relType string) ([]*Relationship, error) {
	var rows []*Relationship
	err := DB.Where("user_id = ? AND type = ?", userID, relType).Find(&rows).Error
	return rows, errors.Wrap(err, "list relationships")
}
