package model

import (
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/aquareto/aquareto-server/common/config"
)

// OAuthClient is a registered third-party application; the hard-coded game
// client credentials in common/config never appear as a row here.
type OAuthClient struct {
	Id           uint   `json:"id" gorm:"primaryKey"`
	Secret       string `json:"-"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	RedirectURIs StringList `json:"redirect_uris" gorm:"type:text"`
	OwnerId      uint   `json:"owner_id" gorm:"index"`
	CreatedAt    int64  `json:"created_at" gorm:"autoCreateTime"`
}

// OAuthToken is an issued bearer/refresh pair. AccessToken is globally unique.
type OAuthToken struct {
	Id              uint       `json:"id" gorm:"primaryKey"`
	AccessToken     string     `json:"-" gorm:"uniqueIndex"`
	RefreshToken    string     `json:"-" gorm:"uniqueIndex"`
	Scopes          StringList `json:"scopes" gorm:"type:text"`
	UserId          uint       `json:"user_id" gorm:"index"`
	ClientId        string     `json:"client_id" gorm:"index"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	ExpiresAt       time.Time  `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func CreateOAuthToken(userID uint, clientID, jti, refreshToken string, scopes []string) (*OAuthToken, error) {
	now := time.Now()
	token := &OAuthToken{
		AccessToken:      jti,
		RefreshToken:     refreshToken,
		Scopes:           scopes,
		UserId:           userID,
		ClientId:         clientID,
		ExpiresAt:        now.Add(time.Duration(config.AccessTokenExpireMinutes) * time.Minute),
		RefreshExpiresAt: now.Add(time.Duration(config.RefreshTokenExpireMinutes) * time.Minute),
	}
	if err := DB.Create(token).Error; err != nil {
		return nil, errors.Wrap(err, "create oauth token")
	}
	return token, nil
}

// GetOAuthTokenByJTI loads a live (non-expired) token row by its JWT jti.
func GetOAuthTokenByJTI(jti string) (*OAuthToken, error) {
	var token OAuthToken
	err := DB.Where("access_token = ? AND expires_at > ?", jti, time.Now()).First(&token).Error
	if err != nil {
		return nil, errors.Wrap(err, "get oauth token by jti")
	}
	return &token, nil
}

func GetOAuthTokenByRefresh(refreshToken string) (*OAuthToken, error) {
	var token OAuthToken
	err := DB.Where("refresh_token = ? AND refresh_expires_at > ?", refreshToken, time.Now()).First(&token).Error
	if err != nil {
		return nil, errors.Wrap(err, "get oauth token by refresh token")
	}
	return &token, nil
}

// RotateOAuthToken replaces both strings and extends the expirations,
// matching the refresh_token grant's rotate-both-secrets behavior.
func RotateOAuthToken(tokenID uint, newJTI, newRefresh string) error {
	now := time.Now()
	updates := map[string]any{
		"access_token":       newJTI,
		"refresh_token":      newRefresh,
		"expires_at":         now.Add(time.Duration(config.AccessTokenExpireMinutes) * time.Minute),
		"refresh_expires_at": now.Add(time.Duration(config.RefreshTokenExpireMinutes) * time.Minute),
	}
	return errors.Wrap(DB.Model(&OAuthToken{}).Where("id = ?", tokenID).Updates(updates).Error, "rotate oauth token")
}

// CountLiveTokens enforces config.MaxTokensPerClient before issuing a new one.
func CountLiveTokens(userID uint, clientID string) (int64, error) {
	var count int64
	err := DB.Model(&OAuthToken{}).
		Where("user_id = ? AND client_id = ? AND expires_at > ?", userID, clientID, time.Now()).
		Count(&count).Error
	return count, errors.Wrap(err, "count live tokens")
}

// RevokeOldestToken evicts the oldest live token for (user, client) to make
// room under MaxTokensPerClient.
func RevokeOldestToken(userID uint, clientID string) error {
	var token OAuthToken
	err := DB.Where("user_id = ? AND client_id = ?", userID, clientID).Order("created_at asc").First(&token).Error
	if err != nil {
		return errors.Wrap(err, "find oldest token")
	}
	return errors.Wrap(DB.Delete(&token).Error, "revoke oldest token")
}

// RevokeAllUserTokens invalidates every live OAuthToken for the user, used
// by password reset/change.
func RevokeAllUserTokens(userID uint) error {
	return errors.Wrap(DB.Where("user_id = ?", userID).Delete(&OAuthToken{}).Error, "revoke all tokens")
}

func CreateOAuthClient(client *OAuthClient) error {
	return errors.Wrap(DB.Create(client).Error, "create oauth client")
}

func GetOAuthClientsByOwner(ownerID uint) ([]*OAuthClient, error) {
	var clients []*OAuthClient
	err := DB.Where("owner_id = ?", ownerID).Order("id asc").Find(&clients).Error
	return clients, errors.Wrap(err, "list oauth clients")
}

// DeleteOAuthClient removes the client and every token it issued; scoped to
// ownerID so users can only delete their own apps.
func DeleteOAuthClient(ownerID, clientID uint) error {
	res := DB.Where("owner_id = ? AND id = ?", ownerID, clientID).Delete(&OAuthClient{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete oauth client")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return errors.Wrap(DB.Where("client_id = ?", fmt.Sprintf("%d", clientID)).Delete(&OAuthToken{}).Error,
		"revoke deleted client's tokens")
}

// ListTokensByClient serves the API-key listing: every live token the user
// holds under clientID.
func ListTokensByClient(userID uint, clientID string) ([]*OAuthToken, error) {
	var tokens []*OAuthToken
	err := DB.Where("user_id = ? AND client_id = ? AND expires_at > ?", userID, clientID, time.Now()).
		Order("id asc").Find(&tokens).Error
	return tokens, errors.Wrap(err, "list tokens by client")
}

// DeleteTokenById revokes one token row, scoped to its owner.
func DeleteTokenById(userID, tokenID uint) error {
	res := DB.Where("user_id = ? AND id = ?", userID, tokenID).Delete(&OAuthToken{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete token")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
