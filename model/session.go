package model

import (
	"time"

	"github.com/Laisky/errors/v2"
)

// TotpKey holds the per-user TOTP secret plus bcrypt-hashed one-time backup
// codes; a successful backup-code verification removes that code.
type TotpKey struct {
	Id          uint       `json:"id" gorm:"primaryKey"`
	UserId      uint       `json:"user_id" gorm:"uniqueIndex"`
	Secret      string     `json:"-"`
	BackupCodes StringList `json:"-" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func GetTotpKey(userID uint) (*TotpKey, error) {
	var key TotpKey
	if err := DB.Where("user_id = ?", userID).First(&key).Error; err != nil {
		return nil, errors.Wrapf(err, "get totp key for user %d", userID)
	}
	return &key, nil
}

func UpsertTotpKey(userID uint, secret string, backupCodes []string) error {
	var existing TotpKey
	err := DB.Where("user_id = ?", userID).First(&existing).Error
	if err != nil {
		return errors.Wrap(DB.Create(&TotpKey{UserId: userID, Secret: secret, BackupCodes: backupCodes}).Error, "create totp key")
	}
	existing.Secret = secret
	existing.BackupCodes = backupCodes
	return errors.Wrap(DB.Save(&existing).Error, "update totp key")
}

// RemoveBackupCode deletes a single consumed backup code hash and reports
// whether it found one matching predicate.
func RemoveBackupCode(userID uint, matches func(hash string) bool) (bool, error) {
	key, err := GetTotpKey(userID)
	if err != nil {
		return false, err
	}
	for i, hash := range key.BackupCodes {
		if matches(hash) {
			key.BackupCodes = append(key.BackupCodes[:i], key.BackupCodes[i+1:]...)
			return true, errors.Wrap(DB.Model(key).Update("backup_codes", key.BackupCodes).Error, "remove backup code")
		}
	}
	return false, nil
}

func DeleteTotpKey(userID uint) error {
	return errors.Wrap(DB.Where("user_id = ?", userID).Delete(&TotpKey{}).Error, "delete totp key")
}

// LoginSession tracks whether a given bearer token has cleared second factor.
type LoginSession struct {
	Id         uint      `json:"id" gorm:"primaryKey"`
	UserId     uint      `json:"user_id" gorm:"index"`
	TokenJTI   string    `json:"-" gorm:"uniqueIndex"`
	Method     string    `json:"method" gorm:"type:varchar(16)"`
	Verified   bool      `json:"verified"`
	ClientIP   string    `json:"-"`
	UserAgent  string    `json:"-"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func CreateLoginSession(userID uint, tokenJTI, method, clientIP, userAgent string, verified bool) (*LoginSession, error) {
	session := &LoginSession{
		UserId: userID, TokenJTI: tokenJTI, Method: method,
		Verified: verified, ClientIP: clientIP, UserAgent: userAgent,
	}
	if err := DB.Create(session).Error; err != nil {
		return nil, errors.Wrap(err, "create login session")
	}
	return session, nil
}

func GetLoginSessionByJTI(jti string) (*LoginSession, error) {
	var session LoginSession
	if err := DB.Where("token_jti = ?", jti).First(&session).Error; err != nil {
		return nil, errors.Wrap(err, "get login session")
	}
	return &session, nil
}

func MarkSessionVerified(jti, method string) error {
	return errors.Wrap(DB.Model(&LoginSession{}).Where("token_jti = ?", jti).
		Updates(map[string]any{"verified": true, "method": method}).Error, "mark session verified")
}

func DowngradeSessionMethod(jti, method string) error {
	return errors.Wrap(DB.Model(&LoginSession{}).Where("token_jti = ?", jti).Update("method", method).Error, "downgrade session method")
}

func RevokeAllUserSessions(userID uint) error {
	return errors.Wrap(DB.Where("user_id = ?", userID).Delete(&LoginSession{}).Error, "revoke all login sessions")
}

// TrustedDevice records a (user, device fingerprint) pair that has already
// cleared second factor once, so future logins from the same device skip it.
type TrustedDevice struct {
	Id          uint      `json:"id" gorm:"primaryKey"`
	UserId      uint      `json:"user_id" gorm:"uniqueIndex:idx_trusted_device"`
	Fingerprint string    `json:"-" gorm:"uniqueIndex:idx_trusted_device"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func IsDeviceTrusted(userID uint, fingerprint string) bool {
	var count int64
	DB.Model(&TrustedDevice{}).Where("user_id = ? AND fingerprint = ?", userID, fingerprint).Count(&count)
	return count > 0
}

func TrustDevice(userID uint, fingerprint string) error {
	return errors.Wrap(DB.Where(TrustedDevice{UserId: userID, Fingerprint: fingerprint}).
		FirstOrCreate(&TrustedDevice{UserId: userID, Fingerprint: fingerprint}).Error, "trust device")
}

func RevokeAllTrustedDevices(userID uint) error {
	return errors.Wrap(DB.Where("user_id = ?", userID).Delete(&TrustedDevice{}).Error, "revoke trusted devices")
}
