// Package password hashes and verifies user passwords with bcrypt, honoring
// the legacy md5-then-bcrypt chain old accounts were migrated from.
package password

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/Laisky/errors/v2"
	"golang.org/x/crypto/bcrypt"
)

// Hash produces a fresh bcrypt digest of the raw password. New accounts
// never go through the legacy md5 step.
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt hash password")
	}
	return string(hashed), nil
}

// Verify checks plain against hashed, trying the legacy md5-then-bcrypt
// chain first and falling back to plain bcrypt.
func Verify(plain, hashed string) bool {
	sum := md5.Sum([]byte(plain))
	md5Hex := hex.EncodeToString(sum[:])
	if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(md5Hex)) == nil {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// HashBackupCode bcrypt-hashes a single TOTP backup code for storage.
func HashBackupCode(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt hash backup code")
	}
	return string(hashed), nil
}

// VerifyBackupCode checks a plaintext backup code against its stored hash.
func VerifyBackupCode(code, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(code)) == nil
}
