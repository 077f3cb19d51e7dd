package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // RFC 6238 mandates SHA-1 for TOTP
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"time"

	"github.com/Laisky/errors/v2"
	gcrypto "github.com/Laisky/go-utils/v5/crypto"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/password"
	"github.com/aquareto/aquareto-server/common/random"
	"github.com/aquareto/aquareto-server/model"
)

// TotpSetupStart generates a fresh secret and otpauth:// URI and stashes a
// pending-setup bucket in Redis keyed by email; enabling TOTP is two-step
// and nothing persists to the user row until the code is confirmed.
func TotpSetupStart(ctx context.Context, userID uint, username, email string) (secret, otpauthURI string, err error) {
	secret = gcrypto.Base32Secret([]byte(random.GetRandomString(20)))

	totp, err := gcrypto.NewTOTP(gcrypto.OTPArgs{
		Base32Secret: secret,
		AccountName:  username,
		IssuerName:   config.SystemName,
	})
	if err != nil {
		return "", "", errors.Wrap(err, "build totp for setup")
	}
	otpauthURI = totp.URI()
	if _, parseErr := url.Parse(otpauthURI); parseErr != nil {
		label := fmt.Sprintf("%s:%s", url.PathEscape(config.SystemName), url.PathEscape(username))
		otpauthURI = fmt.Sprintf("otpauth://totp/%s?secret=%s&issuer=%s", label, secret, url.PathEscape(config.SystemName))
	}

	cache.Set(ctx, cache.TotpSetupKey(email), totpSetupBucket{Secret: secret, Fails: 0}, time.Duration(config.TotpSetupTTLSeconds)*time.Second)
	return secret, otpauthURI, nil
}

type totpSetupBucket struct {
	Secret string `json:"secret"`
	Fails  int    `json:"fails"`
}

// TotpSetupFinish verifies the submitted code against the pending bucket
// (max config.TotpSetupMaxAttempts, then the bucket is destroyed), and on
// success persists the secret plus freshly generated bcrypt-hashed backup
// codes, deleting the pending bucket.
func TotpSetupFinish(ctx context.Context, userID uint, email, code string) (backupCodes []string, err error) {
	bucket, err := cache.GetOrLoad(ctx, cache.TotpSetupKey(email), 0, func(context.Context) (*totpSetupBucket, error) {
		return nil, errors.New("no pending totp setup")
	})
	if err != nil || bucket == nil {
		return nil, errors.New("no pending totp setup")
	}

	if !verifyTotpCode(bucket.Secret, code) {
		bucket.Fails++
		if bucket.Fails >= config.TotpSetupMaxAttempts {
			cache.Invalidate(ctx, cache.TotpSetupKey(email))
			return nil, errors.New("too many failed attempts, restart totp setup")
		}
		cache.Set(ctx, cache.TotpSetupKey(email), bucket, time.Duration(config.TotpSetupTTLSeconds)*time.Second)
		return nil, errors.New("incorrect totp code")
	}

	plainCodes := make([]string, config.BackupCodeCount)
	hashedCodes := make([]string, config.BackupCodeCount)
	for i := range plainCodes {
		plainCodes[i] = random.GetRandomString(config.BackupCodeLength)
		hashed, hashErr := password.HashBackupCode(plainCodes[i])
		if hashErr != nil {
			return nil, errors.Wrap(hashErr, "hash backup code")
		}
		hashedCodes[i] = hashed
	}

	if err := model.UpsertTotpKey(userID, bucket.Secret, hashedCodes); err != nil {
		return nil, errors.Wrap(err, "persist totp key")
	}
	cache.Invalidate(ctx, cache.TotpSetupKey(email))
	return plainCodes, nil
}

// VerifyTotpWithReplayGuard checks code against secret allowing a +/-1 step
// window (90s total at the standard 30s step), rejecting any code already
// consumed within config.TotpReplayTTLSeconds
func VerifyTotpWithReplayGuard(ctx context.Context, userID uint, secret, code string) bool {
	if code == "" || secret == "" {
		return false
	}
	if common.IsRedisEnabled() {
		if _, err := common.RedisGet(ctx, cache.TotpReplayKey(userID, code)); err == nil {
			return false
		}
	}
	if !verifyTotpWindow(secret, code, 1) {
		return false
	}
	if common.IsRedisEnabled() {
		_ = common.RedisSet(ctx, cache.TotpReplayKey(userID, code), "1", time.Duration(config.TotpReplayTTLSeconds)*time.Second)
	}
	return true
}

// VerifyBackupCode checks code against the user's stored hashes, removing
// the matched one on success; each backup code is single-use.
func VerifyBackupCode(userID uint, code string) (bool, error) {
	return model.RemoveBackupCode(userID, func(hash string) bool {
		return password.VerifyBackupCode(code, hash)
	})
}

// verifyTotpCode checks a code against the exact current step only, used
// during the setup confirmation flow where no window is specified.
func verifyTotpCode(secret, code string) bool {
	return verifyTotpWindow(secret, code, 0)
}

// verifyTotpWindow checks code against steps in [-window, window] around
// now, implemented directly against RFC 6238 since gcrypto.NewTOTP exposes
// no way to evaluate a code at an arbitrary step offset (see DESIGN.md).
func verifyTotpWindow(secret, code string, window int) bool {
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalizeBase32(secret))
	if err != nil {
		return false
	}
	now := time.Now().Unix() / 30
	for offset := -window; offset <= window; offset++ {
		if hotp(key, uint64(now+int64(offset))) == code {
			return true
		}
	}
	return false
}

func normalizeBase32(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out = append(out, byte(r))
	}
	return string(out)
}

func hotp(key []byte, counter uint64) string {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf)
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := (uint32(sum[offset])&0x7f)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])
	return fmt.Sprintf("%06d", truncated%1_000_000)
}
