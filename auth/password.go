package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/password"
	"github.com/aquareto/aquareto-server/common/random"
	"github.com/aquareto/aquareto-server/external"
	"github.com/aquareto/aquareto-server/model"
)

// RequestPasswordReset enqueues an 8-digit reset code by email, rate
// limited to one request per PasswordResetRateLimitSeconds.
func RequestPasswordReset(ctx context.Context, email string, mailer external.Mailer) error {
	if common.IsRedisEnabled() {
		if _, err := common.RedisGet(ctx, cache.PasswordResetRateLimitKey(email)); err == nil {
			return apperr.New(apperr.KindRateLimited, "rate_limited").
				WithRetryAfter(config.PasswordResetRateLimitSeconds)
		}
	}

	user, err := model.GetUserByEmail(email)
	if err != nil {
		// Do not reveal whether the email is registered.
		return nil
	}

	code := random.GetRandomNumberString(8)
	if common.IsRedisEnabled() {
		if err := common.RedisSet(ctx, cache.PasswordResetKey(email), code, time.Duration(config.PasswordResetCodeTTLSeconds)*time.Second); err != nil {
			return errors.Wrap(err, "cache password reset code")
		}
		_ = common.RedisSet(ctx, cache.PasswordResetRateLimitKey(email), "1", time.Duration(config.PasswordResetRateLimitSeconds)*time.Second)
	}

	if mailer == nil {
		mailer = external.SMTPMailer{}
	}
	body := fmt.Sprintf("<p>Your password reset code is <strong>%s</strong>. It expires in %d minutes.</p>", code, config.PasswordResetCodeTTLSeconds/60)
	if err := mailer.Send(ctx, "Password reset", user.Email, body); err != nil {
		return errors.Wrap(err, "send password reset email")
	}
	return nil
}

// ResetPassword validates code against the stored reset bucket, flips the
// password digest, and revokes every live OAuthToken/LoginSession/
// TrustedDevice for the user.
func ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < 8 {
		return apperr.New(apperr.KindValidation, "validation_error")
	}

	stored, err := common.RedisGet(ctx, cache.PasswordResetKey(email))
	if err != nil || stored != code {
		return apperr.New(apperr.KindAuthentication, "invalid_grant")
	}

	user, err := model.GetUserByEmail(email)
	if err != nil {
		return apperr.New(apperr.KindAuthentication, "invalid_grant")
	}

	if err := setPassword(user, newPassword); err != nil {
		return err
	}
	_ = common.RedisDel(ctx, cache.PasswordResetKey(email))
	return revokeAllTrust(user.Id)
}

// ChangePassword implements the authenticated change: TOTP/backup-code
// verification if the user has TOTP enabled, else the current password.
func ChangePassword(ctx context.Context, userID uint, currentPassword, totpOrBackupCode, newPassword string) error {
	if len(newPassword) < 8 {
		return apperr.New(apperr.KindValidation, "validation_error")
	}

	user, err := model.GetUserById(userID)
	if err != nil {
		return apperr.New(apperr.KindAuthentication, "invalid_grant")
	}

	key, totpErr := model.GetTotpKey(userID)
	switch {
	case totpErr == nil:
		if !passesTotpOrBackup(ctx, userID, key.Secret, totpOrBackupCode) {
			return apperr.New(apperr.KindAuthentication, "invalid_grant")
		}
	default:
		if !password.Verify(currentPassword, user.Password) {
			return apperr.New(apperr.KindAuthentication, "invalid_grant")
		}
	}

	if err := setPassword(user, newPassword); err != nil {
		return err
	}
	return model.RevokeAllUserSessions(userID)
}

func passesTotpOrBackup(ctx context.Context, userID uint, secret, code string) bool {
	switch len(code) {
	case 6:
		return VerifyTotpWithReplayGuard(ctx, userID, secret, code)
	case 10:
		ok, _ := VerifyBackupCode(userID, code)
		return ok
	default:
		return false
	}
}

func setPassword(user *model.User, newPassword string) error {
	hashed, err := password.Hash(newPassword)
	if err != nil {
		return errors.Wrap(err, "hash new password")
	}
	if err := model.DB.Model(user).Update("password", hashed).Error; err != nil {
		return errors.Wrapf(err, "persist new password for user %d", user.Id)
	}
	return nil
}

func revokeAllTrust(userID uint) error {
	if err := model.RevokeAllUserTokens(userID); err != nil {
		return errors.Wrap(err, "revoke oauth tokens")
	}
	if err := model.RevokeAllUserSessions(userID); err != nil {
		return errors.Wrap(err, "revoke login sessions")
	}
	if err := model.RevokeAllTrustedDevices(userID); err != nil {
		return errors.Wrap(err, "revoke trusted devices")
	}
	return nil
}
