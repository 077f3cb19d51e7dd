package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/logger"
	"github.com/aquareto/aquareto-server/common/random"
	"github.com/aquareto/aquareto-server/external"
	"github.com/aquareto/aquareto-server/model"
)

const emailCodeService = "login"

// VerifyRequest carries the bearer context plus the code submitted by the
// client against the session named by JTI.
type VerifyRequest struct {
	UserId      uint
	JTI         string
	Method      string
	Code        string
	ClientIP    string
	UserAgent   string
	Mailer      external.Mailer
	UserEmail   string
}

// VerifyReasonError names the structured reason codes the verify-session
// failure paths return.
type VerifyReasonError struct {
	Reason string
}

func (e *VerifyReasonError) Error() string { return e.Reason }

// VerifySession checks req.Code against the session's active method,
// falling back from totp to a backup code and, if the user's TOTP was
// removed mid-flow, downgrading to mail and issuing a fresh code.
func VerifySession(ctx context.Context, req VerifyRequest) error {
	session, err := model.GetLoginSessionByJTI(req.JTI)
	if err != nil {
		return apperr.New(apperr.KindAuthentication, "invalid_grant")
	}
	if session.Verified {
		return nil
	}

	switch session.Method {
	case "totp":
		return verifyTotpMethod(ctx, req, session)
	case "mail":
		return verifyMailMethod(ctx, req, session)
	default:
		return &VerifyReasonError{Reason: "incorrect_format"}
	}
}

func verifyTotpMethod(ctx context.Context, req VerifyRequest, session *model.LoginSession) error {
	key, err := model.GetTotpKey(req.UserId)
	if err != nil {
		return fallbackToMail(ctx, req, session)
	}

	switch len(req.Code) {
	case 6:
		if !VerifyTotpWithReplayGuard(ctx, req.UserId, key.Secret, req.Code) {
			return &VerifyReasonError{Reason: "incorrect_key"}
		}
	case 10:
		ok, err := VerifyBackupCode(req.UserId, req.Code)
		if err != nil {
			return errors.Wrap(err, "verify backup code")
		}
		if !ok {
			return &VerifyReasonError{Reason: "incorrect_key"}
		}
	default:
		return &VerifyReasonError{Reason: "incorrect_length"}
	}

	return completeVerification(req, session)
}

func verifyMailMethod(ctx context.Context, req VerifyRequest, session *model.LoginSession) error {
	if len(req.Code) != 8 {
		return &VerifyReasonError{Reason: "incorrect_length"}
	}

	key := cache.EmailCodeKey(emailCodeService, fmt.Sprintf("%d", req.UserId))
	stored, err := common.RedisGet(ctx, key)
	if err != nil || stored != req.Code {
		return &VerifyReasonError{Reason: "incorrect_key"}
	}
	_ = common.RedisDel(ctx, key)

	return completeVerification(req, session)
}

// fallbackToMail handles the case where a session started as `totp` but the
// user's TOTP key was deleted before verification completed.
func fallbackToMail(ctx context.Context, req VerifyRequest, session *model.LoginSession) error {
	if err := model.DowngradeSessionMethod(req.JTI, "mail"); err != nil {
		return errors.Wrap(err, "downgrade session to mail")
	}
	if err := sendEmailCodeFor(ctx, req.UserId, req.UserEmail, req.Mailer); err != nil {
		return errors.Wrap(err, "send fallback mail code")
	}
	return &VerifyReasonError{Reason: "incorrect_key"}
}

func completeVerification(req VerifyRequest, session *model.LoginSession) error {
	if err := model.MarkSessionVerified(req.JTI, session.Method); err != nil {
		return errors.Wrap(err, "mark session verified")
	}
	fingerprint := deviceFingerprint(req.ClientIP, req.UserAgent)
	if err := model.TrustDevice(req.UserId, fingerprint); err != nil {
		return errors.Wrap(err, "trust device")
	}
	logger.Logger.Info("login verified",
		zap.Uint("user_id", req.UserId),
		zap.String("method", session.Method),
		zap.String("ip", req.ClientIP))
	return nil
}

// ReissueEmailCode resends the mail code under a per-IP rate limit and,
// when the session is currently `totp`, irrevocably switches it to `mail`.
func ReissueEmailCode(ctx context.Context, req VerifyRequest) error {
	session, err := model.GetLoginSessionByJTI(req.JTI)
	if err != nil {
		return apperr.New(apperr.KindAuthentication, "invalid_grant")
	}
	if session.Method != "mail" {
		if err := model.DowngradeSessionMethod(req.JTI, "mail"); err != nil {
			return errors.Wrap(err, "downgrade session to mail")
		}
	}
	return sendEmailCodeFor(ctx, req.UserId, req.UserEmail, req.Mailer)
}

func sendEmailCode(ctx context.Context, user *model.User) error {
	return sendEmailCodeFor(ctx, user.Id, user.Email, external.SMTPMailer{})
}

func sendEmailCodeFor(ctx context.Context, userID uint, email string, mailer external.Mailer) error {
	code := random.GetRandomNumberString(8)
	key := cache.EmailCodeKey(emailCodeService, fmt.Sprintf("%d", userID))
	if common.IsRedisEnabled() {
		if err := common.RedisSet(ctx, key, code, time.Duration(config.EmailCodeTTLSeconds)*time.Second); err != nil {
			return errors.Wrap(err, "cache email code")
		}
	}
	if mailer == nil {
		mailer = external.SMTPMailer{}
	}
	body := fmt.Sprintf("<p>Your verification code is <strong>%s</strong>. It expires shortly.</p>", code)
	return mailer.Send(ctx, "Verification code", email, body)
}
