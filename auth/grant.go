package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/random"
	"github.com/aquareto/aquareto-server/model"
)

// TokenResponse is the OAuth-shaped payload returned by every grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Method       string `json:"verification_method,omitempty"`
}

// GrantRequest carries every field any grant_type might need; callers
// populate only the fields relevant to Grant.
type GrantRequest struct {
	GrantType    string
	ClientId     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	Code         string
	APIVersion   int
	ClientIP     string
	UserAgent    string
}

// Grant dispatches on req.GrantType, issuing a fresh
// OAuthToken/JWT pair and determining the initial second-factor state of
// the resulting LoginSession.
func Grant(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	switch req.GrantType {
	case "password":
		return grantPassword(ctx, req)
	case "refresh_token":
		return grantRefreshToken(ctx, req)
	case "authorization_code":
		return grantAuthorizationCode(ctx, req)
	case "client_credentials":
		return grantClientCredentials(ctx, req)
	default:
		return nil, apperr.New(apperr.KindValidation, "invalid_request")
	}
}

func verifyGameClient(clientID, clientSecret string) bool {
	return clientID == config.GameClientId && clientSecret == config.GameClientSecret
}

func grantPassword(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	if !verifyGameClient(req.ClientId, req.ClientSecret) {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_client")
	}

	user, err := model.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_grant")
	}

	return issueSession(ctx, user, req)
}

func grantRefreshToken(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	if !verifyGameClient(req.ClientId, req.ClientSecret) {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_client")
	}

	old, err := model.GetOAuthTokenByRefresh(req.RefreshToken)
	if err != nil {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_grant")
	}

	user, err := model.GetUserById(old.UserId)
	if err != nil {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_grant")
	}

	accessToken, jti, err := IssueJWT(user.Id)
	if err != nil {
		return nil, errors.Wrap(err, "issue jwt on refresh")
	}
	refreshToken := random.GetRandomString(64)
	if err := model.RotateOAuthToken(old.Id, jti, refreshToken); err != nil {
		return nil, errors.Wrap(err, "rotate oauth token")
	}

	loginSession, err := model.GetLoginSessionByJTI(old.AccessToken)
	verified, method := true, ""
	if err == nil {
		verified, method = loginSession.Verified, loginSession.Method
	}
	if _, err := model.CreateLoginSession(user.Id, jti, method, req.ClientIP, req.UserAgent, verified); err != nil {
		return nil, errors.Wrap(err, "create login session on refresh")
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    config.AccessTokenExpireMinutes * 60,
	}, nil
}

func grantAuthorizationCode(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	if !verifyGameClient(req.ClientId, req.ClientSecret) {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_client")
	}

	codeKey := cache.OAuthCodeKey(req.ClientId, req.Code)
	raw, err := common.RedisGet(ctx, codeKey)
	if err != nil {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_grant")
	}
	_ = common.RedisDel(ctx, codeKey)

	userID, scopes, err := decodeAuthorizationCodePayload(raw)
	if err != nil {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_grant")
	}

	user, err := model.GetUserById(userID)
	if err != nil {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_grant")
	}

	resp, err := issueSession(ctx, user, req)
	if err != nil {
		return nil, err
	}
	_ = scopes
	return resp, nil
}

func grantClientCredentials(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	if !verifyGameClient(req.ClientId, req.ClientSecret) {
		return nil, apperr.New(apperr.KindAuthentication, "invalid_client")
	}

	accessToken, jti, err := IssueJWT(0)
	if err != nil {
		return nil, errors.Wrap(err, "issue bot jwt")
	}
	// The refresh string is never returned for this grant but still must be
	// unique in the token table.
	if _, err := model.CreateOAuthToken(0, req.ClientId, jti, random.GetRandomString(64), []string{"public"}); err != nil {
		return nil, errors.Wrap(err, "persist bot token")
	}
	// Bot tokens never carry a second factor; the session is born verified.
	if _, err := model.CreateLoginSession(0, jti, "", req.ClientIP, req.UserAgent, true); err != nil {
		return nil, errors.Wrap(err, "create bot session")
	}

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   config.AccessTokenExpireMinutes * 60,
	}, nil
}

// issueSession persists the OAuthToken/LoginSession pair for user and
// decides the initial verification method under the password-grant
// rules, which authorization_code reuses verbatim.
func issueSession(ctx context.Context, user *model.User, req GrantRequest) (*TokenResponse, error) {
	accessToken, jti, err := IssueJWT(user.Id)
	if err != nil {
		return nil, errors.Wrap(err, "issue jwt")
	}
	refreshToken := random.GetRandomString(64)

	count, err := model.CountLiveTokens(user.Id, config.GameClientId)
	if err != nil {
		return nil, errors.Wrap(err, "count live tokens")
	}
	if count >= int64(config.MaxTokensPerClient) {
		if err := model.RevokeOldestToken(user.Id, config.GameClientId); err != nil {
			return nil, errors.Wrap(err, "evict oldest token")
		}
	}

	if _, err := model.CreateOAuthToken(user.Id, config.GameClientId, jti, refreshToken, []string{"*"}); err != nil {
		return nil, errors.Wrap(err, "create oauth token")
	}

	method, verified := decideVerificationMethod(ctx, user, req)
	if _, err := model.CreateLoginSession(user.Id, jti, method, req.ClientIP, req.UserAgent, verified); err != nil {
		return nil, errors.Wrap(err, "create login session")
	}

	if method == "mail" {
		if err := sendEmailCode(ctx, user); err != nil {
			return nil, errors.Wrap(err, "send verification email")
		}
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    config.AccessTokenExpireMinutes * 60,
		Method:       method,
	}, nil
}

func decideVerificationMethod(_ context.Context, user *model.User, req GrantRequest) (method string, verified bool) {
	if req.APIVersion >= config.TotpSupportVersion {
		if _, err := model.GetTotpKey(user.Id); err == nil {
			return "totp", false
		}
	}

	fingerprint := deviceFingerprint(req.ClientIP, req.UserAgent)
	if config.EmailVerificationEnabled && !model.IsDeviceTrusted(user.Id, fingerprint) {
		return "mail", false
	}

	return "", true
}

func deviceFingerprint(clientIP, userAgent string) string {
	sum := sha256.Sum256([]byte(clientIP + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

func decodeAuthorizationCodePayload(raw string) (userID uint, scopes []string, err error) {
	var payload struct {
		UserId uint     `json:"user_id"`
		Scopes []string `json:"scopes"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return 0, nil, errors.Wrap(err, "decode authorization code payload")
	}
	return payload.UserId, payload.Scopes, nil
}
