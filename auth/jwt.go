// Package auth implements bearer token issuance/verification,
// the grant_type dispatch, TOTP/email second-factor verification, and the
// login-trust state machine (LoginSession/TrustedDevice).
package auth

import (
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/random"
)

// Claims is the JWT payload: `{sub, exp, jti, iss, aud?}`.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueJWT mints an HS256 access token for userID, stamping a fresh jti
// that callers persist as OAuthToken.AccessToken so the two always agree.
func IssueJWT(userID uint) (token string, jti string, err error) {
	jti = random.GetUUID()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ID:        jti,
			Issuer:    config.JWTIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(config.AccessTokenExpireMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if config.JWTAudience != "" {
		claims.Audience = jwt.ClaimStrings{config.JWTAudience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.JWTSecret))
	if err != nil {
		return "", "", errors.Wrap(err, "sign jwt")
	}
	return signed, jti, nil
}

// VerifyJWT checks the signature and standard claims, returning the parsed
// Claims. It does not consult OAuthToken or LoginSession; callers combine
// this with model lookups, since a bearer token is only as valid as the
// stored token row and the verification state of its login session.
func VerifyJWT(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(config.JWTSecret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse jwt")
	}
	if !parsed.Valid {
		return nil, errors.New("jwt not valid")
	}
	return claims, nil
}
