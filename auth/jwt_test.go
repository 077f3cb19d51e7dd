package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquareto/aquareto-server/common/config"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	token, jti, err := IssueJWT(42)
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := VerifyJWT(token)
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, jti, claims.ID)
	require.Equal(t, config.JWTIssuer, claims.Issuer)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	token, _, err := IssueJWT(42)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = VerifyJWT(tampered)
	require.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := IssueJWT(7)
	require.NoError(t, err)

	original := config.JWTSecret
	config.JWTSecret = "an-entirely-different-secret-value"
	t.Cleanup(func() { config.JWTSecret = original })

	_, err = VerifyJWT(token)
	require.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := VerifyJWT("not-a-jwt")
	require.Error(t, err)
}

func TestEachTokenGetsFreshJTI(t *testing.T) {
	_, a, err := IssueJWT(1)
	require.NoError(t, err)
	_, b, err := IssueJWT(1)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
