package auth

import (
	"encoding/base32"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// RFC 4226 appendix D test vectors: secret "12345678901234567890",
// truncated to 6 digits.
func TestHOTPReferenceVectors(t *testing.T) {
	key := []byte("12345678901234567890")
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}
	for counter, expected := range want {
		require.Equal(t, expected, hotp(key, uint64(counter)), "counter %d", counter)
	}
}

func totpSecretForTest() string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte("12345678901234567890"))
}

// stableStep returns the current TOTP step, sleeping past the boundary
// when the step is about to roll over so a test's generate and verify
// calls agree on "now".
func stableStep(t *testing.T) uint64 {
	t.Helper()
	for time.Now().Unix()%30 >= 27 {
		time.Sleep(time.Second)
	}
	return uint64(time.Now().Unix() / 30)
}

func TestVerifyTotpWindowAcceptsCurrentStep(t *testing.T) {
	secret := totpSecretForTest()
	step := stableStep(t)
	code := hotp([]byte("12345678901234567890"), step)
	require.True(t, verifyTotpWindow(secret, code, 1))
}

func TestVerifyTotpWindowAcceptsAdjacentSteps(t *testing.T) {
	secret := totpSecretForTest()
	key := []byte("12345678901234567890")
	step := stableStep(t)

	require.True(t, verifyTotpWindow(secret, hotp(key, step-1), 1))
	require.True(t, verifyTotpWindow(secret, hotp(key, step+1), 1))
}

func TestVerifyTotpWindowRejectsDistantStep(t *testing.T) {
	secret := totpSecretForTest()
	key := []byte("12345678901234567890")
	step := stableStep(t)

	require.False(t, verifyTotpWindow(secret, hotp(key, step-10), 1))
}

func TestVerifyTotpWindowZeroWindowIsExact(t *testing.T) {
	secret := totpSecretForTest()
	key := []byte("12345678901234567890")
	step := stableStep(t)

	require.True(t, verifyTotpWindow(secret, hotp(key, step), 0))
	require.False(t, verifyTotpWindow(secret, hotp(key, step+1), 0))
}

func TestVerifyTotpWindowRejectsBadSecret(t *testing.T) {
	require.False(t, verifyTotpWindow("not!valid!base32!", "123456", 1))
}

func TestNormalizeBase32Uppercases(t *testing.T) {
	require.Equal(t, "ABC234", normalizeBase32("abc234"))
}
