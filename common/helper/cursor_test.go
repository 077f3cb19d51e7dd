package helper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	for _, c := range []Cursor{{}, {Offset: 1}, {Offset: 50}, {Offset: 123456}} {
		decoded, err := DecodeCursor(EncodeCursor(c))
		require.NoError(t, err)
		require.Equal(t, c, decoded)
	}
}

func TestDecodeCursorEmptyIsZero(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	require.Zero(t, c.Offset)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, s := range []string{"not-base64!!", "bm90IGpzb24", EncodeCursor(Cursor{Offset: -1})} {
		// EncodeCursor(-1) is a token no server ever issued; decoding must
		// still refuse it rather than paginate backwards.
		_, err := DecodeCursor(s)
		require.Error(t, err, s)
	}
}
