package helper

import (
	"encoding/base64"
	"encoding/json"

	"github.com/Laisky/errors/v2"
)

// Cursor is the opaque pagination token search endpoints hand back to the
// client; the client replays it verbatim to fetch the next page.
type Cursor struct {
	Offset int `json:"offset"`
}

// EncodeCursor serializes c into its opaque wire form.
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque cursor back into its fields; a malformed
// token is a validation error, never a panic.
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, errors.Wrap(err, "decode cursor")
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, errors.Wrap(err, "parse cursor")
	}
	if c.Offset < 0 {
		return Cursor{}, errors.New("negative cursor offset")
	}
	return c, nil
}
