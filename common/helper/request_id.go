package helper

import "github.com/google/uuid"

// RequestIdKey is both the gin context key and the response header name a
// per-request identifier is stored/returned under.
const RequestIdKey = "X-Request-Id"

// GenRequestID produces a fresh per-request identifier.
func GenRequestID() string {
	return uuid.NewString()
}
