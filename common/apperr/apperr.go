// Package apperr defines the error taxonomy and the {error, msg_key,
// hint?} envelope every handler converts failures into.
package apperr

import (
	"net/http"

	"github.com/Laisky/errors/v2"
)

type Kind int

const (
	KindValidation Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimited
	KindUpstream
	KindInternal
)

func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed application error; MsgKey indexes into common/i18n.
type Error struct {
	Kind       Kind
	MsgKey     string
	Details    map[string]string
	RetryAfter int // seconds, set only for rate-limited/upstream-429 errors
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.MsgKey
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(kind Kind, msgKey string) *Error {
	return &Error{Kind: kind, MsgKey: msgKey}
}

func Wrap(kind Kind, msgKey string, cause error) *Error {
	return &Error{Kind: kind, MsgKey: msgKey, cause: errors.WithStack(cause)}
}

func (e *Error) WithDetails(details map[string]string) *Error {
	e.Details = details
	return e
}

func (e *Error) WithRetryAfter(seconds int) *Error {
	e.RetryAfter = seconds
	return e
}

// Envelope is the JSON body returned on failure. Hint carries the
// localized human-readable form of MsgKey when a translation exists; it is
// filled at the HTTP boundary, not here.
type Envelope struct {
	Error   string            `json:"error"`
	MsgKey  string            `json:"msg_key"`
	Hint    string            `json:"hint,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ToEnvelope converts any error into the uniform response body and the
// HTTP status it should be served with. Errors that are not *Error are
// treated as internal and never leak their message to the client.
func ToEnvelope(err error) (int, Envelope) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind.HTTPStatus(), Envelope{
			Error:   appErr.Kind.String(),
			MsgKey:  appErr.MsgKey,
			Details: appErr.Details,
		}
	}
	return http.StatusInternalServerError, Envelope{
		Error:  "internal",
		MsgKey: "internal_error",
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindAuthentication:
		return "authentication_error"
	case KindAuthorization:
		return "authorization_error"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream_error"
	default:
		return "internal_error"
	}
}

// Common pre-built errors used across packages.
var (
	ErrInvalidCredentials = New(KindAuthentication, "invalid_credentials")
	ErrInvalidClient      = New(KindAuthentication, "invalid_client")
	ErrInvalidGrant       = New(KindAuthentication, "invalid_grant")
	ErrInvalidScope       = New(KindAuthorization, "invalid_scope")
	ErrRestrictedUser     = New(KindAuthorization, "restricted_user")
	ErrTotpRequired       = New(KindAuthentication, "totp_required")
	ErrMailRequired       = New(KindAuthentication, "mail_required")
	ErrTokenAlreadyRedeemed = New(KindConflict, "token_already_redeemed")
	ErrRoomEnded          = New(KindConflict, "room_ended")
	ErrPlaylistItemExpired = New(KindConflict, "playlist_item_expired")
	ErrRateLimited        = New(KindRateLimited, "rate_limited")
)
