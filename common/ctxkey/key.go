package ctxkey

const (
	// UserId is the authenticated user id for the current request.
	// Set in: middleware.Auth once the bearer token has been verified.
	// Read widely by controllers and the score/chat/room packages for ownership checks.
	UserId = "user_id"

	// Scopes is the OAuth scope list granted to the current bearer token.
	// Set in: middleware.Auth.
	// Read in: middleware.RequireScope.
	Scopes = "scopes"

	// TokenId is the numeric id of the OAuthToken backing the current request.
	// Set in: middleware.Auth.
	TokenId = "oauth_token_id"

	// ClientId is the OAuth client id associated with the current bearer token,
	// used to distinguish the hard-coded game client from third-party OAuth apps.
	ClientId = "client_id"

	// SessionVerified reports whether the current LoginSession has cleared its
	// second-factor requirement. Privileged endpoints read this before proceeding.
	SessionVerified = "session_verified"

	// RequestId is a per-request identifier attached to logs and error envelopes.
	RequestId = "X-Request-Id"

	// ClientIP is the caller's IP address, used for rate limiting and device fingerprinting.
	ClientIP = "client_ip"

	// UserAgent is the caller's raw User-Agent header, used for device fingerprinting.
	UserAgent = "user_agent"
)
