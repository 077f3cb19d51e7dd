// Package config holds the single process-wide configuration object:
// database/Redis connection strings, JWT settings, feature
// flags, cache TTLs, and external service URLs. Every value is read once at
// process start via common/env and never mutated afterwards except where
// explicitly noted (e.g. SessionSecret normalization).
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aquareto/aquareto-server/common/env"
)

var (
	// ServerPort is the HTTP listen port.
	ServerPort = env.String("PORT", "3000")
	// GinMode forces Gin into release/debug/test mode.
	GinMode = env.String("GIN_MODE", "release")

	// SQLDSN is the primary relational store DSN. Empty selects SQLite.
	SQLDSN = strings.TrimSpace(env.String("SQL_DSN", ""))
	// SQLitePath is the SQLite file path used when SQLDSN is empty.
	SQLitePath = env.String("SQLITE_PATH", "server.db")
	// SQLiteBusyTimeout bounds SQLite lock waits (ms).
	SQLiteBusyTimeout = env.Int("SQLITE_BUSY_TIMEOUT", 3000)
	// SQLMaxIdleConns / SQLMaxOpenConns / SQLMaxLifetimeSeconds size the pool (~30, overflow 50).
	SQLMaxIdleConns        = env.Int("SQL_MAX_IDLE_CONNS", 30)
	SQLMaxOpenConns        = env.Int("SQL_MAX_OPEN_CONNS", 80)
	SQLMaxLifetimeSeconds  = env.Int("SQL_MAX_LIFETIME", 3600)
	SQLConnectMaxRetries   = env.Int("SQL_CONNECT_MAX_RETRIES", 5)
	SQLDebugEnabled        = env.Bool("DEBUG_SQL", false)

	// RedisConnString configures the primary Redis logical store (cache/auth/pub-sub).
	RedisConnString = strings.TrimSpace(env.String("REDIS_CONN_STRING", ""))
	// RedisChatConnString configures the chat-message Redis logical store (DB index 1 by convention).
	RedisChatConnString = strings.TrimSpace(env.String("REDIS_CHAT_CONN_STRING", ""))
	// RedisBinaryConnString configures the binary/audio Redis logical store (DB index 2 by convention).
	RedisBinaryConnString = strings.TrimSpace(env.String("REDIS_BINARY_CONN_STRING", ""))

	// JWTSecret signs access tokens (HS256). A random secret is generated at
	// startup when unset so a bare dev instance still boots.
	JWTSecretEnvValue = strings.TrimSpace(env.String("JWT_SECRET", ""))
	JWTSecret         = JWTSecretEnvValue
	// JWTIssuer is the `iss` claim stamped on every access token.
	JWTIssuer = env.String("JWT_ISSUER", "server")
	// JWTAudience is an optional `aud` claim; empty disables audience checking.
	JWTAudience = env.String("JWT_AUDIENCE", "")

	// AccessTokenExpireMinutes / RefreshTokenExpireMinutes bound OAuthToken lifetimes.
	AccessTokenExpireMinutes  = env.Int("ACCESS_TOKEN_EXPIRE_MINUTES", 60)
	RefreshTokenExpireMinutes = env.Int("REFRESH_TOKEN_EXPIRE_MINUTES", 60*24*30)
	// AuthorizationCodeExpireSeconds bounds how long an oauth:code:... entry lives in Redis.
	AuthorizationCodeExpireSeconds = env.Int("AUTHORIZATION_CODE_EXPIRE_SECONDS", 300)

	// MaxTokensPerClient caps the number of live OAuthTokens a single (user, client) may hold.
	MaxTokensPerClient = env.Int("MAX_TOKENS_PER_CLIENT", 10)

	// GameClientId / GameClientSecret are the hard-coded client credentials accepted for the
	// `password` grant without a database lookup
	GameClientId     = env.String("GAME_CLIENT_ID", "5")
	GameClientSecret = env.String("GAME_CLIENT_SECRET", "FGc9GAtxcYfjEuyHkKblBLFA5abcb8mEHxN5WorC")

	// LioToken authenticates the spectator server's internal /_lio RPC calls.
	// Empty disables the whole /_lio surface.
	LioToken = env.String("LIO_TOKEN", "")

	// TotpSupportVersion is the minimum client API version that understands the `totp` verification method.
	TotpSupportVersion = env.Int("TOTP_SUPPORT_VERSION", 20230101)

	// EmailVerificationEnabled toggles the `mail` second-factor fallback.
	EmailVerificationEnabled = env.Bool("EMAIL_VERIFICATION_ENABLED", true)
	// MultiDeviceLoginEnabled allows a user to hold more than one trusted device at once.
	MultiDeviceLoginEnabled = env.Bool("MULTI_DEVICE_LOGIN_ENABLED", true)
	// TurnstileCheckEnabled toggles Cloudflare Turnstile verification on registration.
	TurnstileCheckEnabled = env.Bool("TURNSTILE_CHECK_ENABLED", false)
	// TurnstileSecretKey verifies Turnstile captcha responses server-side.
	TurnstileSecretKey = env.String("TURNSTILE_SECRET_KEY", "")

	// PasswordResetRateLimitSeconds bounds repeated reset requests per email (60s).
	PasswordResetRateLimitSeconds = env.Int("PASSWORD_RESET_RATE_LIMIT_SECONDS", 60)
	// PasswordResetCodeTTLSeconds bounds the reset code lifetime (10 min).
	PasswordResetCodeTTLSeconds = env.Int("PASSWORD_RESET_CODE_TTL_SECONDS", 600)
	// EmailCodeTTLSeconds bounds the login mail-verification code lifetime.
	EmailCodeTTLSeconds = env.Int("EMAIL_CODE_TTL_SECONDS", 600)
	// TotpReplayTTLSeconds bounds the TOTP replay-guard window (120s).
	TotpReplayTTLSeconds = env.Int("TOTP_REPLAY_TTL_SECONDS", 120)
	// TotpSetupTTLSeconds bounds the pending TOTP-enable bucket lifetime (300s).
	TotpSetupTTLSeconds = env.Int("TOTP_SETUP_TTL_SECONDS", 300)
	// TotpSetupMaxAttempts destroys the setup bucket after this many failed confirmations.
	TotpSetupMaxAttempts = env.Int("TOTP_SETUP_MAX_ATTEMPTS", 3)
	// BackupCodeCount / BackupCodeLength describe freshly generated TOTP backup codes.
	BackupCodeCount  = env.Int("BACKUP_CODE_COUNT", 10)
	BackupCodeLength = env.Int("BACKUP_CODE_LENGTH", 10)

	// AllBeatmapPPEnabled lets pp be computed for beatmaps outside ranked/approved/loved status.
	AllBeatmapPPEnabled = env.Bool("ALL_BEATMAP_PP_ENABLED", false)
	// PPFallbackEnabled allows the closed-form fallback formula when the Calculator cannot
	// score a ruleset directly.
	PPFallbackEnabled = env.Bool("PP_FALLBACK_ENABLED", true)
	// PPBestCount bounds how many scores count toward a user's weighted pp total.
	PPBestCount = env.Int("PP_BEST_COUNT", 100)
	// RulesetsVersionHash is compared against the client-supplied ruleset version hash
	// during token reservation.
	RulesetsVersionHash = env.String("RULESETS_VERSION_HASH", "")
	// MinClientVersion rejects score tokens from clients older than this build,
	// the allowlist half of the token-reservation client-version check.
	MinClientVersion = env.String("MIN_CLIENT_VERSION", "")
	// PlaycountMilestoneInterval is how often a BEATMAP_PLAYCOUNT event fires
	// for a user/beatmap pair.
	PlaycountMilestoneInterval = env.Int("PLAYCOUNT_MILESTONE_INTERVAL", 100)

	// SupportedRulesets lists the base ruleset ids this deployment accepts scores for.
	SupportedRulesets = []int{0, 1, 2, 3}

	// CalculatorBaseURL is the RPC endpoint for the external Calculator service.
	CalculatorBaseURL = env.String("CALCULATOR_BASE_URL", "http://localhost:8001")
	// CalculatorTimeoutSeconds bounds calculator RPC calls.
	CalculatorTimeoutSeconds = env.Int("CALCULATOR_TIMEOUT_SECONDS", 10)

	// FetcherClientId / FetcherClientSecret authenticate the external fetcher against upstream.
	FetcherClientId     = env.String("FETCHER_CLIENT_ID", "")
	FetcherClientSecret = env.String("FETCHER_CLIENT_SECRET", "")
	// FetcherBaseURL is the primary upstream metadata/file host.
	FetcherBaseURL = env.String("FETCHER_BASE_URL", "https://osu.ppy.sh")
	// FetcherMirrorURLs are tried in order after the primary fails.
	FetcherMirrorURLs = splitNonEmpty(env.String("FETCHER_MIRROR_URLS", ""))
	// FetcherDefaultRetryAfterSeconds is used when a 429 response omits Retry-After.
	FetcherDefaultRetryAfterSeconds = env.Int("FETCHER_DEFAULT_RETRY_AFTER_SECONDS", 60)
	// FetcherHTTPTimeoutSeconds bounds a single outbound fetcher request.
	FetcherHTTPTimeoutSeconds = env.Int("FETCHER_HTTP_TIMEOUT_SECONDS", 20)
	// FetcherMaxIdleConns / FetcherKeepAliveSeconds configure the shared pooled HTTP client.
	FetcherMaxIdleConns     = env.Int("FETCHER_MAX_IDLE_CONNS", 50)
	FetcherKeepAliveSeconds = env.Int("FETCHER_KEEPALIVE_SECONDS", 30)
	// FetcherAudioBaseURL serves unauthenticated beatmapset preview audio.
	FetcherAudioBaseURL = env.String("FETCHER_AUDIO_BASE_URL", "https://b.ppy.sh")
	// BeatmapRawCacheTTLHours controls the raw beatmap cache lifetime (24h).
	BeatmapRawCacheTTLHours = env.Int("BEATMAP_RAW_CACHE_TTL_HOURS", 24)

	// CacheDefaultTTLSeconds is the default TTL cache writers use when no
	// dedicated setting applies.
	CacheDefaultTTLSeconds = env.Int("CACHE_DEFAULT_TTL_SECONDS", 300)
	// CacheRecentScoresTTLSeconds is the shorter TTL applied to "recent" score listings.
	CacheRecentScoresTTLSeconds = env.Int("CACHE_RECENT_SCORES_TTL_SECONDS", 30)
	// CacheSearchTTLSeconds bounds beatmapset search result caching (<=5 min).
	CacheSearchTTLSeconds = env.Int("CACHE_SEARCH_TTL_SECONDS", 300)

	// ChatMessageMaxLength bounds a single chat message's content length.
	ChatMessageMaxLength = env.Int("CHAT_MESSAGE_MAX_LENGTH", 1000)
	// ChatChannelHistoryLimit bounds how many recent messages a channel's sorted set retains.
	ChatChannelHistoryLimit = env.Int("CHAT_CHANNEL_HISTORY_LIMIT", 1000)
	// ChatMessageTTLDays bounds how long an individual message blob survives in Redis.
	ChatMessageTTLDays = env.Int("CHAT_MESSAGE_TTL_DAYS", 7)
	// ChatPersistenceBatchSize bounds how many pending message ids the persistence worker pops at once.
	ChatPersistenceBatchSize = env.Int("CHAT_PERSISTENCE_BATCH_SIZE", 100)
	// ChatPersistencePollTimeoutSeconds bounds the blocking pop wait for the persistence worker.
	ChatPersistencePollTimeoutSeconds = env.Int("CHAT_PERSISTENCE_POLL_TIMEOUT_SECONDS", 1)

	// BatchUpdateIntervalSeconds is how often accumulated replay-watch
	// counters flush to UserStatistics.
	BatchUpdateIntervalSeconds = env.Int("BATCH_UPDATE_INTERVAL_SECONDS", 60)

	// SchedulerHomepageWarmupMinutes / other intervals govern the background job cadence.
	SchedulerHomepageWarmupMinutes   = env.Int("SCHEDULER_HOMEPAGE_WARMUP_MINUTES", 30)
	SchedulerRankingRefreshMinutes   = env.Int("SCHEDULER_RANKING_REFRESH_MINUTES", 15)
	SchedulerUserPreloadMinutes      = env.Int("SCHEDULER_USER_PRELOAD_MINUTES", 15)
	SchedulerUserWarmupMinutes       = env.Int("SCHEDULER_USER_WARMUP_MINUTES", 60)
	SchedulerRankHistoryHourUTC      = env.Int("SCHEDULER_RANK_HISTORY_HOUR_UTC", 0)
	SchedulerBeatmapSyncMinutes      = env.Int("SCHEDULER_BEATMAP_SYNC_MINUTES", 60)
	SchedulerDailyChallengeHourUTC   = env.Int("SCHEDULER_DAILY_CHALLENGE_HOUR_UTC", 0)

	// ServerURL / FrontendURL feed absolute links into emails and OAuth redirects.
	ServerURL   = strings.TrimSuffix(env.String("SERVER_URL", "http://localhost:3000"), "/")
	FrontendURL = strings.TrimSuffix(env.String("FRONTEND_URL", "http://localhost:5173"), "/")

	// SMTPServer / SMTPPort / SMTPAccount / SMTPFrom / SMTPToken configure outbound email.
	SMTPServer  = env.String("SMTP_SERVER", "")
	SMTPPort    = env.Int("SMTP_PORT", 587)
	SMTPAccount = env.String("SMTP_ACCOUNT", "")
	SMTPFrom    = env.String("SMTP_FROM", "")
	SMTPToken   = env.String("SMTP_TOKEN", "")
	// ForceEmailTLSVerify disables certificate verification when false, for
	// internal SMTP relays running self-signed certificates.
	ForceEmailTLSVerify = env.Bool("FORCE_EMAIL_TLS_VERIFY", true)
	// SystemName appears in the From header and verification email copy.
	SystemName = env.String("SYSTEM_NAME", "aquareto")

	// DebugEnabled toggles verbose structured logging.
	DebugEnabled = env.Bool("DEBUG", false)
	// LogRetentionDays bounds how long rotated log files are kept; 0 disables cleanup.
	LogRetentionDays = env.Int("LOG_RETENTION_DAYS", 30)
	// OnlyOneLogFile merges all rotated logs into a single file when true.
	OnlyOneLogFile = env.Bool("ONLY_ONE_LOG_FILE", false)
	// LogPushAPI defines the webhook endpoint for escalated log alerts.
	LogPushAPI = env.String("LOG_PUSH_API", "")
	// LogPushType labels outbound log alerts so downstream processors can route them.
	LogPushType = env.String("LOG_PUSH_TYPE", "")
	// LogPushToken authenticates outbound log alert requests.
	LogPushToken = env.String("LOG_PUSH_TOKEN", "")
)

// RateLimitKeyExpirationDuration controls how long Redis keys for IP-based rate
// limiting remain valid.
var RateLimitKeyExpirationDuration = 20 * time.Minute

func splitNonEmpty(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	if JWTSecretEnvValue == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("failed to generate random JWT secret: %v", err))
		}
		JWTSecret = base64.StdEncoding.EncodeToString(key)
	} else if !slices.Contains([]int{16, 24, 32}, len(JWTSecretEnvValue)) {
		hashed := sha256.Sum256([]byte(JWTSecretEnvValue))
		JWTSecret = base64.StdEncoding.EncodeToString(hashed[:32])
	}
}
