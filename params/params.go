package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	SecurityConfigKeyPrefix = "sc:"           // redis key prefix for cached security configs
	SecurityConfigCacheTTL  = 5 * time.Minute // time to live for cached security configs
	HealthCheckServerAddr   = ":3001"         // health check server address

	DefaultPasswordHistoryLimit = 3  // previous passwords checked for reuse when no config is set
	DefaultPasswordExpiryDays   = 90 // password expiry applied to newly created security configs
	DefaultMaxFailedAttempts    = 5  // lockout threshold applied to newly created security configs
	DefaultSessionTimeoutMins   = 60 // session lifetime when the company has no config

	InvitationExpiration  = 72 * time.Hour // invitations are unusable after this
	InvitationTokenLength = 32             // length of invitation tokens

	LoginRateLimitMax    = 10              // login attempts allowed per client per window
	LoginRateLimitWindow = 1 * time.Minute // login rate limiter window
)
