package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Provider call timeouts. Room deletion gets its own shorter budget
// since a timeout there is non-fatal.
const (
	ProviderRequestTimeout = 10 * time.Second
	RoomDeleteTimeout      = 5 * time.Second
)

// Background sweep interval for overdue sessions and dead links
const SweepJobInterval = 1 * time.Minute

// Dead link rows are kept this long after expiry before being purged
const LinkRetention = 24 * time.Hour

// Presence set TTL; clients refresh it via heartbeat
const PresenceTTL = 90 * time.Second

// IP rate limits
const (
	CreateRateLimitPerMin = 10
	JoinRateLimitPerMin   = 30
)
