package config

import "time"

// Room limits
const (
	MaxUsersPerRoom  = 2
	SenderMaxLength  = 25
	MessageMaxLength = 5000
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Background job intervals
const SweeperJobInterval = 5 * time.Minute
