package config

import "time"

// WebSocket connection limits and constraints
const (
	// Connection limits
	MaxConnectionsPerSession = 50
	MaxSessionsPerInstance   = 1000
	MaxTotalConnections      = 10000

	// Rate limiting
	MaxMessagesPerSecond = 10
	RateLimitWindow      = time.Second

	// Timeouts
	WriteTimeout = 10 * time.Second
	PingInterval = 30 * time.Second
	PongTimeout  = 90 * time.Second // 3x ping interval for network delay tolerance

	// Channel buffers
	ClientSendBufferSize = 256
)
