package services

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sprintdeck/estimation/internal/config"
)

// Metrics tracks live-session fan-out performance and resource usage.
type Metrics struct {
	// Connection metrics
	activeConnections int64
	totalConnections  int64
	activeSessions    int64

	// Message metrics
	messagesReceived int64
	messagesSent     int64
	lastMessageTime  int64 // Unix timestamp

	// Error metrics
	connectionErrors    int64
	broadcastErrors     int64
	rateLimitViolations int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// Connection tracking
func (m *Metrics) IncrementConnections() {
	atomic.AddInt64(&m.activeConnections, 1)
	atomic.AddInt64(&m.totalConnections, 1)
}

func (m *Metrics) DecrementConnections() {
	atomic.AddInt64(&m.activeConnections, -1)
}

func (m *Metrics) IncrementSessions() {
	atomic.AddInt64(&m.activeSessions, 1)
}

func (m *Metrics) DecrementSessions() {
	atomic.AddInt64(&m.activeSessions, -1)
}

// Message tracking
func (m *Metrics) IncrementMessagesReceived() {
	atomic.AddInt64(&m.messagesReceived, 1)
	atomic.StoreInt64(&m.lastMessageTime, time.Now().Unix())
}

func (m *Metrics) IncrementMessagesSent() {
	atomic.AddInt64(&m.messagesSent, 1)
}

// Error tracking
func (m *Metrics) IncrementConnectionErrors() {
	atomic.AddInt64(&m.connectionErrors, 1)
}

func (m *Metrics) IncrementBroadcastErrors() {
	atomic.AddInt64(&m.broadcastErrors, 1)
}

func (m *Metrics) IncrementRateLimitViolations() {
	atomic.AddInt64(&m.rateLimitViolations, 1)
}

// MetricsSnapshot represents a point-in-time view of metrics.
type MetricsSnapshot struct {
	// Connection metrics
	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	ActiveSessions    int64 `json:"active_sessions"`

	// Message metrics
	MessagesReceived  int64   `json:"messages_received"`
	MessagesSent      int64   `json:"messages_sent"`
	MessagesPerSecond float64 `json:"messages_per_second"`
	LastMessageTime   string  `json:"last_message_time"`

	// Error metrics
	ConnectionErrors    int64 `json:"connection_errors"`
	BroadcastErrors     int64 `json:"broadcast_errors"`
	RateLimitViolations int64 `json:"rate_limit_violations"`

	// Resource metrics
	UptimeSeconds int64  `json:"uptime_seconds"`
	MemoryUsageMB uint64 `json:"memory_usage_mb"`
	NumGoroutines int    `json:"num_goroutines"`

	HealthStatus string `json:"health_status"`
}

// Snapshot returns a point-in-time view of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.startTime)
	messagesPerSec := float64(atomic.LoadInt64(&m.messagesReceived)) / uptime.Seconds()

	lastMsgTime := atomic.LoadInt64(&m.lastMessageTime)
	lastMsgTimeStr := "never"
	if lastMsgTime > 0 {
		lastMsgTimeStr = time.Unix(lastMsgTime, 0).Format(time.RFC3339)
	}

	return MetricsSnapshot{
		ActiveConnections:   atomic.LoadInt64(&m.activeConnections),
		TotalConnections:    atomic.LoadInt64(&m.totalConnections),
		ActiveSessions:      atomic.LoadInt64(&m.activeSessions),
		MessagesReceived:    atomic.LoadInt64(&m.messagesReceived),
		MessagesSent:        atomic.LoadInt64(&m.messagesSent),
		MessagesPerSecond:   messagesPerSec,
		LastMessageTime:     lastMsgTimeStr,
		ConnectionErrors:    atomic.LoadInt64(&m.connectionErrors),
		BroadcastErrors:     atomic.LoadInt64(&m.broadcastErrors),
		RateLimitViolations: atomic.LoadInt64(&m.rateLimitViolations),
		UptimeSeconds:       int64(uptime.Seconds()),
		MemoryUsageMB:       memStats.Alloc / 1024 / 1024,
		NumGoroutines:       runtime.NumGoroutine(),
		HealthStatus:        m.calculateHealthStatus(),
	}
}

// calculateHealthStatus determines overall system health from capacity use
// and accumulated errors.
func (m *Metrics) calculateHealthStatus() string {
	activeConns := atomic.LoadInt64(&m.activeConnections)
	activeSessions := atomic.LoadInt64(&m.activeSessions)
	errors := atomic.LoadInt64(&m.connectionErrors) + atomic.LoadInt64(&m.broadcastErrors)

	if activeConns > config.MaxTotalConnections*9/10 || activeSessions > config.MaxSessionsPerInstance*9/10 {
		return "critical"
	}
	if activeConns > config.MaxTotalConnections*8/10 || activeSessions > config.MaxSessionsPerInstance*8/10 || errors > 100 {
		return "warning"
	}
	return "healthy"
}
