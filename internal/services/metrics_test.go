package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	m.IncrementConnections()
	m.IncrementConnections()
	m.DecrementConnections()
	m.IncrementSessions()
	m.IncrementMessagesReceived()
	m.IncrementMessagesSent()
	m.IncrementRateLimitViolations()

	snapshot := m.Snapshot()

	assert.Equal(t, int64(1), snapshot.ActiveConnections)
	assert.Equal(t, int64(2), snapshot.TotalConnections)
	assert.Equal(t, int64(1), snapshot.ActiveSessions)
	assert.Equal(t, int64(1), snapshot.MessagesReceived)
	assert.Equal(t, int64(1), snapshot.MessagesSent)
	assert.Equal(t, int64(1), snapshot.RateLimitViolations)
	assert.NotEqual(t, "never", snapshot.LastMessageTime)
	assert.Equal(t, "healthy", snapshot.HealthStatus)
}

func TestMetricsHealthDegradesWithErrors(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 101; i++ {
		m.IncrementBroadcastErrors()
	}

	assert.Equal(t, "warning", m.Snapshot().HealthStatus)
}

func TestMetricsConcurrentUpdates(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementConnections()
			m.IncrementMessagesSent()
			m.DecrementConnections()
		}()
	}
	wg.Wait()

	snapshot := m.Snapshot()
	assert.Equal(t, int64(0), snapshot.ActiveConnections)
	assert.Equal(t, int64(50), snapshot.TotalConnections)
	assert.Equal(t, int64(50), snapshot.MessagesSent)
}
