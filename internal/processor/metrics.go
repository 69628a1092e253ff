package processor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time view of the audit pipeline.
type Stats struct {
	Processed       int64            `json:"total_processed"`
	Failed          int64            `json:"total_failed"`
	Dropped         int64            `json:"dropped"`
	Duplicates      int64            `json:"duplicates"`
	PersistedByType map[string]int64 `json:"persisted_by_type"`
	AvgDuration     time.Duration    `json:"avg_duration"`
	LastProcessedAt time.Time        `json:"last_processed_at"`
	Uptime          time.Duration    `json:"uptime"`
}

// ServiceMetrics counts audit events handled since start or the last Reset.
type ServiceMetrics struct {
	processed  atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64
	duplicates atomic.Int64
	durationNs atomic.Int64
	lastNs     atomic.Int64
	startNs    atomic.Int64

	mu     sync.Mutex
	byType map[string]int64
}

func NewServiceMetrics() *ServiceMetrics {
	m := &ServiceMetrics{byType: make(map[string]int64)}
	m.startNs.Store(time.Now().UnixNano())
	return m
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	m.processed.Add(1)
	m.durationNs.Add(int64(duration))
	m.lastNs.Store(time.Now().UnixNano())
}

func (m *ServiceMetrics) RecordFailure() {
	m.failed.Add(1)
}

// RecordPersisted counts an event written to the audit log under its type.
func (m *ServiceMetrics) RecordPersisted(eventType string) {
	m.mu.Lock()
	m.byType[eventType]++
	m.mu.Unlock()
}

func (m *ServiceMetrics) RecordDropped()   { m.dropped.Add(1) }
func (m *ServiceMetrics) RecordDuplicate() { m.duplicates.Add(1) }

func (m *ServiceMetrics) Snapshot() Stats {
	s := Stats{
		Processed:       m.processed.Load(),
		Failed:          m.failed.Load(),
		Dropped:         m.dropped.Load(),
		Duplicates:      m.duplicates.Load(),
		PersistedByType: make(map[string]int64),
		Uptime:          time.Since(time.Unix(0, m.startNs.Load())),
	}
	if s.Processed > 0 {
		s.AvgDuration = time.Duration(m.durationNs.Load() / s.Processed)
	}
	if last := m.lastNs.Load(); last > 0 {
		s.LastProcessedAt = time.Unix(0, last)
	}

	m.mu.Lock()
	for k, v := range m.byType {
		s.PersistedByType[k] = v
	}
	m.mu.Unlock()
	return s
}

func (m *ServiceMetrics) Reset() {
	m.processed.Store(0)
	m.failed.Store(0)
	m.dropped.Store(0)
	m.duplicates.Store(0)
	m.durationNs.Store(0)
	m.lastNs.Store(0)
	m.startNs.Store(time.Now().UnixNano())

	m.mu.Lock()
	m.byType = make(map[string]int64)
	m.mu.Unlock()
}
