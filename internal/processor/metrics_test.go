package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServiceMetrics(t *testing.T) {
	m := NewServiceMetrics()
	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)
	m.RecordFailure()
	m.RecordDropped()
	m.RecordDuplicate()
	m.RecordPersisted("sms_request")
	m.RecordPersisted("sms_request")
	m.RecordPersisted("payment")

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Processed)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, int64(1), s.Dropped)
	assert.Equal(t, int64(1), s.Duplicates)
	assert.Equal(t, 20*time.Millisecond, s.AvgDuration)
	assert.Equal(t, map[string]int64{"sms_request": 2, "payment": 1}, s.PersistedByType)
	assert.False(t, s.LastProcessedAt.IsZero())

	m.Reset()
	s = m.Snapshot()
	assert.Zero(t, s.Processed)
	assert.Empty(t, s.PersistedByType)
	assert.True(t, s.LastProcessedAt.IsZero())
}

func TestServiceMetrics_SnapshotIsCopy(t *testing.T) {
	m := NewServiceMetrics()
	m.RecordPersisted("payment")
	s := m.Snapshot()
	s.PersistedByType["payment"] = 99
	assert.Equal(t, int64(1), m.Snapshot().PersistedByType["payment"])
}
