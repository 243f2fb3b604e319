package latency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndStatsBasic(t *testing.T) {
	m := NewMeter(100)
	m.Record("add_order", 10*time.Millisecond)
	m.Record("add_order", 20*time.Millisecond)
	m.Record("add_order", 30*time.Millisecond)

	stats := m.Stats()
	s, ok := stats["add_order"]
	require.True(t, ok)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 10*time.Millisecond, s.Min)
	assert.Equal(t, 30*time.Millisecond, s.Max)
	assert.Equal(t, 20*time.Millisecond, s.Mean)
}

func TestPercentilesOmittedBelowTenSamples(t *testing.T) {
	m := NewMeter(100)
	for i := 0; i < 5; i++ {
		m.Record("op", time.Duration(i+1)*time.Millisecond)
	}
	s := m.Stats()["op"]
	assert.Equal(t, time.Duration(0), s.P90)
	assert.Equal(t, time.Duration(0), s.P99)
}

func TestPercentilesPresentAtTenSamples(t *testing.T) {
	m := NewMeter(100)
	for i := 1; i <= 10; i++ {
		m.Record("op", time.Duration(i)*time.Millisecond)
	}
	s := m.Stats()["op"]
	assert.NotZero(t, s.P90)
	assert.NotZero(t, s.P99)
}

func TestP50AveragesTwoMiddleSamplesForEvenCount(t *testing.T) {
	m := NewMeter(100)
	m.Record("op", 10*time.Millisecond)
	m.Record("op", 20*time.Millisecond)
	m.Record("op", 30*time.Millisecond)
	m.Record("op", 40*time.Millisecond)

	s := m.Stats()["op"]
	assert.Equal(t, 25*time.Millisecond, s.P50)
}

func TestRingEvictsOldestBeyondCapacity(t *testing.T) {
	m := NewMeter(3)
	m.Record("op", 1*time.Millisecond)
	m.Record("op", 2*time.Millisecond)
	m.Record("op", 3*time.Millisecond)
	m.Record("op", 4*time.Millisecond) // evicts the 1ms sample

	s := m.Stats()["op"]
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 2*time.Millisecond, s.Min)
	assert.Equal(t, 4*time.Millisecond, s.Max)
}

func TestTrackRecordsElapsedDuration(t *testing.T) {
	m := NewMeter(10)
	stop := m.Track("op")
	time.Sleep(time.Millisecond)
	stop()

	s := m.Stats()["op"]
	assert.Equal(t, 1, s.Count)
	assert.GreaterOrEqual(t, s.Min, time.Duration(0))
}

func TestOnRecordCallback(t *testing.T) {
	m := NewMeter(10)
	var gotOp string
	var gotDur time.Duration
	m.OnRecord(func(op string, d time.Duration) {
		gotOp = op
		gotDur = d
	})
	m.Record("op", 5*time.Millisecond)

	assert.Equal(t, "op", gotOp)
	assert.Equal(t, 5*time.Millisecond, gotDur)
}
