package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPerfStatsRecordOperationTracksMinMax(t *testing.T) {
	s := NewPerfStats()
	s.RecordOperation(100, true)
	s.RecordOperation(50, false)
	s.RecordOperation(200, true)

	report := s.Report()
	require.Equal(t, uint64(3), report.TotalOperations)
	require.Equal(t, uint64(50), report.MinLatencyCycles)
	require.Equal(t, uint64(200), report.MaxLatencyCycles)
	require.Equal(t, uint64(66), report.FastPathPercentage)
}

func TestPerfStatsMeetsLatencyTarget(t *testing.T) {
	s := NewPerfStats()
	s.SetCycleHz(1_000_000_000) // 1 cycle = 1ns
	s.RecordOperation(100, true)

	report := s.Report()
	require.True(t, report.MeetsLatencyTarget())
	require.True(t, report.MeetsFastPathRatio())
}

func TestPerfStatsEmptyReport(t *testing.T) {
	s := NewPerfStats()
	report := s.Report()
	require.Equal(t, uint64(0), report.TotalOperations)
	require.Equal(t, uint64(0), report.MinLatencyCycles)
}
