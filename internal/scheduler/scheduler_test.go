package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/internal/logger"
)

func TestTickRuns(t *testing.T) {
	s := New(config.SchedulerConfig{TickInterval: 50 * time.Millisecond, MaintenanceAt: "03:00"}, time.UTC, logger.Nop())
	var ticks, maint atomic.Int32
	require.NoError(t, s.Start(Jobs{
		Tick:        func() { ticks.Add(1) },
		Maintenance: func() { maint.Add(1) },
	}))
	defer s.Stop()

	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, maint.Load())
}

func TestPanickingJobIsContained(t *testing.T) {
	s := New(config.SchedulerConfig{TickInterval: 50 * time.Millisecond, MaintenanceAt: "03:00"}, time.UTC, logger.Nop())
	var ticks atomic.Int32
	require.NoError(t, s.Start(Jobs{Tick: func() {
		ticks.Add(1)
		panic("boom")
	}}))
	defer s.Stop()

	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestInvalidMaintenanceTime(t *testing.T) {
	s := New(config.SchedulerConfig{TickInterval: time.Minute, MaintenanceAt: "25:99"}, time.UTC, logger.Nop())
	err := s.Start(Jobs{Maintenance: func() {}})
	assert.Error(t, err)
}
