package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
)

type fakeRunner struct {
	started chan struct{}
	release chan struct{}

	cycles    atomic.Int32
	breedings atomic.Int32
	syncs     atomic.Int32
	saves     atomic.Int32
}

func (r *fakeRunner) RunCycle(ctx context.Context) error {
	r.cycles.Add(1)
	if r.release != nil {
		r.started <- struct{}{}
		<-r.release
	}
	return nil
}

func (r *fakeRunner) RunBreeding(context.Context) error {
	r.breedings.Add(1)
	return nil
}

func (r *fakeRunner) RunChampionSync(context.Context) error {
	r.syncs.Add(1)
	return nil
}

func (r *fakeRunner) SaveState(context.Context) error {
	r.saves.Add(1)
	return nil
}

func hourly() Intervals {
	return Intervals{Cycle: time.Hour, Breeding: time.Hour, ChampionSync: time.Hour}
}

func TestScheduler_SkipsTicksWhileBusy(t *testing.T) {
	r := &fakeRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(r, hourly(), logger.Nop())

	done := make(chan bool)
	go func() { done <- s.Run(JobCycle, r.RunCycle) }()
	<-r.started

	assert.False(t, s.Run(JobBreeding, r.RunBreeding))
	assert.False(t, s.Run(JobChampionSync, r.RunChampionSync))
	assert.Equal(t, int32(0), r.breedings.Load())
	assert.Equal(t, map[string]int{JobBreeding: 1, JobChampionSync: 1}, s.Skipped())

	close(r.release)
	assert.True(t, <-done)
	assert.True(t, s.Run(JobBreeding, r.RunBreeding))
	assert.Equal(t, int32(1), r.breedings.Load())
}

func TestScheduler_StartRunsFirstCycleAndStopSaves(t *testing.T) {
	r := &fakeRunner{}
	s := NewScheduler(r, hourly(), logger.Nop())
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.Error(t, s.Start(ctx))
	require.Eventually(t, func() bool { return r.cycles.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.Equal(t, int32(1), r.saves.Load())

	require.NoError(t, s.Stop(stopCtx))
	assert.Equal(t, int32(1), r.saves.Load())
}

func TestScheduler_StartRejectsMissingInterval(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, Intervals{Cycle: time.Minute}, logger.Nop())
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, engerrors.IsCategory(err, engerrors.ErrorCategoryConfiguration))
}

func TestScheduler_FatalErrors(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, hourly(), logger.Nop())

	s.Run(JobCycle, func(context.Context) error {
		return engerrors.NewPersistenceError("scheduler", "save_state", errors.New("disk full"))
	})
	select {
	case err := <-s.Fatal():
		t.Fatalf("persistence failure should not be fatal: %v", err)
	default:
	}

	s.Run(JobCycle, func(context.Context) error {
		return engerrors.NewConfigurationError("scheduler", "cycle", "no symbols")
	})
	select {
	case err := <-s.Fatal():
		assert.True(t, engerrors.IsCategory(err, engerrors.ErrorCategoryConfiguration))
	default:
		t.Fatal("configuration failure was not reported as fatal")
	}
}
