package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/internal/monitoring"
)

// Job names
const (
	JobCycle        = "cycle"
	JobBreeding     = "breeding"
	JobChampionSync = "champion_sync"
)

// Runner is the work the scheduler drives
type Runner interface {
	RunCycle(ctx context.Context) error
	RunBreeding(ctx context.Context) error
	RunChampionSync(ctx context.Context) error
	SaveState(ctx context.Context) error
}

// Intervals are the periods of the three jobs
type Intervals struct {
	Cycle        time.Duration
	Breeding     time.Duration
	ChampionSync time.Duration
}

// Scheduler runs the engine's jobs on independent timers. All jobs share one
// in-flight guard: a tick that arrives while any job runs is skipped, not queued.
type Scheduler struct {
	runner    Runner
	intervals Intervals
	cron      *cron.Cron
	log       *logger.Logger

	busy    sync.Mutex
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	fatal   chan error
	skipped map[string]int
	started bool
}

// NewScheduler creates a scheduler for runner
func NewScheduler(runner Runner, intervals Intervals, log *logger.Logger) *Scheduler {
	l := log.With("cron")
	zl := l.Zerolog()
	cronLog := cron.PrintfLogger(&zl)
	return &Scheduler{
		runner:    runner,
		intervals: intervals,
		cron:      cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog))),
		log:       l,
		fatal:     make(chan error, 1),
		skipped:   make(map[string]int),
	}
}

// Start registers the jobs and starts the timers. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	jobs := []struct {
		name  string
		every time.Duration
		fn    func(context.Context) error
	}{
		{JobCycle, s.intervals.Cycle, s.runner.RunCycle},
		{JobBreeding, s.intervals.Breeding, s.runner.RunBreeding},
		{JobChampionSync, s.intervals.ChampionSync, s.runner.RunChampionSync},
	}
	for _, j := range jobs {
		if j.every <= 0 {
			return engerrors.NewConfigurationError("scheduler", "start",
				fmt.Sprintf("%s interval must be positive", j.name))
		}
		name, fn := j.name, j.fn
		if _, err := s.cron.AddFunc("@every "+j.every.String(), func() { s.Run(name, fn) }); err != nil {
			return engerrors.NewConfigurationError("scheduler", "start", err.Error())
		}
		s.log.Info("%s every %s", name, j.every)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.cron.Start()
	go s.Run(JobCycle, s.runner.RunCycle)
	return nil
}

// Run executes one job unless another is in flight. It returns false when
// the job was skipped.
func (s *Scheduler) Run(name string, fn func(context.Context) error) bool {
	if !s.busy.TryLock() {
		s.mu.Lock()
		s.skipped[name]++
		s.mu.Unlock()
		monitoring.RecordJob(name, "skipped")
		s.log.Warning("%s tick skipped: another job is running", name)
		return false
	}
	defer s.busy.Unlock()

	ctx := s.jobContext()
	start := time.Now()
	err := fn(ctx)
	if err == nil {
		monitoring.RecordJob(name, "ok")
		s.log.Debug("%s finished in %s", name, time.Since(start).Round(time.Millisecond))
		return true
	}

	monitoring.RecordJob(name, "failed")
	ee := engerrors.CategorizeError(err, "scheduler", name)
	s.log.LogError(fmt.Sprintf("%s failed (%s)", name, ee.GetRecoveryAction()), err)
	if ee.IsFatal() {
		select {
		case s.fatal <- ee:
		default:
		}
	}
	return true
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Fatal delivers the first error that should stop the process
func (s *Scheduler) Fatal() <-chan error { return s.fatal }

// Skipped returns how many ticks of each job were skipped
func (s *Scheduler) Skipped() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.skipped))
	for k, v := range s.skipped {
		out[k] = v
	}
	return out
}

// Stop halts the timers, waits for an in-flight job to finish, then saves
// the population. ctx bounds the wait.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warning("timed out waiting for running job, cancelling it")
		s.cancel()
	}

	// the first cycle runs outside cron and may still hold the guard
	s.busy.Lock()
	defer s.busy.Unlock()
	s.cancel()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.runner.SaveState(saveCtx); err != nil {
		return err
	}
	s.log.Info("scheduler stopped")
	return nil
}
