package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "eventcal/internal/log"
)

// DefaultInterval is the polling period between reminder cycles.
const DefaultInterval = 60 * time.Second

var ErrAlreadyStarted = errors.New("reminder: runner already started")

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Runner owns the periodic task driving a Scheduler. It runs one cycle as
// soon as it starts and then every interval until Stop. Cycles never overlap;
// a tick that arrives while a cycle is still running is skipped.
type Runner struct {
	sched    *Scheduler
	interval time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	initial sync.WaitGroup
}

func NewRunner(s *Scheduler, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{sched: s, interval: interval}
}

// Start schedules the task. ctx bounds every cycle; cancelling it aborts
// in-flight deliveries but the runner keeps ticking until Stop.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{}
	job := cron.NewChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	).Then(cron.FuncJob(func() {
		r.sched.RunCycle(runCtx)
	}))

	c := cron.New(cron.WithLogger(logger))
	c.Schedule(cron.Every(r.interval), job)

	r.cron = c
	r.cancel = cancel

	r.initial.Add(1)
	go func() {
		defer r.initial.Done()
		job.Run()
	}()
	c.Start()

	appLog.Info("reminder runner started", "interval", r.interval)
	return nil
}

// Stop cancels in-flight work and waits for any running cycle to return.
// It is safe to call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.cancel = nil, nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	r.initial.Wait()
	appLog.Info("reminder runner stopped")
}
