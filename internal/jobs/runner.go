package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"beacon/pkg/logger"
)

var (
	// ErrUnknownJob is returned for a job name that was never registered
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning is returned when another run holds the job lock
	ErrJobRunning = errors.New("job already running")
)

// Locker is a distributed lock so that only one instance runs a job
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Func performs one run and reports how many records it touched
type Func func(ctx context.Context) (int64, error)

// Job is a named unit of scheduled work
type Job struct {
	Name     string
	Schedule string
	Run      Func
}

// Status is the last known state of a job
type Status struct {
	Name         string    `json:"name"`
	Schedule     string    `json:"schedule"`
	LastRun      time.Time `json:"last_run,omitempty"`
	LastDuration string    `json:"last_duration,omitempty"`
	LastAffected int64     `json:"last_affected"`
	LastError    string    `json:"last_error,omitempty"`
	NextRun      time.Time `json:"next_run,omitempty"`
}

type entry struct {
	job    Job
	id     cron.EntryID
	status Status
}

// Runner schedules jobs with cron and guards each run with a lock
type Runner struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	timeout time.Duration
	logger  *logger.Logger

	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewRunner creates a Runner. A nil locker runs jobs without coordination.
func NewRunner(locker Locker, lockTTL time.Duration, log *logger.Logger) *Runner {
	log = log.WithComponent("jobs")
	return &Runner{
		cron: cron.New(
			cron.WithLogger(cronLogger{log}),
			cron.WithChain(cron.Recover(cronLogger{log})),
		),
		locker:  locker,
		lockTTL: lockTTL,
		timeout: lockTTL,
		logger:  log,
		jobs:    make(map[string]*entry),
	}
}

// Register adds a job to the schedule. An empty schedule registers the job
// for manual runs only.
func (r *Runner) Register(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	e := &entry{job: job, status: Status{Name: job.Name, Schedule: job.Schedule}}
	if job.Schedule != "" {
		id, err := r.cron.AddFunc(job.Schedule, func() {
			if _, err := r.run(context.Background(), job.Name); err != nil && !errors.Is(err, ErrJobRunning) {
				r.logger.Error().Err(err).Str("job", job.Name).Msg("scheduled job failed")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
		}
		e.id = id
	}

	r.jobs[job.Name] = e
	r.logger.Info().Str("job", job.Name).Str("schedule", job.Schedule).Msg("job registered")
	return nil
}

// Start begins the cron schedule in the background
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for running jobs up to ctx
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn().Msg("stopped without waiting for running jobs")
	}
}

// RunNow runs a registered job immediately
func (r *Runner) RunNow(ctx context.Context, name string) (int64, error) {
	return r.run(ctx, name)
}

// Status lists every registered job by name
func (r *Runner) Status() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.jobs))
	for _, e := range r.jobs {
		s := e.status
		if e.id != 0 {
			// Next is only filled in once the cron loop is running
			ce := r.cron.Entry(e.id)
			s.NextRun = ce.Next
			if s.NextRun.IsZero() && ce.Schedule != nil {
				s.NextRun = ce.Schedule.Next(time.Now())
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Runner) run(ctx context.Context, name string) (int64, error) {
	r.mu.RLock()
	e, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	if r.locker != nil {
		token, acquired, err := r.locker.AcquireLock(ctx, name, r.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("failed to acquire lock for %s: %w", name, err)
		}
		if !acquired {
			r.logger.Debug().Str("job", name).Msg("lock held elsewhere, skipping")
			return 0, fmt.Errorf("%w: %s", ErrJobRunning, name)
		}
		defer func() {
			if err := r.locker.ReleaseLock(context.Background(), name, token); err != nil {
				r.logger.Warn().Err(err).Str("job", name).Msg("failed to release lock")
			}
		}()
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	affected, err := e.job.Run(ctx)
	duration := time.Since(start)

	r.mu.Lock()
	e.status.LastRun = start.UTC()
	e.status.LastDuration = duration.String()
	e.status.LastAffected = affected
	e.status.LastError = ""
	if err != nil {
		e.status.LastError = err.Error()
	}
	r.mu.Unlock()

	if err != nil {
		return affected, err
	}

	r.logger.Info().
		Str("job", name).
		Int64("affected", affected).
		Dur("duration", duration).
		Msg("job completed")
	return affected, nil
}

// cronLogger routes cron's own messages through zerolog
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
