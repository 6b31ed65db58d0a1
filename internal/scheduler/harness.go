// Package scheduler owns the periodic jobs of one process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownJob   = errors.New("unknown job")
	ErrJobRunning   = errors.New("job is already running")
	ErrStopped      = errors.New("scheduler stopped")
	ErrDuplicateJob = errors.New("job already registered")
)

// JobFunc runs one tick. The context is cancelled when the harness stops.
type JobFunc func(ctx context.Context) error

type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Running   bool       `json:"running"`
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Runs      int64      `json:"runs"`
}

type job struct {
	name    string
	spec    string
	fn      JobFunc
	entryID cron.EntryID
	// held for the whole run so a job never overlaps itself
	inFlight sync.Mutex

	// guarded by Harness.mu
	running bool
	lastRun time.Time
	lastErr error
	runs    int64
}

type Harness struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*job
	started bool
	stopped bool
}

type Option func(*options)

type options struct {
	location *time.Location
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func New(opts ...Option) *Harness {
	o := options{location: time.Local, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Harness{
		cron:    cron.New(cron.WithLocation(o.location)),
		logger:  o.logger.With().Str("component", "scheduler").Logger(),
		metrics: o.metrics,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*job),
	}
}

// Register adds a job under a standard five field cron spec or a descriptor
// such as "@every 30s".
func (h *Harness) Register(name, spec string, fn JobFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	j := &job{name: name, spec: spec, fn: fn}
	id, err := h.cron.AddFunc(spec, func() { h.tick(j) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	j.entryID = id
	h.jobs[name] = j
	return nil
}

func (h *Harness) Start() {
	h.mu.Lock()
	if h.started || h.stopped {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	h.cron.Start()

	for _, status := range h.Status() {
		event := h.logger.Info().Str("job", status.Name).Str("schedule", status.Schedule)
		if status.NextRun != nil {
			event = event.Time("next_run", *status.NextRun)
		}
		event.Msg("job scheduled")
	}
}

// RunNow runs a job on the caller's goroutine, outside its schedule.
func (h *Harness) RunNow(ctx context.Context, name string) error {
	h.mu.Lock()
	j, ok := h.jobs[name]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	return h.run(ctx, j, "manual")
}

func (h *Harness) tick(j *job) {
	err := h.run(h.ctx, j, "schedule")
	if errors.Is(err, ErrJobRunning) {
		h.metrics.JobSkipped(j.name)
	}
}

func (h *Harness) run(ctx context.Context, j *job, trigger string) (err error) {
	logger := h.logger.With().Str("job", j.name).Str("trigger", trigger).Logger()

	if !j.inFlight.TryLock() {
		logger.Warn().Msg("previous run still in flight, skipping")
		return ErrJobRunning
	}
	defer j.inFlight.Unlock()

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrStopped
	}
	h.wg.Add(1)
	j.running = true
	h.mu.Unlock()
	defer h.wg.Done()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
		elapsed := time.Since(start)

		h.mu.Lock()
		j.running = false
		j.lastRun = start
		j.lastErr = err
		j.runs++
		h.mu.Unlock()

		h.metrics.ObserveJob(j.name, elapsed, err)
		if err != nil {
			logger.Error().Err(err).Dur("elapsed", elapsed).Msg("job failed")
			return
		}
		logger.Debug().Dur("elapsed", elapsed).Msg("job finished")
	}()

	return j.fn(ctx)
}

// Status reports every registered job keyed by name.
func (h *Harness) Status() map[string]JobStatus {
	h.mu.Lock()
	jobs := make([]*job, 0, len(h.jobs))
	for _, j := range h.jobs {
		jobs = append(jobs, j)
	}
	active := h.started && !h.stopped
	h.mu.Unlock()

	entries := make(map[cron.EntryID]cron.Entry, len(jobs))
	for _, j := range jobs {
		entries[j.entryID] = h.cron.Entry(j.entryID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	statuses := make(map[string]JobStatus, len(jobs))
	for _, j := range jobs {
		status := JobStatus{
			Name:     j.name,
			Schedule: j.spec,
			Running:  j.running,
			Runs:     j.runs,
		}
		entry := entries[j.entryID]
		status.Scheduled = active && entry.Valid()
		if status.Scheduled && !entry.Next.IsZero() {
			next := entry.Next
			status.NextRun = &next
		}
		if !j.lastRun.IsZero() {
			last := j.lastRun
			status.LastRun = &last
		}
		if j.lastErr != nil {
			status.LastError = j.lastErr.Error()
		}
		statuses[j.name] = status
	}
	return statuses
}

// Names lists registered jobs in alphabetical order.
func (h *Harness) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StopAll stops future ticks and waits for in-flight runs. When ctx expires
// first, running jobs see their context cancelled and ctx's error is returned.
func (h *Harness) StopAll(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	h.mu.Unlock()

	h.cron.Stop()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	defer h.cancel()
	select {
	case <-done:
		h.logger.Info().Msg("all jobs stopped")
		return nil
	case <-ctx.Done():
		h.logger.Warn().Msg("shutdown deadline reached with jobs still running")
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}
