// Package scheduler runs named background jobs, such as periodic rescans and
// catalog refreshes, for the long-running server.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"skillgap/logger"
)

// Config holds scheduler configuration.
type Config struct {
	DefaultTimeout time.Duration
	RunOnStart     bool
}

// Scheduler runs each registered job in its own goroutine. Runs of the same
// job never overlap; a trigger that arrives while a run is in flight is
// coalesced into one follow-up run.
type Scheduler struct {
	cfg    Config
	log    logger.Logger
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // guards jobs, started, stopped and every jobState.status
	jobs    map[string]*jobState
	started bool
	stopped bool

	running   atomic.Int32
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a scheduler with the given config.
func New(cfg Config, log logger.Logger) *Scheduler {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		cfg:  cfg,
		log:  log,
		jobs: make(map[string]*jobState),
	}
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}
	if j.Interval < 0 {
		return fmt.Errorf("job %s: negative interval", j.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started, cannot add job %s", j.Name)
	}
	if _, ok := s.jobs[j.Name]; ok {
		return fmt.Errorf("job %s already registered", j.Name)
	}
	if j.Timeout <= 0 {
		j.Timeout = s.cfg.DefaultTimeout
	}
	s.jobs[j.Name] = newJobState(j)
	return nil
}

// Start launches one goroutine per job. Call Stop to shut down.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.log.Info("scheduler.started", logger.Int("jobs", len(s.jobs)))

	for _, js := range s.jobs {
		s.wg.Add(1)
		go s.loop(js)
	}
}

// Trigger asks for an immediate run of the named job.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler is stopped, cannot trigger %s", name)
	}
	js, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	select {
	case js.trigger <- struct{}{}:
	default:
		// a run is already pending
	}
	return nil
}

// Stop cancels in-flight runs and waits for every job goroutine to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	s.log.Info("scheduler.stopping")
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info("scheduler.stopped")
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() map[string]any {
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	return map[string]any{
		"jobs":      n,
		"running":   s.running.Load(),
		"completed": s.completed.Load(),
		"failed":    s.failed.Load(),
	}
}

// Jobs returns a status snapshot of every job, sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, js := range s.jobs {
		out = append(out, js.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) loop(js *jobState) {
	defer s.wg.Done()

	if s.cfg.RunOnStart {
		s.safeRun(js)
	}

	var tick <-chan time.Time
	if js.job.Interval > 0 {
		ticker := time.NewTicker(js.job.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-tick:
			s.safeRun(js)
		case <-js.trigger:
			s.safeRun(js)
		}
	}
}

func (s *Scheduler) safeRun(js *jobState) {
	if s.ctx.Err() != nil {
		return
	}
	s.running.Add(1)
	defer s.running.Add(-1)

	start := time.Now()
	s.setStatus(js, func(st *JobStatus) {
		st.Status = StatusRunning
		st.LastRun = start
	})

	err := s.run(js)

	s.setStatus(js, func(st *JobStatus) {
		st.Runs++
		st.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			st.Status = StatusFailed
			st.Failures++
			st.LastError = err.Error()
			return
		}
		st.Status = StatusCompleted
		st.LastError = ""
	})

	log := s.log.WithFields(logger.String("job", js.job.Name))
	if err != nil {
		s.failed.Add(1)
		log.Error("job.failed", logger.Err(err))
		return
	}
	s.completed.Add(1)
	log.Debug("job.completed", logger.Duration("took", time.Since(start)))
}

func (s *Scheduler) run(js *jobState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job.panic",
				logger.String("job", js.job.Name),
				logger.Any("panic", r),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, js.job.Timeout)
	defer cancel()
	return js.job.Run(ctx)
}

func (s *Scheduler) setStatus(js *jobState, fn func(*JobStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&js.status)
}
