package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// JobFunc is one run of a background job.
type JobFunc func(ctx context.Context) error

type Scheduler struct {
	jobs   map[string]*Job // job name -> job
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Job struct {
	name     string
	interval time.Duration
	run      JobFunc
	ticker   *time.Ticker
	cancel   context.CancelFunc

	mu      sync.Mutex
	runs    int
	lastErr error
}

// NewScheduler initializes a new Scheduler instance
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Stop cancels every job and waits for running ones to return.
func (s *Scheduler) Stop() {
	log.Info("Stopping scheduler...")
	s.cancel()

	s.mu.Lock()
	for _, job := range s.jobs {
		job.ticker.Stop()
		job.cancel()
	}
	s.jobs = make(map[string]*Job)
	s.mu.Unlock()

	s.wg.Wait()
	log.Info("Scheduler stopped")
}

// AddJob runs fn immediately and then every interval. A job with the same
// name is replaced.
func (s *Scheduler) AddJob(name string, interval time.Duration, fn JobFunc) {
	if interval <= 0 {
		log.WithField("job", name).Warn("job interval must be positive, not scheduling")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingJob, exists := s.jobs[name]; exists {
		existingJob.ticker.Stop()
		existingJob.cancel()
	}

	jobCtx, jobCancel := context.WithCancel(s.ctx)
	job := &Job{
		name:     name,
		interval: interval,
		run:      fn,
		ticker:   time.NewTicker(interval),
		cancel:   jobCancel,
	}
	s.jobs[name] = job

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(jobCtx, job)
		s.runJob(jobCtx, job)
	}()

	log.WithFields(log.Fields{"job": name, "interval": interval.String()}).Info("scheduled job")
}

// RemoveJob stops a job by name.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.jobs[name]; exists {
		job.ticker.Stop()
		job.cancel()
		delete(s.jobs, name)
		log.WithField("job", name).Info("removed job")
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *Job) {
	defer job.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-job.ticker.C:
			s.execute(ctx, job)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job *Job) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := job.run(ctx)

	job.mu.Lock()
	job.runs++
	job.lastErr = err
	job.mu.Unlock()

	entry := log.WithFields(log.Fields{"job": job.name, "duration": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	entry.Debug("job finished")
}

// Status reports how often each job ran and whether the scheduler is live.
func (s *Scheduler) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make(map[string]int, len(s.jobs))
	for name, job := range s.jobs {
		job.mu.Lock()
		runs[name] = job.runs
		job.mu.Unlock()
	}

	return map[string]interface{}{
		"jobs":    runs,
		"running": s.ctx.Err() == nil,
	}
}
