package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnv2901/securescan/internal/metrics"
	"github.com/khanhnv2901/securescan/internal/scanner"
)

// Job statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ScanJob is the job layer's view of one scan: the request, its lifecycle
// bookkeeping, live progress, and eventually the result. The engine itself
// knows nothing about jobs.
type ScanJob struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Target     string          `json:"target"`
	Depth      scanner.Depth   `json:"depth"`
	Stages     []scanner.Stage `json:"stages"`
	Progress   int             `json:"progress"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Result     *scanner.Result `json:"results,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ScanRunner is the engine surface the job manager depends on.
type ScanRunner interface {
	Scan(ctx context.Context, req scanner.Request, progress scanner.ProgressFunc) (*scanner.Result, error)
}

// JobManager owns the in-memory job store and drives scans to completion in
// the background.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*ScanJob
	cancels     map[string]context.CancelFunc
	subscribers map[chan ScanJob]struct{}
	maxJobs     int

	runner  ScanRunner
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewJobManager wires a manager around the given engine. The metrics
// collector is optional.
func NewJobManager(runner ScanRunner, logger *zap.Logger, m *metrics.Metrics) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	mgr := &JobManager{
		jobs:        make(map[string]*ScanJob),
		cancels:     make(map[string]context.CancelFunc),
		subscribers: make(map[chan ScanJob]struct{}),
		maxJobs:     1000,
		runner:      runner,
		logger:      logger,
		metrics:     m,
	}
	go mgr.cleanupLoop()
	return mgr
}

// StartScan queues a scan for the already-validated request and runs it in
// the background. Cancellation is keyed by the returned job ID.
func (m *JobManager) StartScan(req scanner.Request) (*ScanJob, error) {
	if m.runner == nil {
		return nil, errors.New("no scan engine configured")
	}

	job := &ScanJob{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Target:    req.Target,
		Depth:     req.Depth,
		Stages:    req.Stages,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.cancels[job.ID] = cancel
	snapshot := *job
	m.mu.Unlock()
	m.broadcast(snapshot)

	go m.run(ctx, job.ID, req)
	return &snapshot, nil
}

func (m *JobManager) run(ctx context.Context, id string, req scanner.Request) {
	started := time.Now()
	m.update(id, func(j *ScanJob) {
		now := started.UTC()
		j.Status = StatusRunning
		j.StartedAt = &now
	})
	if m.metrics != nil {
		m.metrics.ScanStarted()
	}
	m.logger.Info("scan started",
		zap.String("job_id", id),
		zap.String("target", req.Target),
		zap.String("depth", string(req.Depth)),
	)

	result, err := m.runner.Scan(ctx, req, func(percent int) {
		m.update(id, func(j *ScanJob) { j.Progress = percent })
	})

	finished := time.Now().UTC()
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	m.update(id, func(j *ScanJob) {
		j.FinishedAt = &finished
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusCompleted
		j.Progress = 100
		j.Result = result
	})

	m.mu.Lock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ScanFinished(status, time.Since(started).Seconds())
		if result != nil {
			m.metrics.ObserveFindings(
				result.Summary.Critical,
				result.Summary.High,
				result.Summary.Medium,
				result.Summary.Low,
			)
		}
	}
	if err != nil {
		m.logger.Warn("scan failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	m.logger.Info("scan completed",
		zap.String("job_id", id),
		zap.Int("total_issues", result.Summary.TotalIssues),
		zap.Float64("duration_seconds", result.DurationSeconds),
	)
}

// Cancel aborts an in-flight scan. It reports whether a cancelable job with
// the ID existed.
func (m *JobManager) Cancel(id string) bool {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// GetJob returns a copy of the job, or nil.
func (m *JobManager) GetJob(id string) *ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[id]; ok {
		snapshot := *job
		return &snapshot
	}
	return nil
}

// ListJobs returns up to limit jobs, newest first.
func (m *JobManager) ListJobs(limit int) []ScanJob {
	m.mu.RLock()
	jobs := make([]ScanJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

// Subscribe registers a listener for job updates. The returned function
// unsubscribes and closes the channel.
func (m *JobManager) Subscribe() (chan ScanJob, func()) {
	ch := make(chan ScanJob, 16)
	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
}

// SetMaxJobs configures the retention cap for finished jobs.
func (m *JobManager) SetMaxJobs(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max > 0 {
		m.maxJobs = max
	}
}

func (m *JobManager) update(id string, fn func(*ScanJob)) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	fn(job)
	snapshot := *job
	m.mu.Unlock()
	m.broadcast(snapshot)
}

func (m *JobManager) broadcast(job ScanJob) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
			// Slow consumer; drop rather than block the scan.
		}
	}
}

// cleanupLoop evicts the oldest finished jobs once the store exceeds the
// retention cap.
func (m *JobManager) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		if len(m.jobs) <= m.maxJobs {
			m.mu.Unlock()
			continue
		}

		type finishedJob struct {
			id string
			at time.Time
		}
		var finished []finishedJob
		for id, job := range m.jobs {
			if job.Status != StatusCompleted && job.Status != StatusFailed {
				continue
			}
			at := time.Now()
			if job.FinishedAt != nil {
				at = *job.FinishedAt
			}
			finished = append(finished, finishedJob{id: id, at: at})
		}
		sort.Slice(finished, func(i, j int) bool {
			return finished[i].at.Before(finished[j].at)
		})

		toRemove := len(m.jobs) - m.maxJobs
		if toRemove > len(finished) {
			toRemove = len(finished)
		}
		for i := 0; i < toRemove; i++ {
			delete(m.jobs, finished[i].id)
		}
		m.mu.Unlock()
	}
}
