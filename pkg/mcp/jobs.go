package mcp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"contact-scraper/pkg/models"
)

// JobStatus represents the current state of a batch job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsActive reports whether the job has not finished yet
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background batch job
type Job struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"` // Search query or input summary
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	Processed    int       `json:"processed"`
	Total        int       `json:"total"`
	ErrorMessage string    `json:"error_message,omitempty"`

	Results     []models.ResultRow `json:"results,omitempty"`
	Failed      []models.FailedRow `json:"failed,omitempty"`
	OutputFiles []string           `json:"output_files,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager manages background batch jobs
type JobManager struct {
	jobs    map[string]*Job
	mu      sync.RWMutex
	byLabel map[string]string // label -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:    make(map[string]*Job),
		byLabel: make(map[string]string),
	}
}

// CreateJob creates a job for label. If an active job with the same label
// exists it is returned instead, with created=false.
func (m *JobManager) CreateJob(label string) (job *Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byLabel[label]; ok {
		if existing := m.jobs[existingID]; existing != nil && existing.Status.IsActive() {
			return existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job = &Job{
		ID:        uuid.New().String(),
		Label:     label,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[job.ID] = job
	m.byLabel[label] = job.ID
	return job, true
}

// GetJob returns a snapshot of the job, or nil
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	snapshot := *job
	snapshot.Results = append([]models.ResultRow(nil), job.Results...)
	snapshot.Failed = append([]models.FailedRow(nil), job.Failed...)
	snapshot.OutputFiles = append([]string(nil), job.OutputFiles...)
	return &snapshot
}

// UpdateStatus updates the status of a job. Finished jobs are not reopened.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || !job.Status.IsActive() {
		return
	}
	job.Status = status
	if !status.IsActive() {
		job.CompletedAt = time.Now()
		job.cancel()
		delete(m.byLabel, job.Label)
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// UpdateProgress updates the progress counters of a job
func (m *JobManager) UpdateProgress(jobID string, processed, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[jobID]; ok {
		job.Processed = processed
		job.Total = total
	}
}

// SetResults stores the rows and output files produced by a job
func (m *JobManager) SetResults(jobID string, results []models.ResultRow, failed []models.FailedRow, files []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[jobID]; ok {
		job.Results = results
		job.Failed = failed
		job.OutputFiles = files
	}
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || !job.Status.IsActive() {
		return false
	}
	job.cancel()
	job.Status = JobStatusCancelled
	job.CompletedAt = time.Now()
	delete(m.byLabel, job.Label)
	return true
}

// CancelAll cancels all active jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status.IsActive() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byLabel = make(map[string]string)
}

// ListJobs returns snapshots of all jobs without their rows, oldest first
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		snapshot.Results, snapshot.Failed = nil, nil
		jobs = append(jobs, snapshot)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.Before(jobs[j].StartedAt) })
	return jobs
}

// GetContext returns the context a job runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, ok := m.jobs[jobID]; ok {
		return job.ctx
	}
	return context.Background()
}
