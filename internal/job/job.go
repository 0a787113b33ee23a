package job

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcfield/geoimport-go/internal/mapper"
	"github.com/arcfield/geoimport-go/internal/progress"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job tracks one import run. Counters are atomics so the run loop updates
// them without taking the mutex that guards the lifecycle fields. Counters
// only ever increase while the job runs.
type Job struct {
	ID       string
	Category mapper.Category
	Source   string
	OwnerID  string

	processed atomic.Int64
	failed    atomic.Int64
	filtered  atomic.Int64
	batches   atomic.Int64
	bytesRead atomic.Int64

	cancelled atomic.Bool

	mu           sync.Mutex
	status       Status
	err          error
	cancel       context.CancelFunc
	tracker      *progress.Tracker
	createdAt    time.Time
	startedAt    time.Time
	endedAt      time.Time
	regionLinks  int64
	countryLinks int64
}

func newJob(id string, category mapper.Category, source, ownerID string) *Job {
	return &Job{
		ID:        id,
		Category:  category,
		Source:    source,
		OwnerID:   ownerID,
		status:    StatusPending,
		tracker:   progress.NewTracker(0),
		createdAt: time.Now(),
	}
}

// RequestCancel asks the job to stop. The run loop honors it at the next
// batch boundary; in-flight database work is interrupted via the context.
func (j *Job) RequestCancel() {
	j.cancelled.Store(true)
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CancelRequested reports whether a cancel was asked for.
func (j *Job) CancelRequested() bool {
	return j.cancelled.Load()
}

func (j *Job) setCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	j.cancel = cancel
	j.mu.Unlock()
}

func (j *Job) setTracker(t *progress.Tracker) {
	j.mu.Lock()
	j.tracker = t
	j.mu.Unlock()
}

func (j *Job) trackerRef() *progress.Tracker {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.tracker
}

func (j *Job) markRunning() {
	j.mu.Lock()
	j.status = StatusRunning
	j.startedAt = time.Now()
	j.mu.Unlock()
}

func (j *Job) markCompleted() {
	j.mu.Lock()
	j.status = StatusCompleted
	j.endedAt = time.Now()
	j.mu.Unlock()
}

func (j *Job) markFailed(err error) {
	j.mu.Lock()
	j.status = StatusFailed
	j.err = err
	j.endedAt = time.Now()
	j.mu.Unlock()
}

func (j *Job) setLinks(regions, countries int64) {
	j.mu.Lock()
	j.regionLinks = regions
	j.countryLinks = countries
	j.mu.Unlock()
}

func (j *Job) addProcessed(n int64) { j.processed.Add(n) }
func (j *Job) addFailed(n int64)    { j.failed.Add(n) }
func (j *Job) addFiltered(n int64)  { j.filtered.Add(n) }
func (j *Job) addBatch()            { j.batches.Add(1) }
func (j *Job) setBytesRead(n int64) { j.bytesRead.Store(n) }

func (j *Job) Processed() int64 { return j.processed.Load() }
func (j *Job) Failed() int64    { return j.failed.Load() }
func (j *Job) Filtered() int64  { return j.filtered.Load() }
func (j *Job) Batches() int64   { return j.batches.Load() }
func (j *Job) BytesRead() int64 { return j.bytesRead.Load() }

// Status returns the current lifecycle state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns the terminal error of a failed job, nil otherwise.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// View is an immutable copy of the job state for API responses.
type View struct {
	ID        string          `json:"id"`
	Category  mapper.Category `json:"category"`
	Source    string          `json:"source"`
	OwnerID   string          `json:"owner_id,omitempty"`
	Status    Status          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Processed int64           `json:"processed"`
	Failed    int64           `json:"failed"`
	Filtered  int64           `json:"filtered"`
	Batches   int64           `json:"batches"`
	BytesRead int64           `json:"bytes_read"`
	CreatedAt time.Time       `json:"created_at"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

// View snapshots the job for read-only consumers.
func (j *Job) View() View {
	j.mu.Lock()
	defer j.mu.Unlock()

	v := View{
		ID:        j.ID,
		Category:  j.Category,
		Source:    j.Source,
		OwnerID:   j.OwnerID,
		Status:    j.status,
		Processed: j.processed.Load(),
		Failed:    j.failed.Load(),
		Filtered:  j.filtered.Load(),
		Batches:   j.batches.Load(),
		BytesRead: j.bytesRead.Load(),
		CreatedAt: j.createdAt,
	}
	if j.err != nil {
		v.Error = j.err.Error()
	}
	if !j.startedAt.IsZero() {
		started := j.startedAt
		v.StartedAt = &started
	}
	if !j.endedAt.IsZero() {
		ended := j.endedAt
		v.EndedAt = &ended
	}
	return v
}

func (j *Job) snapshot() *progress.Snapshot {
	s := j.trackerRef().Snapshot(j.Processed(), j.Failed(), j.Filtered(), j.Batches(), j.BytesRead())
	return &s
}

func (j *Job) result() *progress.Result {
	j.mu.Lock()
	regions, countries := j.regionLinks, j.countryLinks
	tracker := j.tracker
	j.mu.Unlock()

	return &progress.Result{
		TotalFeatures:    j.Processed(),
		TotalBatches:     j.Batches(),
		FailedFeatures:   j.Failed(),
		FilteredFeatures: j.Filtered(),
		ElapsedMs:        tracker.Elapsed().Milliseconds(),
		RegionLinks:      regions,
		CountryLinks:     countries,
	}
}
