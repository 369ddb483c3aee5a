// Package jobs tracks operations that outlive a single tool call: VM
// creation with disk provisioning, cloning, snapshot merges, backup
// export. Submitting a job starts it immediately on a background
// goroutine and returns an id the caller polls for progress and, once
// terminal, the result.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// State is one of a Job's lifecycle states.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Kind names the category of work a job performs, surfaced in its
// descriptor for discovery/debugging purposes.
type Kind string

const (
	KindCreateVM     Kind = "create_vm"
	KindCloneVM      Kind = "clone_vm"
	KindExportBackup Kind = "export_backup"
	KindImport       Kind = "import"
	KindDeleteSnapshot Kind = "delete_snapshot"
)

// Job is one tracked long-running operation.
type Job struct {
	mu sync.Mutex

	ID         string      `json:"id"`
	Kind       Kind        `json:"kind"`
	State      State       `json:"state"`
	Percent    int         `json:"percent"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Result     interface{} `json:"result,omitempty"`
	Err        error       `json:"-"`
	ErrMessage string      `json:"error,omitempty"`

	cancel context.CancelFunc
	stopOnce sync.Once
}

// Snapshot is an immutable point-in-time copy of a Job's fields, safe
// to hand to callers without exposing the mutex.
type Snapshot struct {
	ID         string
	Kind       Kind
	State      State
	Percent    int
	StartedAt  time.Time
	FinishedAt *time.Time
	Result     interface{}
	ErrMessage string
}

func (j *Job) snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:         j.ID,
		Kind:       j.Kind,
		State:      j.State,
		Percent:    j.Percent,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Result:     j.Result,
		ErrMessage: j.ErrMessage,
	}
}

func (j *Job) setPercent(p int) {
	j.mu.Lock()
	if p > j.Percent {
		j.Percent = p
	}
	j.mu.Unlock()
}

func (j *Job) finish(state State, result interface{}, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.State != StatePending && j.State != StateRunning {
		return // already terminal — e.g. cancel raced with completion
	}
	now := time.Now()
	j.State = state
	j.FinishedAt = &now
	j.Result = result
	j.Err = err
	if err != nil {
		j.ErrMessage = err.Error()
	}
	if state == StateSucceeded {
		j.Percent = 100
	}
}

// Work is the function a submitted job runs. It receives a context
// cancelled on Tracker.Cancel and a progress callback it may call as
// often as it likes; out-of-order/backwards calls are clamped by the
// monotonic high-water-mark the Job itself enforces.
type Work func(ctx context.Context, progress func(percent int)) (interface{}, error)

// Tracker owns the job map and retention policy.
type Tracker struct {
	mu   sync.Mutex
	jobs map[string]*Job
	// order records insertion order so eviction can find the oldest
	// terminal jobs without sorting on every GC pass.
	order []string

	retention   time.Duration
	maxRetained int
	log         hclog.Logger

	now func() time.Time
}

// NewTracker builds a Tracker with the given retention window and
// maximum retained-job cap.
func NewTracker(retention time.Duration, maxRetained int, log hclog.Logger) *Tracker {
	if retention <= 0 {
		retention = time.Hour
	}
	if maxRetained <= 0 {
		maxRetained = 1000
	}
	return &Tracker{
		jobs:        make(map[string]*Job),
		retention:   retention,
		maxRetained: maxRetained,
		log:         log.Named("jobs"),
		now:         time.Now,
	}
}

// Submit registers a new job and starts work immediately on a
// background goroutine. Returns the job id right away — the caller
// reports {job_id, state: "running"} without waiting for completion.
func (t *Tracker) Submit(kind Kind, work Work) string {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        id,
		Kind:      kind,
		State:     StateRunning,
		StartedAt: t.now(),
		cancel:    cancel,
	}

	t.mu.Lock()
	t.jobs[id] = job
	t.order = append(t.order, id)
	t.mu.Unlock()

	go func() {
		result, err := work(ctx, job.setPercent)
		if ctx.Err() != nil {
			job.finish(StateCancelled, nil, ctx.Err())
			return
		}
		if err != nil {
			job.finish(StateFailed, nil, err)
			return
		}
		job.finish(StateSucceeded, result, nil)
	}()

	return id
}

// ErrJobNotFound is returned by Status/Cancel for an unknown job id.
var ErrJobNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "job not found" }

// Status returns the current snapshot of job id.
func (t *Tracker) Status(id string) (Snapshot, error) {
	t.mu.Lock()
	job, ok := t.jobs[id]
	t.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrJobNotFound
	}
	return job.snapshot(), nil
}

// Snapshots returns a point-in-time copy of every tracked job, in
// insertion order. Used by shutdown to find jobs still running so
// their cancellation can be requested instead of abandoning them.
func (t *Tracker) Snapshots() []Snapshot {
	t.mu.Lock()
	order := append([]string(nil), t.order...)
	t.mu.Unlock()

	snaps := make([]Snapshot, 0, len(order))
	for _, id := range order {
		t.mu.Lock()
		job, ok := t.jobs[id]
		t.mu.Unlock()
		if ok {
			snaps = append(snaps, job.snapshot())
		}
	}
	return snaps
}

// Cancel signals job id's context; cancellation is best-effort and the
// job may still reach StateSucceeded if it was already past its
// interruptible phase when the signal arrived.
func (t *Tracker) Cancel(id string) error {
	t.mu.Lock()
	job, ok := t.jobs[id]
	t.mu.Unlock()
	if !ok {
		return ErrJobNotFound
	}
	job.stopOnce.Do(job.cancel)
	return nil
}

// GC first evicts terminal jobs older than the retention window, then,
// while the job count still exceeds maxRetained, evicts the oldest
// terminal jobs beyond that cap.
func (t *Tracker) GC() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.retention)
	var kept []string
	for _, id := range t.order {
		job, ok := t.jobs[id]
		if !ok {
			continue
		}
		snap := job.snapshot()
		if isTerminal(snap.State) && snap.FinishedAt != nil && snap.FinishedAt.Before(cutoff) {
			delete(t.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept

	for len(t.order) > t.maxRetained {
		evicted := false
		for i, id := range t.order {
			job, ok := t.jobs[id]
			if !ok {
				continue
			}
			if isTerminal(job.snapshot().State) {
				delete(t.jobs, id)
				t.order = append(t.order[:i], t.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			break // nothing terminal left to evict; over cap is tolerated
		}
	}
}

func isTerminal(s State) bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// RunGCLoop runs GC on every tick until ctx is cancelled. Intended to
// be started as a goroutine by cmd/vboxmcp at boot.
func (t *Tracker) RunGCLoop(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.GC()
		}
	}
}
