package runstore

import "time"

// Status is the lifecycle state of a run or stage.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusInvalid marks runs rejected before any collaborator work began.
	StatusInvalid Status = "invalid"
)

// Run is one orchestrator invocation.
type Run struct {
	ID           string
	Status       Status
	StartedAt    time.Time
	FinishedAt   *time.Time
	LogPath      string
	OverridePath string
	CacheDir     string
	ErrorMessage string
	Loaders      map[string]int
	Stages       []StageRecord
}

// Elapsed returns the wall time of a finished run, or zero while it runs.
func (r *Run) Elapsed() time.Duration {
	if r == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StageRecord is the outcome of one stage within a run.
type StageRecord struct {
	Index        int
	Name         string
	Status       Status
	Elapsed      time.Duration
	ErrorMessage string
}

// BeginOptions describes a new run.
type BeginOptions struct {
	ID           string
	LogPath      string
	OverridePath string
	CacheDir     string
}
