package core

import "time"

// RunStatus represents the status of a build run.
type RunStatus string

// Run status values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one top-level build invocation.
type Run struct {
	ID          string
	Recipe      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// RecipeBuild records one recipe resolved during a run, either rebuilt or
// reused from its persisted artifact.
type RecipeBuild struct {
	ID        string
	RunID     string
	Recipe    string
	Reused    bool
	Rows      int64
	ElapsedMS int64
	BuiltAt   time.Time
}

// Store defines the interface for build history persistence.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	CreateRun(recipe string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	ListRuns(recipe string, limit int) ([]*Run, error)

	RecordBuild(build *RecipeBuild) error
	GetBuildsForRun(runID string) ([]*RecipeBuild, error)
	GetLatestBuild(recipe string) (*RecipeBuild, error)
}
