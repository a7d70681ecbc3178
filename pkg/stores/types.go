package stores

import (
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/archetype/pkg/engine"
)

// RunStatus represents the status of a generation or creation run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunKind tells generation runs from archetype creations
type RunKind string

const (
	RunKindGenerate RunKind = "generate"
	RunKindCreate   RunKind = "create"
)

// Run is one recorded generation or creation
type Run struct {
	ID          string     `json:"id"`
	Kind        RunKind    `json:"kind"`
	Archetype   string     `json:"archetype"`
	GroupID     string     `json:"group_id"`
	ArtifactID  string     `json:"artifact_id"`
	Version     string     `json:"version"`
	ProjectDir  string     `json:"project_dir"`
	Status      RunStatus  `json:"status"`
	Files       int        `json:"files"`
	Skipped     int        `json:"skipped"`
	MergedPoms  int        `json:"merged_poms"`
	Error       *string    `json:"error,omitempty"`
	Metadata    string     `json:"metadata"` // JSON blob
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewRun creates a running record with a fresh id.
func NewRun(kind RunKind, archetype string) *Run {
	now := time.Now()
	return &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Archetype: archetype,
		Status:    RunStatusRunning,
		Metadata:  "{}",
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Duration is the run's wall time, or zero while running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunCounts are the file counters recorded when a run finishes
type RunCounts struct {
	Files      int
	Skipped    int
	MergedPoms int
}

// IndexedEntry is a catalog entry in the crawled index
type IndexedEntry struct {
	engine.CatalogEntry
	Source    string    `json:"source"`
	IndexedAt time.Time `json:"indexed_at"`
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // e.g., "archetype.installed", "registry.updated"
	Actor     string    `json:"actor"`               // user or system identifier
	TargetID  *string   `json:"target_id,omitempty"` // archetype coordinates, file, etc
	Details   *string   `json:"details,omitempty"`   // JSON blob
	Timestamp time.Time `json:"timestamp"`
}
