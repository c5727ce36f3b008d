// Package history persists release runs, their stage outcomes and the
// artifacts they built.
package history

import "time"

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// TimeLayout is the fixed-width UTC layout used for every stored timestamp
// so that text ordering matches time ordering.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Run is a stored release run.
type Run struct {
	ID         string     `json:"id"`
	Workflow   string     `json:"workflow"`
	Source     string     `json:"source"`
	Actor      string     `json:"actor,omitempty"`
	Revision   string     `json:"revision,omitempty"`
	Package    string     `json:"package,omitempty"`
	Version    string     `json:"version,omitempty"`
	Runtime    string     `json:"runtime,omitempty"`
	IndexURL   string     `json:"index_url,omitempty"`
	DryRun     bool       `json:"dry_run"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  string     `json:"started_at"`
	FinishedAt string     `json:"finished_at,omitempty"`
	Stages     []Stage    `json:"stages,omitempty"`
	Artifacts  []Artifact `json:"artifacts,omitempty"`
}

// Started parses StartedAt.
func (r Run) Started() time.Time {
	t, _ := time.Parse(TimeLayout, r.StartedAt)
	return t
}

// Duration is zero while the run is still going.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == "" {
		return 0
	}
	end, err := time.Parse(TimeLayout, r.FinishedAt)
	if err != nil {
		return 0
	}
	return end.Sub(r.Started())
}

// Stage is the stored outcome of one pipeline stage.
type Stage struct {
	Position   int    `json:"position"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// Artifact is a stored distribution file record.
type Artifact struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
	Uploaded bool   `json:"uploaded"`
}

// NewRun holds the fields known when a run starts.
type NewRun struct {
	ID        string
	Workflow  string
	Source    string
	Actor     string
	IndexURL  string
	DryRun    bool
	StartedAt time.Time
}

// Details holds the fields discovered while a run executes.
type Details struct {
	Revision string
	Package  string
	Version  string
	Runtime  string
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
