// Package pipeline provides a sequential stage-based execution pipeline.
package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Stage is a single unit of work in a release pipeline.
type Stage interface {
	Name() string
	Execute(ctx context.Context, rc *RunContext) error
}

// Status of a finished stage.
type Status string

// Stage outcomes.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// StageResult records one stage execution.
type StageResult struct {
	Position   int
	Name       string
	Status     Status
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration of the stage.
func (r StageResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Observer is told about stage boundaries. Observers must not block.
type Observer interface {
	StageStarted(rc *RunContext, position int, name string)
	StageFinished(rc *RunContext, result StageResult)
}

// Pipeline executes a sequence of stages in order.
type Pipeline struct {
	stages    []Stage
	observers []Observer
	now       func() time.Time
}

// New creates a Pipeline from the given stages.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, now: time.Now}
}

// Observe registers an observer for stage events.
func (p *Pipeline) Observe(o Observer) *Pipeline {
	p.observers = append(p.observers, o)
	return p
}

// Names lists the stage names in execution order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Name()
	}
	return out
}

// Run executes each stage sequentially. It stops on the first error; later
// stages never start and nothing is retried or rolled back.
func (p *Pipeline) Run(ctx context.Context, rc *RunContext) error {
	for i, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline cancelled before stage %s: %w", s.Name(), err)
		}
		for _, o := range p.observers {
			o.StageStarted(rc, i, s.Name())
		}
		res := StageResult{Position: i, Name: s.Name(), StartedAt: p.now()}
		err := s.Execute(ctx, rc)
		res.FinishedAt = p.now()
		res.Status = StatusSucceeded
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
		}
		rc.Results = append(rc.Results, res)
		for _, o := range p.observers {
			o.StageFinished(rc, res)
		}
		if err != nil {
			return fmt.Errorf("stage %s: %w", s.Name(), err)
		}
	}
	return nil
}
