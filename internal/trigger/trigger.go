// Package trigger implements the manual dispatch gate that starts a run.
package trigger

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies where a manual dispatch came from.
type Source string

// Dispatch sources.
const (
	SourceCLI  Source = "cli"
	SourceHTTP Source = "http"
)

// Dispatch is one manual invocation. No payload is carried.
type Dispatch struct {
	ID     string
	Source Source
	Actor  string
	At     time.Time
}

// Gate turns invocation requests into dispatches. It has no filtering or
// rejection logic: every request proceeds.
type Gate struct {
	now   func() time.Time
	newID func() string
}

// NewGate returns a gate using the wall clock and random UUIDs.
func NewGate() *Gate {
	return &Gate{now: time.Now, newID: func() string { return uuid.NewString() }}
}

// Open admits a manual request from source on behalf of actor.
func (g *Gate) Open(source Source, actor string) Dispatch {
	if actor == "" {
		actor = "unknown"
	}
	return Dispatch{
		ID:     g.newID(),
		Source: source,
		Actor:  actor,
		At:     g.now().UTC(),
	}
}

// ShortID returns the first block of a dispatch id for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
