package core

import "time"

// Cycle represents a single pass of the poll loop over every configured site.
type Cycle struct {
	ID          string         `json:"id" yaml:"id"`
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Status      CycleStatus    `json:"status" yaml:"status"`
	Discovered  int            `json:"discovered" yaml:"discovered"`
	Skipped     int            `json:"skipped" yaml:"skipped"`
	Extracted   int            `json:"extracted" yaml:"extracted"`
	Relevant    int            `json:"relevant" yaml:"relevant"`
	Notified    int            `json:"notified" yaml:"notified"`
	Committed   int            `json:"committed" yaml:"committed"`
	Errors      []ProcessError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// CycleStatus represents the current state of a cycle
type CycleStatus string

const (
	CycleStatusRunning   CycleStatus = "running"
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusFailed    CycleStatus = "failed"
)

// AddError records a failure against the cycle.
func (c *Cycle) AddError(site string, identity IdentityKey, stage Stage, err error) {
	if c == nil || err == nil {
		return
	}
	c.Errors = append(c.Errors, ProcessError{
		Site:       site,
		Identity:   identity,
		Stage:      stage,
		Error:      err.Error(),
		OccurredAt: time.Now().UTC(),
	})
}
