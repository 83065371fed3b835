package planner

import (
	"errors"
	"fmt"
)

// ErrNoObjective is returned by Run when the objective is blank.
var ErrNoObjective = errors.New("planner: objective is empty")

// Step names used in StepError and logs.
const (
	StepRetrieve   = "retrieve"
	StepExecute    = "execute"
	StepPersist    = "persist"
	StepExpand     = "expand"
	StepPrioritize = "prioritize"
)

// StepError reports a step that kept failing after all retries.
type StepError struct {
	Step     string
	Task     Task
	Attempts int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("planner: %s task %d failed after %d attempts: %v", e.Step, e.Task.ID, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
