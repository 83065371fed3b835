package planner

import "strconv"

// Task is one atomic unit of work. IDs are unique within a run.
type Task struct {
	ID          int
	Description string
}

func (t Task) String() string {
	return strconv.Itoa(t.ID) + ": " + t.Description
}
