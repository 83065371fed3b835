package planner

// State is the phase a planning run is in.
type State int

const (
	StateSeeded State = iota
	StateExecuting
	StateExpanding
	StatePrioritizing
	StateDone      // queue drained
	StateHalted    // iteration cap reached with tasks left
	StateCancelled // context cancelled
	StateFailed    // a step failed after retries
)

func (s State) String() string {
	switch s {
	case StateSeeded:
		return "seeded"
	case StateExecuting:
		return "executing"
	case StateExpanding:
		return "expanding"
	case StatePrioritizing:
		return "prioritizing"
	case StateDone:
		return "done"
	case StateHalted:
		return "halted"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run has ended.
func (s State) Terminal() bool {
	return s >= StateDone
}

// run is the state of one planning run. It is never shared between runs.
type run struct {
	id        string
	objective string
	queue     *Queue
	// counter allocates task ids; created counts tasks against the cap.
	// Prioritization may raise counter but never created.
	counter   int
	created   int
	iteration int
	state     State
	executed  map[int]bool
	done      []Task
}

func newRun(id, objective, firstTask string) *run {
	r := &run{
		id:        id,
		objective: objective,
		queue:     NewQueue(),
		executed:  make(map[int]bool),
	}
	r.queue.Push(Task{ID: r.nextID(), Description: firstTask})
	r.created = 1
	return r
}

// maxIDJump bounds how far past the counter a model-chosen id may land.
const maxIDJump = 100

// nextID advances the counter and returns the new id.
func (r *run) nextID() int {
	r.counter++
	return r.counter
}

// reconcile turns a prioritization response into the new queue contents.
// Numbers from the model are kept when they are fresh within the run;
// numbers that were already executed or repeat within the response get a
// new id, and so do numbers far beyond the counter. The counter is raised
// past every accepted number so ids are never handed out twice.
func (r *run) reconcile(lines []rankedLine) []Task {
	seen := make(map[int]bool, len(lines))
	tasks := make([]Task, 0, len(lines))
	limit := r.counter + len(lines) + maxIDJump
	for _, l := range lines {
		id := l.ID
		if !l.HasID || id <= 0 || id > limit || r.executed[id] || seen[id] {
			id = 0
		}
		if id > r.counter {
			r.counter = id
		}
		if id == 0 {
			id = r.nextID()
		}
		seen[id] = true
		tasks = append(tasks, Task{ID: id, Description: l.Description})
	}
	return tasks
}
