package planner

import "errors"

// ErrEmptyQueue is returned by PopFront when the queue holds no tasks.
var ErrEmptyQueue = errors.New("planner: task queue is empty")

// Queue is the ordered list of pending tasks of a single run. It is not
// safe for concurrent use; each run owns its own queue.
type Queue struct {
	tasks []Task
}

// NewQueue returns a queue holding tasks in order.
func NewQueue(tasks ...Task) *Queue {
	q := &Queue{}
	q.Replace(tasks)
	return q
}

// Push appends t to the tail.
func (q *Queue) Push(t Task) {
	q.tasks = append(q.tasks, t)
}

// PopFront removes and returns the head task.
func (q *Queue) PopFront() (Task, error) {
	if len(q.tasks) == 0 {
		return Task{}, ErrEmptyQueue
	}
	t := q.tasks[0]
	q.tasks[0] = Task{}
	q.tasks = q.tasks[1:]
	return t, nil
}

// Replace discards the current contents and installs tasks in their place.
func (q *Queue) Replace(tasks []Task) {
	q.tasks = append(make([]Task, 0, len(tasks)), tasks...)
}

// Snapshot returns a copy of the pending tasks in execution order.
func (q *Queue) Snapshot() []Task {
	return append([]Task(nil), q.tasks...)
}

// Descriptions returns the pending task descriptions in execution order.
func (q *Queue) Descriptions() []string {
	out := make([]string, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = t.Description
	}
	return out
}

func (q *Queue) Len() int { return len(q.tasks) }
