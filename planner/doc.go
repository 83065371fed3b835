// Package planner runs autonomous task-planning loops.
//
// A run starts from an objective and a single seed task. Each iteration pops
// the head of the queue, executes it with the language model using context
// retrieved from earlier results, stores the result in the run's vector
// namespace, asks the model for follow-up tasks while the creation budget
// lasts, and finally asks the model to reorder what is left. The run ends
// when the queue drains, the iteration cap is hit, the context is cancelled,
// or a step keeps failing after its retries.
//
// Every user-visible event (queue snapshot, next task, task result,
// completion or failure notice) is delivered through a [lago.Sink] before
// the loop moves on.
package planner
