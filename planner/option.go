package planner

import (
	"log/slog"
	"time"
)

// Option configures a Planner.
type Option func(*Planner)

// WithTopK sets how many earlier results are retrieved as context (default 5).
func WithTopK(k int) Option {
	return func(p *Planner) { p.topK = k }
}

// WithMaxTasks caps the number of tasks a run may create, the seed task
// included (default 6). Once reached, the run stops asking for new tasks
// but keeps executing and reprioritizing the remaining ones.
func WithMaxTasks(n int) Option {
	return func(p *Planner) { p.maxTasks = n }
}

// WithMaxIterations caps the number of executed tasks per run (default 20).
// A run that hits the cap ends in StateHalted. Zero disables the cap.
func WithMaxIterations(n int) Option {
	return func(p *Planner) { p.maxIterations = n }
}

// WithExecutionParams sets the sampling parameters for task execution
// (default 0.7 and 2000 tokens).
func WithExecutionParams(temperature float64, maxTokens int) Option {
	return func(p *Planner) {
		p.execTemperature = temperature
		p.execMaxTokens = maxTokens
	}
}

// WithPlanningParams sets the sampling parameters for task creation and
// prioritization (default 0.5 and 100 tokens).
func WithPlanningParams(temperature float64, maxTokens int) Option {
	return func(p *Planner) {
		p.planTemperature = temperature
		p.planMaxTokens = maxTokens
	}
}

// WithStepRetry sets how often a failing step is attempted and the base
// backoff between attempts (default 3 attempts, 1s).
func WithStepRetry(attempts int, backoff time.Duration) Option {
	return func(p *Planner) {
		p.stepAttempts = attempts
		p.stepBackoff = backoff
	}
}

// WithStepTimeout bounds every step attempt (default 60s). Expiry counts as
// a failed attempt of that step only. Zero disables the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(p *Planner) { p.stepTimeout = d }
}

// WithParseMode sets how malformed model output lines are handled.
func WithParseMode(m ParseMode) Option {
	return func(p *Planner) { p.parseMode = m }
}

// WithFirstTask sets the description of the seed task. By default the seed
// task is the objective itself.
func WithFirstTask(desc string) Option {
	return func(p *Planner) { p.firstTask = desc }
}

// WithNamespacePrefix prefixes the per-run vector namespace.
func WithNamespacePrefix(prefix string) Option {
	return func(p *Planner) { p.namespacePrefix = prefix }
}

// WithDiscardResults drops the run's vector namespace once the run ends.
func WithDiscardResults() Option {
	return func(p *Planner) { p.discardResults = true }
}

// WithLogger sets the structured logger. Without it nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}
