package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lagobot/lago"
)

// Metadata keys of the stored result records.
const (
	MetaTask   = "task"
	MetaResult = "result"
)

// Planner runs planning loops. A single Planner serves any number of
// concurrent runs; each run owns its queue, counter and vector namespace.
type Planner struct {
	llm       lago.Provider
	embedding lago.EmbeddingProvider
	store     lago.VectorStore
	logger    *slog.Logger

	topK            int
	maxTasks        int
	maxIterations   int
	execTemperature float64
	execMaxTokens   int
	planTemperature float64
	planMaxTokens   int
	stepAttempts    int
	stepBackoff     time.Duration
	stepTimeout     time.Duration
	parseMode       ParseMode
	firstTask       string
	namespacePrefix string
	discardResults  bool
}

// New creates a Planner.
func New(llm lago.Provider, embedding lago.EmbeddingProvider, store lago.VectorStore, opts ...Option) *Planner {
	p := &Planner{
		llm:             llm,
		embedding:       embedding,
		store:           store,
		topK:            5,
		maxTasks:        6,
		maxIterations:   20,
		execTemperature: 0.7,
		execMaxTokens:   2000,
		planTemperature: 0.5,
		planMaxTokens:   100,
		stepAttempts:    3,
		stepBackoff:     time.Second,
		stepTimeout:     60 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = lago.NopLogger()
	}
	if p.stepAttempts < 1 {
		p.stepAttempts = 1
	}
	return p
}

// Request describes one planning run.
type Request struct {
	Objective string
	// ChannelID and Sink receive every user-visible event of the run.
	ChannelID string
	Sink      lago.Sink
	// RunID names the run and its vector namespace. Generated when empty.
	RunID string
	// OnTask, when set, is called with each task right before it executes.
	OnTask func(Task)
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	State      State
	Executed   []Task
	Remaining  []Task
	Iterations int
	// LastID is the final value of the run's id counter.
	LastID int
	// Created counts the tasks the run created, the seed task included.
	Created int
}

// Run drives a planning loop until the queue drains, the iteration cap is
// reached, ctx is cancelled, or a step fails after its retries. The returned
// error is nil for StateDone and StateHalted, ctx.Err() for StateCancelled
// and a *StepError for StateFailed.
func (p *Planner) Run(ctx context.Context, req Request) (Result, error) {
	objective := strings.TrimSpace(req.Objective)
	if objective == "" {
		return Result{State: StateFailed}, ErrNoObjective
	}
	if req.RunID == "" {
		req.RunID = lago.NewID()
	}
	first := p.firstTask
	if first == "" {
		first = objective
	}

	r := newRun(req.RunID, objective, first)
	index := p.store.Namespace(p.namespacePrefix + r.id)
	retriever := NewRetriever(p.embedding, index)
	out := &announcer{sink: req.Sink, channelID: req.ChannelID, logger: p.logger, runID: r.id}

	if p.discardResults {
		defer func() {
			if err := p.store.DeleteNamespace(context.WithoutCancel(ctx), p.namespacePrefix+r.id); err != nil {
				p.logger.Warn("planner: drop namespace failed", "run", r.id, "error", err)
			}
		}()
	}

	start := time.Now()
	p.logger.Info("planner: run started", "run", r.id, "objective", objective)
	err := p.loop(ctx, r, retriever, index, out, req.OnTask)

	res := Result{
		RunID:      r.id,
		State:      r.state,
		Executed:   r.done,
		Remaining:  r.queue.Snapshot(),
		Iterations: r.iteration,
		LastID:     r.counter,
		Created:    r.created,
	}
	p.logger.Info("planner: run finished",
		"run", r.id,
		"state", r.state.String(),
		"iterations", r.iteration,
		"remaining", len(res.Remaining),
		"duration", time.Since(start))
	return res, err
}

func (p *Planner) loop(ctx context.Context, r *run, retriever *Retriever, index lago.VectorIndex, out *announcer, onTask func(Task)) error {
	for {
		if err := ctx.Err(); err != nil {
			return p.cancelled(ctx, r, out, err)
		}
		if r.queue.Len() == 0 {
			r.state = StateDone
			out.send(ctx, completedNotice)
			return nil
		}
		if p.maxIterations > 0 && r.iteration >= p.maxIterations {
			r.state = StateHalted
			out.send(ctx, haltedNotice(r.iteration, r.queue.Len()))
			return nil
		}

		r.state = StateExecuting
		r.iteration++
		out.send(ctx, formatQueue(r.queue.Snapshot()))
		task, err := r.queue.PopFront()
		if err != nil {
			// Unreachable: emptiness is checked above.
			return err
		}
		out.send(ctx, formatNext(task))
		if onTask != nil {
			onTask(task)
		}

		var related []string
		if err := p.step(ctx, r, StepRetrieve, task, func(ctx context.Context) error {
			var err error
			related, err = retriever.Retrieve(ctx, r.objective, p.topK)
			return err
		}); err != nil {
			return p.fail(ctx, r, out, err)
		}

		var result string
		if err := p.step(ctx, r, StepExecute, task, func(ctx context.Context) error {
			var err error
			result, err = p.complete(ctx, executionPrompt(r.objective, related, task.Description), p.execTemperature, p.execMaxTokens)
			return err
		}); err != nil {
			return p.fail(ctx, r, out, err)
		}
		out.send(ctx, result)

		if err := p.step(ctx, r, StepPersist, task, func(ctx context.Context) error {
			return p.persist(ctx, index, task, result)
		}); err != nil {
			return p.fail(ctx, r, out, err)
		}
		r.executed[task.ID] = true
		r.done = append(r.done, task)

		if r.created < p.maxTasks {
			r.state = StateExpanding
			var created []string
			if err := p.step(ctx, r, StepExpand, task, func(ctx context.Context) error {
				text, err := p.complete(ctx, creationPrompt(r.objective, result, task.Description, r.queue.Descriptions()), p.planTemperature, p.planMaxTokens)
				if err != nil {
					return err
				}
				created = parseNewTasks(text, p.parseMode, p.logger)
				return nil
			}); err != nil {
				return p.fail(ctx, r, out, err)
			}
			for _, desc := range created {
				r.queue.Push(Task{ID: r.nextID(), Description: desc})
				r.created++
			}
			p.logger.Debug("planner: tasks created", "run", r.id, "count", len(created), "total", r.created, "counter", r.counter)
		}

		if r.queue.Len() > 0 {
			r.state = StatePrioritizing
			var ranked []rankedLine
			if err := p.step(ctx, r, StepPrioritize, task, func(ctx context.Context) error {
				text, err := p.complete(ctx, prioritizationPrompt(r.objective, r.queue.Descriptions(), task.ID+1), p.planTemperature, p.planMaxTokens)
				if err != nil {
					return err
				}
				ranked = parsePrioritized(text, p.parseMode, p.logger)
				return nil
			}); err != nil {
				return p.fail(ctx, r, out, err)
			}
			r.queue.Replace(r.reconcile(ranked))
			p.logger.Debug("planner: queue reprioritized", "run", r.id, "len", r.queue.Len(), "counter", r.counter)
		}
	}
}

// step runs fn with a per-attempt timeout, retrying failures with
// exponential backoff. Cancellation of ctx is returned as is.
func (p *Planner) step(ctx context.Context, r *run, name string, task Task, fn func(context.Context) error) error {
	var last error
	for attempt := 0; attempt < p.stepAttempts; attempt++ {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.stepTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.stepTimeout)
		}
		err := fn(actx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		last = err
		p.logger.Warn("planner: step failed",
			"run", r.id,
			"step", name,
			"task", task.ID,
			"attempt", attempt+1,
			"max_attempts", p.stepAttempts,
			"error", err)
		if attempt < p.stepAttempts-1 {
			if err := lago.Sleep(ctx, lago.RetryDelay(p.stepBackoff, attempt, err)); err != nil {
				return err
			}
		}
	}
	return &StepError{Step: name, Task: task, Attempts: p.stepAttempts, Err: last}
}

func (p *Planner) complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	resp, err := p.llm.Chat(ctx, lago.ChatRequest{
		Messages: []lago.ChatMessage{lago.UserMessage(prompt)},
		GenerationParams: &lago.GenerationParams{
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (p *Planner) persist(ctx context.Context, index lago.VectorIndex, task Task, result string) error {
	text := result
	if strings.TrimSpace(text) == "" {
		text = task.Description
	}
	vecs, err := p.embedding.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed result: %w", err)
	}
	if len(vecs) == 0 {
		return fmt.Errorf("embed result: provider %s returned no vectors", p.embedding.Name())
	}
	return index.Upsert(ctx, ResultKey(task.ID), vecs[0], map[string]string{
		MetaTask:   task.Description,
		MetaResult: result,
	})
}

func (p *Planner) cancelled(ctx context.Context, r *run, out *announcer, err error) error {
	r.state = StateCancelled
	out.send(context.WithoutCancel(ctx), cancelledNotice)
	return err
}

func (p *Planner) fail(ctx context.Context, r *run, out *announcer, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return p.cancelled(ctx, r, out, ctx.Err())
		}
	}
	r.state = StateFailed
	var se *StepError
	if errors.As(err, &se) {
		out.send(ctx, failedNotice(se))
	}
	p.logger.Error("planner: run failed", "run", r.id, "error", err)
	return err
}

// ResultKey is the vector index key of the result of task id.
func ResultKey(id int) string {
	return fmt.Sprintf("result_%d", id)
}
