package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lagobot/lago"
	"github.com/lagobot/lago/planner"
)

var (
	// ErrRunActive is returned when the chat already has a planning run.
	ErrRunActive = errors.New("gateway: a task is already running in this chat")
	// ErrTooManyRuns is returned when every run slot is taken.
	ErrTooManyRuns = errors.New("gateway: too many tasks running")
)

// Runner executes one planning run. *planner.Planner satisfies it.
type Runner interface {
	Run(ctx context.Context, req planner.Request) (planner.Result, error)
}

// RunInfo describes an active planning run.
type RunInfo struct {
	ID        string
	ChatID    string
	Objective string
	Current   string // description of the task executing now
	Elapsed   time.Duration
}

type activeRun struct {
	id        string
	chatID    string
	objective string
	current   string
	started   time.Time
	cancel    context.CancelFunc
}

// RunManager starts planning runs in the background, one per chat and at
// most maxConcurrent overall. Runs live on the manager's base context, not
// on the request that started them.
type RunManager struct {
	base          context.Context
	runner        Runner
	maxConcurrent int
	logger        *slog.Logger
	metrics       *Metrics

	mu     sync.Mutex
	byChat map[string]*activeRun
	wg     sync.WaitGroup
}

type RunOption func(*RunManager)

func RunMaxConcurrent(n int) RunOption {
	return func(m *RunManager) { m.maxConcurrent = n }
}

func RunLogger(l *slog.Logger) RunOption {
	return func(m *RunManager) { m.logger = l }
}

func RunMetrics(mt *Metrics) RunOption {
	return func(m *RunManager) { m.metrics = mt }
}

func NewRunManager(base context.Context, runner Runner, opts ...RunOption) *RunManager {
	m := &RunManager{
		base:          base,
		runner:        runner,
		maxConcurrent: 3,
		byChat:        make(map[string]*activeRun),
	}
	for _, o := range opts {
		o(m)
	}
	if m.maxConcurrent <= 0 {
		m.maxConcurrent = 3
	}
	if m.logger == nil {
		m.logger = lago.NopLogger()
	}
	if m.metrics == nil {
		m.metrics = NewMetrics()
	}
	return m
}

// Start launches a run for objective in chatID and returns its id. Progress
// goes to sink.
func (m *RunManager) Start(chatID, objective string, sink lago.Sink) (string, error) {
	m.mu.Lock()
	if _, busy := m.byChat[chatID]; busy {
		m.mu.Unlock()
		return "", ErrRunActive
	}
	if len(m.byChat) >= m.maxConcurrent {
		m.mu.Unlock()
		return "", ErrTooManyRuns
	}
	ctx, cancel := context.WithCancel(m.base)
	r := &activeRun{
		id:        lago.NewID(),
		chatID:    chatID,
		objective: objective,
		started:   time.Now(),
		cancel:    cancel,
	}
	m.byChat[chatID] = r
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.activeRuns.Inc()
	go m.run(ctx, r, sink)
	return r.id, nil
}

func (m *RunManager) run(ctx context.Context, r *activeRun, sink lago.Sink) {
	defer m.wg.Done()
	defer m.finish(r)

	res, err := m.runner.Run(ctx, planner.Request{
		Objective: r.objective,
		ChannelID: r.chatID,
		Sink:      sink,
		RunID:     r.id,
		OnTask:    func(t planner.Task) { m.setCurrent(r, t.Description) },
	})
	m.metrics.runs.WithLabelValues(res.State.String()).Inc()
	if err != nil && res.State != planner.StateCancelled {
		m.logger.Error("gateway: run failed", "run", r.id, "chat_id", r.chatID, "state", res.State.String(), "error", err)
		return
	}
	m.logger.Info("gateway: run finished", "run", r.id, "chat_id", r.chatID, "state", res.State.String(), "iterations", res.Iterations)
}

func (m *RunManager) setCurrent(r *activeRun, desc string) {
	m.mu.Lock()
	r.current = desc
	m.mu.Unlock()
}

func (m *RunManager) finish(r *activeRun) {
	r.cancel()
	m.mu.Lock()
	if m.byChat[r.chatID] == r {
		delete(m.byChat, r.chatID)
	}
	m.mu.Unlock()
	m.metrics.activeRuns.Dec()
}

// Stop cancels the chat's run. It reports whether a run was active.
func (m *RunManager) Stop(chatID string) bool {
	m.mu.Lock()
	r, ok := m.byChat[chatID]
	m.mu.Unlock()
	if ok {
		r.cancel()
	}
	return ok
}

// Active lists running runs, oldest first.
func (m *RunManager) Active() []RunInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := make([]RunInfo, 0, len(m.byChat))
	for _, r := range m.byChat {
		out = append(out, RunInfo{
			ID:        r.id,
			ChatID:    r.chatID,
			Objective: r.objective,
			Current:   r.current,
			Elapsed:   now.Sub(r.started),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Elapsed > out[j].Elapsed })
	return out
}

// Lookup returns the chat's active run.
func (m *RunManager) Lookup(chatID string) (RunInfo, bool) {
	for _, r := range m.Active() {
		if r.ChatID == chatID {
			return r, true
		}
	}
	return RunInfo{}, false
}

// FormatStatus renders the /status reply for chatID.
func (m *RunManager) FormatStatus(chatID string) string {
	r, ok := m.Lookup(chatID)
	if !ok {
		return "No task is running."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Working on: %s (%ds)", r.Objective, int(r.Elapsed.Seconds()))
	if r.Current != "" {
		fmt.Fprintf(&b, "\nCurrent task: %s", r.Current)
	}
	return b.String()
}

// Shutdown cancels every run and waits for them to end or ctx to expire.
func (m *RunManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, r := range m.byChat {
		r.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
