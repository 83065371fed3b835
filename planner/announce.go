package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lagobot/lago"
)

const (
	completedNotice = "Task completed"
	cancelledNotice = "Task cancelled"
)

// announcer delivers run events to the user. Delivery is best effort:
// failures are logged and never stop the run.
type announcer struct {
	sink      lago.Sink
	channelID string
	runID     string
	logger    *slog.Logger
}

func (a *announcer) send(ctx context.Context, text string) {
	if a.sink == nil || strings.TrimSpace(text) == "" {
		return
	}
	if err := a.sink.Send(ctx, a.channelID, lago.Reply{Text: text}); err != nil {
		a.logger.Warn("planner: delivery failed",
			"run", a.runID,
			"sink", a.sink.Name(),
			"channel", a.channelID,
			"error", err)
	}
}

func formatQueue(tasks []Task) string {
	var b strings.Builder
	b.WriteString("Task list:\n")
	for _, t := range tasks {
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatNext(t Task) string {
	return "Next task: " + t.String()
}

func haltedNotice(iterations, remaining int) string {
	return fmt.Sprintf("Task stopped after %d iterations with %d tasks left", iterations, remaining)
}

func failedNotice(e *StepError) string {
	return fmt.Sprintf("Task failed: %s (%s step): %v", e.Task.Description, e.Step, e.Err)
}
