package zapier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNoCalendarAction is returned when no exposed action creates calendar
// events.
var ErrNoCalendarAction = errors.New("zapier: no calendar event action exposed")

// Calendar creates events through an exposed "create event" action. The
// action id is either configured or looked up once and cached.
type Calendar struct {
	client   *Client
	mu       sync.Mutex
	actionID string
}

// NewCalendar uses actionID when non-empty, otherwise discovers the action
// on first use.
func NewCalendar(c *Client, actionID string) *Calendar {
	return &Calendar{client: c, actionID: actionID}
}

// AddEvent executes the calendar action and returns a one-line summary.
func (cal *Calendar) AddEvent(ctx context.Context, instructions string) (string, error) {
	id, err := cal.resolve(ctx)
	if err != nil {
		return "", err
	}
	res, err := cal.client.Execute(ctx, id, instructions)
	if err != nil {
		return "", err
	}
	return summarize(res), nil
}

func (cal *Calendar) resolve(ctx context.Context) (string, error) {
	cal.mu.Lock()
	defer cal.mu.Unlock()
	if cal.actionID != "" {
		return cal.actionID, nil
	}
	actions, err := cal.client.Actions(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range actions {
		d := strings.ToLower(a.Description)
		if strings.Contains(d, "calendar") && strings.Contains(d, "event") {
			cal.actionID = a.ID
			return a.ID, nil
		}
	}
	return "", ErrNoCalendarAction
}

func summarize(res Result) string {
	if len(res.Result) == 0 {
		return fmt.Sprintf("Done: %s.", res.ActionUsed)
	}
	keys := make([]string, 0, len(res.Result))
	for k := range res.Result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		if v, ok := res.Result[k].(string); ok && v != "" && isEventField(k) {
			parts = append(parts, fmt.Sprintf("%s: %s", k, v))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Done: %s.", res.ActionUsed)
	}
	return fmt.Sprintf("Done: %s (%s).", res.ActionUsed, strings.Join(parts, ", "))
}

func isEventField(k string) bool {
	switch k {
	case "summary", "location", "start__dateTime", "end__dateTime", "htmlLink":
		return true
	}
	return false
}
