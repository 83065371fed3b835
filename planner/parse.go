package planner

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// ParseMode controls what happens to model output lines that do not match
// the expected list format.
type ParseMode int

const (
	// ParseDrop skips malformed prioritization lines and logs a warning for
	// each. Task creation keeps every non-empty line.
	ParseDrop ParseMode = iota
	// ParseKeep keeps malformed prioritization lines as tasks with fresh ids.
	ParseKeep
	// ParseStrict behaves like ParseDrop and additionally requires task
	// creation lines to be numbered ("<n>. <task>").
	ParseStrict
)

func (m ParseMode) String() string {
	switch m {
	case ParseKeep:
		return "keep"
	case ParseStrict:
		return "strict"
	default:
		return "drop"
	}
}

// ParseParseMode maps a config value to a ParseMode. Unknown values map to
// ParseDrop and ok is false.
func ParseParseMode(s string) (ParseMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return ParseDrop, true
	case "keep":
		return ParseKeep, true
	case "strict":
		return ParseStrict, true
	}
	return ParseDrop, false
}

var listMarker = regexp.MustCompile(`^(?:\d+\s*[.)]|[-*•#])\s*`)

// parseNewTasks splits a task-creation response into task descriptions, one
// per non-empty line. Responses shaped as a JSON array of strings are
// accepted too, since the prompt asks for "an array".
func parseNewTasks(text string, mode ParseMode, logger *slog.Logger) []string {
	if tasks, ok := parseJSONList(text); ok {
		return tasks
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if mode == ParseStrict {
			r, ok := splitNumbered(line)
			if !ok {
				logger.Warn("planner: dropped unnumbered task line", "line", line)
				continue
			}
			out = append(out, r.Description)
			continue
		}
		if desc := stripMarker(line); desc != "" {
			out = append(out, desc)
		}
	}
	return out
}

// rankedLine is one line of a prioritization response. HasID is false for
// lines kept under ParseKeep without a usable number.
type rankedLine struct {
	ID          int
	HasID       bool
	Description string
}

// parsePrioritized parses a "<n>. <task>" numbered list. Lines with fewer
// than two dot-separated segments, a non-integer number, or no description
// are dropped with a warning unless mode is ParseKeep.
func parsePrioritized(text string, mode ParseMode, logger *slog.Logger) []rankedLine {
	var out []rankedLine
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r, ok := splitNumbered(line); ok {
			out = append(out, r)
			continue
		}
		if mode == ParseKeep {
			if desc := stripMarker(line); desc != "" {
				out = append(out, rankedLine{Description: desc})
				continue
			}
		}
		logger.Warn("planner: dropped malformed priority line", "line", line)
	}
	return out
}

// splitNumbered splits "<n>. <desc>" at the first dot.
func splitNumbered(line string) (rankedLine, bool) {
	parts := strings.SplitN(line, ".", 2)
	if len(parts) != 2 {
		return rankedLine{}, false
	}
	num := strings.TrimLeft(strings.TrimSpace(parts[0]), "#")
	id, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || id <= 0 {
		return rankedLine{}, false
	}
	desc := strings.TrimSpace(parts[1])
	if desc == "" {
		return rankedLine{}, false
	}
	return rankedLine{ID: id, HasID: true, Description: desc}, true
}

func stripMarker(line string) string {
	return strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
}

// parseJSONList accepts a bare or fenced JSON array of strings.
func parseJSONList(text string) ([]string, bool) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, false
	}
	var items []string
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out, true
}
