// Package console prints planner output to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lagobot/lago"
)

// Sink writes each reply as a block of text followed by a blank line.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ lago.Sink = (*Sink)(nil)

func New(w io.Writer) *Sink { return &Sink{w: w} }

func (s *Sink) Name() string { return "console" }

func (s *Sink) Send(_ context.Context, _ string, reply lago.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reply.Text != "" {
		if _, err := fmt.Fprintln(s.w, reply.Text); err != nil {
			return err
		}
	}
	if reply.MediaURL != "" {
		if _, err := fmt.Fprintln(s.w, reply.MediaURL); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(s.w)
	return err
}
