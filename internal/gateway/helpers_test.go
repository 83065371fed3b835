package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/lagobot/lago"
	"github.com/lagobot/lago/planner"
)

// scriptedLLM answers by system prompt: the classifier gets intent, the
// image prompt gets image, the calendar prompt gets calendar and anything
// else gets chat.
type scriptedLLM struct {
	mu       sync.Mutex
	intent   string
	image    string
	calendar string
	chat     string
	err      error
	imageErr error // returned only for the image prompt
	requests []lago.ChatRequest
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Chat(_ context.Context, req lago.ChatRequest) (lago.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return lago.ChatResponse{}, s.err
	}
	system := ""
	if len(req.Messages) > 0 && req.Messages[0].Role == "system" {
		system = req.Messages[0].Content
	}
	switch system {
	case topicPrompt:
		return lago.ChatResponse{Content: s.intent}, nil
	case imagePrompt:
		if s.imageErr != nil {
			return lago.ChatResponse{}, s.imageErr
		}
		return lago.ChatResponse{Content: s.image}, nil
	case calendarPrompt:
		return lago.ChatResponse{Content: s.calendar}, nil
	}
	return lago.ChatResponse{Content: s.chat}, nil
}

func (s *scriptedLLM) last() lago.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

type stubImages struct {
	url    string
	err    error
	prompt string
}

func (s *stubImages) Name() string { return "stub-images" }

func (s *stubImages) GenerateImage(_ context.Context, prompt string) (lago.ImageResult, error) {
	s.prompt = prompt
	if s.err != nil {
		return lago.ImageResult{}, s.err
	}
	return lago.ImageResult{URL: s.url}, nil
}

type stubCalendar struct {
	got string
	err error
}

func (s *stubCalendar) AddEvent(_ context.Context, instructions string) (string, error) {
	s.got = instructions
	if s.err != nil {
		return "", s.err
	}
	return "Done: Add Event.", nil
}

type stubTranscriber struct {
	text string
	err  error
	name string
}

func (s *stubTranscriber) Name() string { return "stub-transcriber" }

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte, filename string) (string, error) {
	s.name = filename
	return s.text, s.err
}

// recordingSink collects replies per chat.
type recordingSink struct {
	mu      sync.Mutex
	replies map[string][]lago.Reply
}

func newRecordingSink() *recordingSink {
	return &recordingSink{replies: make(map[string][]lago.Reply)}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, chatID string, r lago.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[chatID] = append(s.replies[chatID], r)
	return nil
}

func (s *recordingSink) get(chatID string) []lago.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]lago.Reply(nil), s.replies[chatID]...)
}

// blockingRunner runs until its context is cancelled and reports each
// request on started.
type blockingRunner struct {
	started chan planner.Request
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan planner.Request, 8)}
}

func (r *blockingRunner) Run(ctx context.Context, req planner.Request) (planner.Result, error) {
	if req.OnTask != nil {
		req.OnTask(planner.Task{ID: 1, Description: req.Objective})
	}
	r.started <- req
	<-ctx.Done()
	return planner.Result{RunID: req.RunID, State: planner.StateCancelled}, ctx.Err()
}

var errBoom = errors.New("boom")
