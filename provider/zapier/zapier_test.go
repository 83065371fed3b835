package zapier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lagobot/lago"
)

func newNLAServer(t *testing.T, actions string, execute func(id, instructions string) (int, string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var listCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/exposed/":
			listCalls.Add(1)
			io.WriteString(w, actions)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/execute/"):
			id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/exposed/"), "/execute/")
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			status, resp := execute(id, body["instructions"])
			w.WriteHeader(status)
			io.WriteString(w, resp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &listCalls
}

const actionsJSON = `{"results":[
	{"id":"01A","description":"Gmail: Send Email"},
	{"id":"01B","description":"Google Calendar: Quick Add Event"}
]}`

func TestCalendarAddEvent_DiscoversAction(t *testing.T) {
	srv, lists := newNLAServer(t, actionsJSON, func(id, instr string) (int, string) {
		if id != "01B" {
			t.Errorf("action = %q, want 01B", id)
		}
		if !strings.HasPrefix(instr, "Add Event") {
			t.Errorf("instructions = %q", instr)
		}
		return 200, `{"status":"success","action_used":"Google Calendar: Quick Add Event","result":{"summary":"Dinner","htmlLink":"https://cal/1"}}`
	})
	cal := NewCalendar(New("key", WithBaseURL(srv.URL)), "")

	for i := 0; i < 2; i++ {
		out, err := cal.AddEvent(context.Background(), "Add Event on 13-01-2023, Summary: Dinner")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "summary: Dinner") || !strings.Contains(out, "https://cal/1") {
			t.Errorf("summary = %q", out)
		}
	}
	if lists.Load() != 1 {
		t.Errorf("actions listed %d times, want 1 (cached)", lists.Load())
	}
}

func TestCalendarAddEvent_ConfiguredAction(t *testing.T) {
	srv, lists := newNLAServer(t, actionsJSON, func(id, _ string) (int, string) {
		if id != "XYZ" {
			t.Errorf("action = %q", id)
		}
		return 200, `{"status":"success","action_used":"Calendar"}`
	})
	out, err := NewCalendar(New("key", WithBaseURL(srv.URL)), "XYZ").AddEvent(context.Background(), "Add Event")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Done: Calendar." {
		t.Errorf("out = %q", out)
	}
	if lists.Load() != 0 {
		t.Error("configured action must not be discovered")
	}
}

func TestCalendarAddEvent_NoAction(t *testing.T) {
	srv, _ := newNLAServer(t, `{"results":[{"id":"1","description":"Slack: Send Message"}]}`, nil)
	_, err := NewCalendar(New("key", WithBaseURL(srv.URL)), "").AddEvent(context.Background(), "x")
	if !errors.Is(err, ErrNoCalendarAction) {
		t.Fatalf("expected ErrNoCalendarAction, got %v", err)
	}
}

func TestExecute_Errors(t *testing.T) {
	srv, _ := newNLAServer(t, actionsJSON, func(id, _ string) (int, string) {
		if id == "bad" {
			return 200, `{"status":"error","action_used":"Calendar","error":"missing start time"}`
		}
		return 503, "down"
	})
	c := New("key", WithBaseURL(srv.URL))

	if _, err := c.Execute(context.Background(), "bad", "x"); err == nil || !strings.Contains(err.Error(), "missing start time") {
		t.Errorf("expected action error, got %v", err)
	}
	_, err := c.Execute(context.Background(), "other", "x")
	if !lago.IsTransient(err) {
		t.Errorf("503 must be transient, got %v", err)
	}
	if _, err := New("wrong", WithBaseURL(srv.URL)).Actions(context.Background()); err == nil {
		t.Error("expected auth error")
	}
}
