package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lagobot/lago"
)

// fakeAPI is a minimal Bot API server. Handlers are keyed by method name;
// every request body is recorded.
type fakeAPI struct {
	mu       sync.Mutex
	calls    []apiCall
	handlers map[string]func(body map[string]any) string
}

type apiCall struct {
	method string
	body   map[string]any
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{handlers: map[string]func(map[string]any) string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/file/") {
			io.WriteString(w, "audio-bytes")
			return
		}
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.calls = append(f.calls, apiCall{method: method, body: body})
		h := f.handlers[method]
		f.mu.Unlock()
		if h == nil {
			io.WriteString(w, `{"ok":true,"result":{}}`)
			return
		}
		io.WriteString(w, h(body))
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method
	}
	return out
}

func TestBotSend_Text(t *testing.T) {
	api, srv := newFakeAPI(t)
	b := NewBot("TOKEN", WithAPIURL(srv.URL))

	if err := b.Send(context.Background(), "42", lago.Reply{Text: "**done**"}); err != nil {
		t.Fatal(err)
	}
	if len(api.calls) != 1 || api.calls[0].method != "sendMessage" {
		t.Fatalf("calls = %v", api.methods())
	}
	body := api.calls[0].body
	if body["chat_id"] != "42" || body["parse_mode"] != "HTML" || body["text"] != "<b>done</b>" {
		t.Errorf("body = %v", body)
	}
}

func TestBotSend_PhotoWithCaption(t *testing.T) {
	api, srv := newFakeAPI(t)
	b := NewBot("TOKEN", WithAPIURL(srv.URL))

	err := b.Send(context.Background(), "42", lago.Reply{Text: "image of a fox", MediaURL: "https://img/fox.png"})
	if err != nil {
		t.Fatal(err)
	}
	if got := api.methods(); len(got) != 1 || got[0] != "sendPhoto" {
		t.Fatalf("calls = %v", got)
	}
	if api.calls[0].body["caption"] != "image of a fox" || api.calls[0].body["photo"] != "https://img/fox.png" {
		t.Errorf("body = %v", api.calls[0].body)
	}
}

func TestBotSend_LongCaptionFollowsAsMessage(t *testing.T) {
	api, srv := newFakeAPI(t)
	b := NewBot("TOKEN", WithAPIURL(srv.URL))

	err := b.Send(context.Background(), "42", lago.Reply{Text: strings.Repeat("a", 2000), MediaURL: "https://img/x.png"})
	if err != nil {
		t.Fatal(err)
	}
	got := api.methods()
	if len(got) != 2 || got[0] != "sendPhoto" || got[1] != "sendMessage" {
		t.Fatalf("calls = %v", got)
	}
}

func TestBotSend_FallsBackToPlainText(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handlers["sendMessage"] = func(body map[string]any) string {
		if body["parse_mode"] == "HTML" {
			return `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`
		}
		return `{"ok":true,"result":{}}`
	}
	b := NewBot("TOKEN", WithAPIURL(srv.URL))

	if err := b.Send(context.Background(), "1", lago.Reply{Text: "x <y"}); err != nil {
		t.Fatal(err)
	}
	if len(api.calls) != 2 {
		t.Fatalf("calls = %v", api.methods())
	}
	if _, ok := api.calls[1].body["parse_mode"]; ok {
		t.Error("fallback must not set parse_mode")
	}
}

func TestBotSend_APIError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handlers["sendMessage"] = func(map[string]any) string {
		return `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":3}}`
	}
	b := NewBot("TOKEN", WithAPIURL(srv.URL))

	err := b.Send(context.Background(), "1", lago.Reply{Text: "hi"})
	var httpErr *lago.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected ErrHTTP, got %v", err)
	}
	if httpErr.Status != 429 || httpErr.RetryAfter != 3*time.Second {
		t.Errorf("got %+v", httpErr)
	}
}

func TestParseUpdate(t *testing.T) {
	msg, ok, err := ParseUpdate([]byte(`{"update_id":1,"message":{"message_id":7,"from":{"id":99},"chat":{"id":42},"text":"/task plan"}}`))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if msg.ChatID != "42" || msg.UserID != "99" || msg.ID != "7" || msg.Text != "/task plan" || msg.Channel != lago.ChannelTelegram {
		t.Errorf("msg = %+v", msg)
	}

	msg, ok, _ = ParseUpdate([]byte(`{"update_id":2,"message":{"message_id":8,"chat":{"id":42},"voice":{"file_id":"F1","duration":3}}}`))
	if !ok || msg.Voice == nil || msg.Voice.FileID != "F1" {
		t.Errorf("voice not mapped: %+v", msg)
	}

	if _, ok, _ := ParseUpdate([]byte(`{"update_id":3}`)); ok {
		t.Error("update without message must be skipped")
	}
	if _, _, err := ParseUpdate([]byte(`{`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestBotDownloadFile(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handlers["getFile"] = func(body map[string]any) string {
		if body["file_id"] != "F1" {
			t.Errorf("file_id = %v", body["file_id"])
		}
		return `{"ok":true,"result":{"file_id":"F1","file_path":"voice/file_3.oga"}}`
	}
	b := NewBot("TOKEN", WithAPIURL(srv.URL))

	data, name, err := b.DownloadFile(context.Background(), "F1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "audio-bytes" || name != "file_3.oga" {
		t.Errorf("got %q %q", data, name)
	}
}

func TestBotPoll(t *testing.T) {
	api, srv := newFakeAPI(t)
	var mu sync.Mutex
	served := false
	api.handlers["getUpdates"] = func(body map[string]any) string {
		mu.Lock()
		defer mu.Unlock()
		if served {
			if body["offset"].(float64) != 11 {
				t.Errorf("offset = %v, want 11", body["offset"])
			}
			return `{"ok":true,"result":[]}`
		}
		served = true
		return `{"ok":true,"result":[
			{"update_id":9},
			{"update_id":10,"message":{"message_id":1,"chat":{"id":5},"text":"hello"}}
		]}`
	}
	b := NewBot("TOKEN", WithAPIURL(srv.URL), WithPollTimeout(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := b.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-ch:
		if msg.Text != "hello" || msg.ChatID != "5" {
			t.Errorf("msg = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	cancel()
	for range ch {
	}
}
