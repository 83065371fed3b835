package gateway

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/lagobot/lago"
)

func TestServer_Healthz(t *testing.T) {
	g, _, _ := newTestGateway(&scriptedLLM{})
	srv := NewServer(g)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServer_TelegramWebhook(t *testing.T) {
	sink := newRecordingSink()
	g, _, _ := newTestGateway(&scriptedLLM{chat: "pong"}, WithTransport(lago.ChannelTelegram, Transport{Sink: sink}))
	srv := NewServer(g)

	body := `{"update_id":1,"message":{"message_id":5,"chat":{"id":42},"from":{"id":7},"text":"ping"}}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["message"] != "pong" {
		t.Errorf("message = %q", resp["message"])
	}
	got := sink.get("42")
	if len(got) != 1 || got[0].Text != "pong" {
		t.Errorf("sink got %+v", got)
	}
}

func TestServer_TelegramIgnoresNonMessages(t *testing.T) {
	llm := &scriptedLLM{chat: "pong"}
	g, _, _ := newTestGateway(llm)
	srv := NewServer(g)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/", strings.NewReader(`{"update_id":2}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if len(llm.requests) != 0 {
		t.Errorf("llm called for an update without a message")
	}
}

func TestServer_TelegramBadBody(t *testing.T) {
	g, _, _ := newTestGateway(&scriptedLLM{})
	srv := NewServer(g)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/", strings.NewReader(`{not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("body = %s, want JSON error", rec.Body.String())
	}
}

func postForm(srv *Server, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_TwilioWebhook(t *testing.T) {
	llm := &scriptedLLM{intent: "image", image: "a lighthouse"}
	g, _, _ := newTestGateway(llm, WithImageProvider(&stubImages{url: "https://img.example/l.png"}))
	srv := NewServer(g)

	rec := postForm(srv, url.Values{"From": {"whatsapp:+15550001"}, "Body": {"draw a lighthouse"}}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"<Body>image of a lighthouse</Body>", "<Media>https://img.example/l.png</Media>"} {
		if !strings.Contains(body, want) {
			t.Errorf("TwiML %s missing %s", body, want)
		}
	}
}

func TestServer_TwilioEmptyForm(t *testing.T) {
	g, _, _ := newTestGateway(&scriptedLLM{})
	srv := NewServer(g)

	rec := postForm(srv, url.Values{"From": {"whatsapp:+1"}}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<Message>") {
		t.Errorf("body = %s, want no message", rec.Body.String())
	}
}

func TestServer_TwilioSignature(t *testing.T) {
	g, _, _ := newTestGateway(&scriptedLLM{chat: "hi back"})
	srv := NewServer(g, WithTwilioSignature("secret", "https://bot.example.com/"))
	form := url.Values{"From": {"whatsapp:+15550001"}, "Body": {"hi"}}

	if rec := postForm(srv, form, "bogus"); rec.Code != http.StatusForbidden {
		t.Errorf("bad signature: status = %d, want 403", rec.Code)
	}

	mac := hmac.New(sha1.New, []byte("secret"))
	mac.Write([]byte("https://bot.example.com/api" + "Bodyhi" + "Fromwhatsapp:+15550001"))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	rec := postForm(srv, form, sig)
	if rec.Code != http.StatusOK {
		t.Fatalf("good signature: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Body>hi back</Body>") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestServer_Metrics(t *testing.T) {
	g, _, _ := newTestGateway(&scriptedLLM{chat: "x"})
	srv := NewServer(g)
	postForm(srv, url.Values{"From": {"messenger:99"}, "Body": {"hello"}}, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if want := `lago_messages_total{channel="messenger",kind="text"} 1`; !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics missing %s", want)
	}
}
