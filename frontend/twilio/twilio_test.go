package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/lagobot/lago"
)

type recordedForm struct {
	path string
	user string
	pass string
	form url.Values
}

func newMessagesServer(t *testing.T, status int, body string) (*httptest.Server, *[]recordedForm) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recordedForm
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		user, pass, _ := r.BasicAuth()
		mu.Lock()
		seen = append(seen, recordedForm{path: r.URL.Path, user: user, pass: pass, form: r.PostForm})
		mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestClientSendMessage(t *testing.T) {
	srv, seen := newMessagesServer(t, http.StatusCreated, `{"sid":"SM1","status":"queued"}`)
	c := NewClient("AC123", "secret", WithAPIURL(srv.URL))

	m, err := c.SendMessage(context.Background(), "whatsapp:+1000", "whatsapp:+2000", "hello", "https://img/x.png")
	if err != nil {
		t.Fatal(err)
	}
	if m.SID != "SM1" {
		t.Errorf("sid = %q", m.SID)
	}
	got := (*seen)[0]
	if got.path != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Errorf("path = %s", got.path)
	}
	if got.user != "AC123" || got.pass != "secret" {
		t.Errorf("basic auth = %s:%s", got.user, got.pass)
	}
	if got.form.Get("From") != "whatsapp:+1000" || got.form.Get("To") != "whatsapp:+2000" ||
		got.form.Get("Body") != "hello" || got.form.Get("MediaUrl") != "https://img/x.png" {
		t.Errorf("form = %v", got.form)
	}
}

func TestClientSendMessage_Error(t *testing.T) {
	srv, _ := newMessagesServer(t, http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`)
	c := NewClient("AC123", "secret", WithAPIURL(srv.URL))

	_, err := c.SendMessage(context.Background(), "a", "b", "c", "")
	var httpErr *lago.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected ErrHTTP, got %v", err)
	}
	if httpErr.Status != 400 || !strings.Contains(httpErr.Body, "21211") {
		t.Errorf("got %+v", httpErr)
	}
}

func TestSink(t *testing.T) {
	srv, seen := newMessagesServer(t, http.StatusCreated, `{"sid":"SM1"}`)
	c := NewClient("AC", "tok", WithAPIURL(srv.URL))

	s, err := NewSink(c, lago.ChannelMessenger, "", "PAGE")
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "twilio-messenger" {
		t.Errorf("name = %q", s.Name())
	}
	long := strings.Repeat("z", maxBodyLength+10)
	if err := s.Send(context.Background(), "messenger:42", lago.Reply{Text: long, MediaURL: "https://m"}); err != nil {
		t.Fatal(err)
	}
	if len(*seen) != 2 {
		t.Fatalf("got %d messages, want 2", len(*seen))
	}
	first, second := (*seen)[0].form, (*seen)[1].form
	if first.Get("From") != "messenger:PAGE" || first.Get("MediaUrl") != "https://m" {
		t.Errorf("first = %v", first)
	}
	if second.Get("MediaUrl") != "" || len(second.Get("Body")) != 10 {
		t.Errorf("second = %v", second)
	}
}

func TestNewSink_Unconfigured(t *testing.T) {
	c := NewClient("AC", "tok")
	if _, err := NewSink(c, lago.ChannelWhatsApp, "", ""); err == nil {
		t.Error("expected error for missing whatsapp number")
	}
	if _, err := NewSink(c, lago.ChannelTelegram, "+1", "p"); err == nil {
		t.Error("expected error for non-twilio channel")
	}
}

func TestParseInbound(t *testing.T) {
	msg, ok := ParseInbound(url.Values{
		"From":       {"whatsapp:+15551234567"},
		"Body":       {" /task plan a trip "},
		"MessageSid": {"SM9"},
	})
	if !ok {
		t.Fatal("expected ok")
	}
	if msg.ChatID != "whatsapp:+15551234567" || msg.Text != "/task plan a trip" || msg.Channel != lago.ChannelWhatsApp || msg.ID != "SM9" {
		t.Errorf("msg = %+v", msg)
	}

	msg, ok = ParseInbound(url.Values{
		"From":              {"messenger:77"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
		"MediaContentType0": {"audio/ogg"},
	})
	if !ok || msg.Voice == nil || msg.Voice.FileID != "https://api.twilio.com/media/ME1" || msg.Channel != lago.ChannelMessenger {
		t.Errorf("voice msg = %+v", msg)
	}

	if _, ok := ParseInbound(url.Values{
		"From":              {"whatsapp:+1"},
		"MediaUrl0":         {"https://img"},
		"MediaContentType0": {"image/jpeg"},
	}); ok {
		t.Error("image-only message must be skipped")
	}
}

func TestValidSignature(t *testing.T) {
	form := url.Values{"Body": {"hi"}, "From": {"whatsapp:+1"}}
	u := "https://bot.example/api"
	mac := hmac.New(sha1.New, []byte("tok"))
	mac.Write([]byte(u + "Bodyhi" + "Fromwhatsapp:+1"))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !ValidSignature("tok", u, form, sig) {
		t.Error("valid signature rejected")
	}
	if ValidSignature("other", u, form, sig) {
		t.Error("wrong token accepted")
	}
	if ValidSignature("tok", u, form, "") {
		t.Error("empty signature accepted")
	}
}

func TestTwiML(t *testing.T) {
	out, err := TwiML(lago.Reply{Text: "image of a cat & dog", MediaURL: "https://img/1.png"})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	for _, want := range []string{"<Response>", "<Message>", "<Body>image of a cat &amp; dog</Body>", "<Media>https://img/1.png</Media>"} {
		if !strings.Contains(s, want) {
			t.Errorf("TwiML %s missing %s", s, want)
		}
	}

	out, _ = TwiML()
	if strings.Contains(string(out), "<Message>") {
		t.Errorf("empty TwiML has a message: %s", out)
	}
}

func TestDownloadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, p, _ := r.BasicAuth(); u != "AC" || p != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "audio/ogg")
		io.WriteString(w, "OggS")
	}))
	defer srv.Close()

	data, ct, err := NewClient("AC", "tok").DownloadMedia(context.Background(), srv.URL+"/media/ME1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "OggS" || ct != "audio/ogg" {
		t.Errorf("got %q %q", data, ct)
	}
}
