package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"

	"github.com/lagobot/lago"
)

// ParseInbound maps the form fields of an inbound message webhook. The
// sender address becomes the chat id and selects the channel. An audio
// attachment in MediaUrl0 becomes the Voice file, its URL standing in for
// the file id. ok is false when the form carries neither text nor audio.
func ParseInbound(form url.Values) (lago.IncomingMessage, bool) {
	from := form.Get("From")
	msg := lago.IncomingMessage{
		ID:      form.Get("MessageSid"),
		ChatID:  from,
		UserID:  from,
		Channel: channelOf(from),
		Text:    strings.TrimSpace(form.Get("Body")),
	}
	if media := form.Get("MediaUrl0"); media != "" {
		ct := form.Get("MediaContentType0")
		if ct == "" || strings.HasPrefix(ct, "audio/") {
			msg.Voice = &lago.FileInfo{FileID: media, FileName: "voice" + extension(ct), MimeType: ct}
		}
	}
	if msg.Text == "" && msg.Voice == nil {
		return lago.IncomingMessage{}, false
	}
	return msg, true
}

func channelOf(addr string) lago.ChannelKind {
	if strings.HasPrefix(addr, "messenger:") {
		return lago.ChannelMessenger
	}
	return lago.ChannelWhatsApp
}

func extension(contentType string) string {
	switch contentType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4", "audio/aac":
		return ".m4a"
	case "audio/amr":
		return ".amr"
	default:
		return ".ogg"
	}
}

// ValidSignature checks the X-Twilio-Signature header: base64 HMAC-SHA1 of
// the full request URL followed by every POST parameter name and value in
// name order, keyed with the auth token.
func ValidSignature(authToken, fullURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}
