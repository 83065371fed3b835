package twilio

import (
	"context"
	"fmt"

	"github.com/lagobot/lago"
)

// maxBodyLength is the Messages API body limit.
const maxBodyLength = 1600

// Sink delivers replies as WhatsApp or Messenger messages. The channel id
// passed to Send is the sender address from the inbound webhook
// ("whatsapp:+15551234567", "messenger:1234").
type Sink struct {
	client *Client
	kind   lago.ChannelKind
	from   string
}

var _ lago.Sink = (*Sink)(nil)

// NewWhatsAppSink sends from the given WhatsApp-enabled number.
func NewWhatsAppSink(c *Client, number string) *Sink {
	return &Sink{client: c, kind: lago.ChannelWhatsApp, from: "whatsapp:" + number}
}

// NewMessengerSink sends from the given Facebook page.
func NewMessengerSink(c *Client, pageID string) *Sink {
	return &Sink{client: c, kind: lago.ChannelMessenger, from: "messenger:" + pageID}
}

// NewSink picks the sender for kind. It fails when the sender for that
// channel is not configured or the kind is not a Twilio channel.
func NewSink(c *Client, kind lago.ChannelKind, whatsAppNumber, pageID string) (*Sink, error) {
	switch kind {
	case lago.ChannelWhatsApp:
		if whatsAppNumber == "" {
			return nil, fmt.Errorf("twilio: whatsapp number not configured")
		}
		return NewWhatsAppSink(c, whatsAppNumber), nil
	case lago.ChannelMessenger:
		if pageID == "" {
			return nil, fmt.Errorf("twilio: facebook page id not configured")
		}
		return NewMessengerSink(c, pageID), nil
	}
	return nil, fmt.Errorf("twilio: unsupported channel %s", kind)
}

func (s *Sink) Name() string { return "twilio-" + s.kind.String() }

// Send splits long text into several messages; media goes with the first.
func (s *Sink) Send(ctx context.Context, channelID string, reply lago.Reply) error {
	chunks := splitBody(reply.Text)
	for i, chunk := range chunks {
		media := ""
		if i == 0 {
			media = reply.MediaURL
		}
		if _, err := s.client.SendMessage(ctx, s.from, channelID, chunk, media); err != nil {
			return err
		}
	}
	return nil
}

func splitBody(text string) []string {
	r := []rune(text)
	if len(r) <= maxBodyLength {
		return []string{text}
	}
	var out []string
	for len(r) > 0 {
		n := min(len(r), maxBodyLength)
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	return out
}
