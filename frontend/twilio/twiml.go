package twilio

import (
	"encoding/xml"

	"github.com/lagobot/lago"
)

// ContentType is the media type of a TwiML document.
const ContentType = "application/xml"

type twimlResponse struct {
	XMLName  xml.Name       `xml:"Response"`
	Messages []twimlMessage `xml:"Message"`
}

type twimlMessage struct {
	Body  string `xml:"Body,omitempty"`
	Media string `xml:"Media,omitempty"`
}

// TwiML renders replies as a messaging response. With no replies the
// Response element is empty, which tells Twilio not to answer.
func TwiML(replies ...lago.Reply) ([]byte, error) {
	doc := twimlResponse{}
	for _, r := range replies {
		if r.Text == "" && r.MediaURL == "" {
			continue
		}
		doc.Messages = append(doc.Messages, twimlMessage{Body: r.Text, Media: r.MediaURL})
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
