package lago

import "context"

// Sink delivers replies to a chat channel. Implementations exist for
// Telegram, Twilio WhatsApp, Twilio Messenger and the terminal.
type Sink interface {
	// Send delivers reply to channelID. The call returns once the message
	// has been handed to the transport.
	Send(ctx context.Context, channelID string, reply Reply) error
	// Name returns the sink name used in logs.
	Name() string
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, channelID string, reply Reply) error

func (f SinkFunc) Send(ctx context.Context, channelID string, reply Reply) error {
	return f(ctx, channelID, reply)
}

func (f SinkFunc) Name() string { return "func" }
