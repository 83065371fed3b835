package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/lagobot/lago"
)

// Poller is a long-polling message source such as *telegram.Bot.
type Poller interface {
	Poll(ctx context.Context) (<-chan lago.IncomingMessage, error)
}

// typer is implemented by transports that can show a typing indicator.
type typer interface {
	SendTyping(ctx context.Context, chatID string) error
}

// RunPoller feeds messages from src through the gateway and delivers each
// reply with the sink registered for the message's channel. It returns when
// ctx is cancelled or src closes its channel, after in-flight messages are
// answered.
func (g *Gateway) RunPoller(ctx context.Context, src Poller) error {
	msgs, err := src.Poll(ctx)
	if err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	g.logger.Info("gateway: polling")

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("gateway: polling stopped")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				g.respond(ctx, src, msg)
			}()
		}
	}
}

func (g *Gateway) respond(ctx context.Context, src Poller, msg lago.IncomingMessage) {
	if t, ok := src.(typer); ok {
		_ = t.SendTyping(ctx, msg.ChatID)
	}
	reply := g.Handle(ctx, msg)
	if reply.Empty() {
		return
	}
	sink := g.Sink(msg.Channel)
	if sink == nil {
		g.logger.Warn("gateway: no sink for channel", "channel", msg.Channel.String(), "chat_id", msg.ChatID)
		return
	}
	if err := sink.Send(ctx, msg.ChatID, reply); err != nil {
		g.logger.Warn("gateway: reply failed", "channel", msg.Channel.String(), "chat_id", msg.ChatID, "error", err)
	}
}
