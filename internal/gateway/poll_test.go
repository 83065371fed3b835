package gateway

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/lagobot/lago"
)

type chanPoller struct {
	ch     chan lago.IncomingMessage
	typing atomic.Int32
}

func (p *chanPoller) Poll(context.Context) (<-chan lago.IncomingMessage, error) { return p.ch, nil }

func (p *chanPoller) SendTyping(context.Context, string) error {
	p.typing.Add(1)
	return nil
}

func TestRunPoller_RepliesThroughSink(t *testing.T) {
	sink := newRecordingSink()
	g, _, _ := newTestGateway(&scriptedLLM{chat: "hello"}, WithTransport(lago.ChannelTelegram, Transport{Sink: sink}))
	p := &chanPoller{ch: make(chan lago.IncomingMessage, 2)}
	p.ch <- text("1", "hi")
	p.ch <- text("2", "hey")
	close(p.ch)

	if err := g.RunPoller(context.Background(), p); err != nil {
		t.Fatalf("RunPoller: %v", err)
	}
	for _, chat := range []string{"1", "2"} {
		got := sink.get(chat)
		if len(got) != 1 || got[0].Text != "hello" {
			t.Errorf("chat %s got %+v", chat, got)
		}
	}
	if n := p.typing.Load(); n != 2 {
		t.Errorf("typing sent %d times, want 2", n)
	}
}

func TestRunPoller_StopsOnCancel(t *testing.T) {
	g, _, _ := newTestGateway(&scriptedLLM{})
	p := &chanPoller{ch: make(chan lago.IncomingMessage)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.RunPoller(ctx, p); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
