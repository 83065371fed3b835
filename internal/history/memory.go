package history

import (
	"container/list"
	"context"
	"sync"
)

// Memory is a bounded in-process Store. It holds at most capacity chats and
// evicts the least recently used chat when full.
type Memory struct {
	mu       sync.Mutex
	size     int
	capacity int
	order    *list.List // front is most recently used
	chats    map[string]*list.Element
}

type chatEntry struct {
	chatID string
	msgs   []string // newest first, len <= size
}

var _ Store = (*Memory)(nil)

// NewMemory keeps size messages for each of up to capacity chats.
func NewMemory(size, capacity int) *Memory {
	if size < 1 {
		size = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		size:     size,
		capacity: capacity,
		order:    list.New(),
		chats:    make(map[string]*list.Element),
	}
}

func (m *Memory) Recent(_ context.Context, chatID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.chats[chatID]
	if !ok {
		return []string{}, nil
	}
	m.order.MoveToFront(el)
	msgs := el.Value.(*chatEntry).msgs
	return append([]string(nil), msgs...), nil
}

func (m *Memory) Add(_ context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.chats[chatID]; ok {
		e := el.Value.(*chatEntry)
		e.msgs = prepend(e.msgs, text, m.size)
		m.order.MoveToFront(el)
		return nil
	}
	m.chats[chatID] = m.order.PushFront(&chatEntry{chatID: chatID, msgs: []string{text}})
	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.chats, oldest.Value.(*chatEntry).chatID)
	}
	return nil
}

// Len returns the number of chats held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func prepend(msgs []string, text string, size int) []string {
	out := make([]string, 0, size)
	out = append(out, text)
	for _, s := range msgs {
		if len(out) == size {
			break
		}
		out = append(out, s)
	}
	return out
}
