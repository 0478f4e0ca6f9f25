package session

import (
	"context"
	"sync"
)

// tokenManager holds one cancel func per document. Starting work on a
// document cancels whatever was still running for it.
type tokenManager struct {
	mu      sync.Mutex
	next    uint64
	cancels map[string]tokenEntry
}

type tokenEntry struct {
	id     uint64
	cancel context.CancelFunc
}

func newTokenManager() *tokenManager {
	return &tokenManager{cancels: map[string]tokenEntry{}}
}

// begin derives a context for work on key. The returned func releases it and
// must always be called.
func (m *tokenManager) begin(ctx context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if prev, ok := m.cancels[key]; ok {
		prev.cancel()
	}
	m.next++
	id := m.next
	m.cancels[key] = tokenEntry{id: id, cancel: cancel}
	m.mu.Unlock()

	return ctx, func() {
		m.mu.Lock()
		if cur, ok := m.cancels[key]; ok && cur.id == id {
			delete(m.cancels, key)
		}
		m.mu.Unlock()
		cancel()
	}
}

func (m *tokenManager) cancel(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.cancels[key]; ok {
		cur.cancel()
		delete(m.cancels, key)
	}
}
