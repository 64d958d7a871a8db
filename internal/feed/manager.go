package feed

import (
	"context"
	"fmt"
	"sync"
)

// Manager owns the registered feeds and enforces that at most one is
// running. Switching stops the previous feed synchronously before the
// next one starts, so no update from the old feed can land after the
// switch.
type Manager struct {
	ctx    context.Context // base lifetime for started feeds
	mu     sync.Mutex
	feeds  map[string]Feed
	active Feed
}

// NewManager registers the given feeds by name. ctx bounds the lifetime
// of every feed the manager starts.
func NewManager(ctx context.Context, feeds ...Feed) *Manager {
	m := &Manager{ctx: ctx, feeds: make(map[string]Feed, len(feeds))}
	for _, f := range feeds {
		m.feeds[f.Name()] = f
	}
	return m
}

// Active returns the name of the running feed, or "" if none.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.Name()
}

// Switch stops the currently running feed, if any, then starts the feed
// registered under name. Switching to the already-active feed is a no-op.
func (m *Manager) Switch(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := m.feeds[name]
	if !ok {
		return fmt.Errorf("unknown feed: %s", name)
	}
	if m.active == next {
		return nil
	}
	if m.active != nil {
		m.active.Stop()
		m.active = nil
	}
	if err := next.Start(m.ctx); err != nil {
		return fmt.Errorf("failed to start feed %s: %w", name, err)
	}
	m.active = next
	return nil
}

// StopAll stops the running feed, if any.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		m.active.Stop()
		m.active = nil
	}
}
