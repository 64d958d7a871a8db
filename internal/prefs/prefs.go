package prefs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coinboard/coinboard/internal/models"
)

// StorageKey is the single durable key all preferences live under.
const StorageKey = "coinboard/state"

// DefaultSaveInterval spaces out durable writes under rapid preference
// changes.
const DefaultSaveInterval = time.Second

// KV 底层键值存储，两种实现：本地文件与 Postgres
type KV interface {
	// Get returns the value for key, ok=false when absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes the value for key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
}

// Manager loads and saves UI preferences (filters and sorting only,
// never asset data) through a KV backend. Storage failures are logged
// and swallowed: a broken backend degrades to "no saved preferences".
type Manager struct {
	kv     KV
	logger *slog.Logger
}

// NewManager creates a preference manager over the given backend.
func NewManager(kv KV, logger *slog.Logger) *Manager {
	return &Manager{kv: kv, logger: logger}
}

// Load reads saved preferences. ok=false when nothing usable is stored;
// a corrupt payload is treated as absent.
func (m *Manager) Load(ctx context.Context) (models.Preferences, bool) {
	raw, found, err := m.kv.Get(ctx, StorageKey)
	if err != nil {
		m.logger.Warn("failed to load preferences", "err", err)
		return models.Preferences{}, false
	}
	if !found {
		return models.Preferences{}, false
	}

	var p models.Preferences
	if err := json.Unmarshal(raw, &p); err != nil {
		m.logger.Warn("discarding corrupt preferences", "err", err)
		return models.Preferences{}, false
	}
	return p, true
}

// Save writes the given preferences, suppressing any backend failure.
func (m *Manager) Save(ctx context.Context, p models.Preferences) {
	raw, err := json.Marshal(p)
	if err != nil {
		m.logger.Warn("failed to encode preferences", "err", err)
		return
	}
	if err := m.kv.Set(ctx, StorageKey, raw); err != nil {
		m.logger.Warn("failed to save preferences", "err", err)
	}
}

// Saver throttles preference writes triggered by store changes: at most
// one durable write per interval, with a trailing write so the last
// change always lands.
type Saver struct {
	manager  *Manager
	source   func() models.Preferences
	interval time.Duration

	mu       sync.Mutex
	lastSave time.Time
	pending  *time.Timer
	nowFn    func() time.Time
}

// NewSaver creates a throttled saver. source snapshots the current
// preferences at save time. Attach Notify to store.Subscribe.
func NewSaver(manager *Manager, source func() models.Preferences, interval time.Duration) *Saver {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &Saver{
		manager:  manager,
		source:   source,
		interval: interval,
		nowFn:    time.Now,
	}
}

// Notify records that preferences may have changed and saves now or
// schedules a trailing save, whichever the throttle window allows.
func (s *Saver) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	if now.Sub(s.lastSave) >= s.interval {
		s.lastSave = now
		go s.manager.Save(context.Background(), s.source())
		return
	}
	if s.pending != nil {
		return
	}
	wait := s.interval - now.Sub(s.lastSave)
	s.pending = time.AfterFunc(wait, func() {
		s.mu.Lock()
		s.pending = nil
		s.lastSave = s.nowFn()
		s.mu.Unlock()
		s.manager.Save(context.Background(), s.source())
	})
}

// Flush cancels any pending trailing save and writes immediately.
// Called on shutdown.
func (s *Saver) Flush() {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.lastSave = s.nowFn()
	s.mu.Unlock()
	s.manager.Save(context.Background(), s.source())
}
