package prefs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinboard/coinboard/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func f64(v float64) *float64 { return &v }

func TestManager_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(NewFileKV(filepath.Join(dir, "prefs.json")), discardLogger())
	ctx := context.Background()

	saved := models.Preferences{
		Filters: models.Filters{
			SearchTerm:      "btc",
			MinPrice:        f64(1),
			PriceChangeType: models.PriceChangeGainers,
		},
		Sorting: models.Sorting{Column: "price", Direction: "asc"},
	}
	m.Save(ctx, saved)

	loaded, ok := m.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, saved.Filters.SearchTerm, loaded.Filters.SearchTerm)
	require.NotNil(t, loaded.Filters.MinPrice)
	assert.Equal(t, 1.0, *loaded.Filters.MinPrice)
	assert.Nil(t, loaded.Filters.MaxPrice)
	assert.Equal(t, saved.Sorting, loaded.Sorting)
}

func TestManager_PersistedPayloadHoldsNoAssetData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.json")
	m := NewManager(NewFileKV(path), discardLogger())

	m.Save(context.Background(), models.Preferences{
		Filters: models.Filters{SearchTerm: "btc"},
		Sorting: models.Sorting{Column: "price", Direction: "asc"},
	})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &entries))
	entry, ok := entries[StorageKey]
	require.True(t, ok)
	assert.Contains(t, entry, "filters")
	assert.Contains(t, entry, "sorting")
	assert.NotContains(t, entry, "assets")
}

func TestManager_LoadMissing(t *testing.T) {
	m := NewManager(NewFileKV(filepath.Join(t.TempDir(), "absent.json")), discardLogger())

	_, ok := m.Load(context.Background())
	assert.False(t, ok)
}

func TestManager_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json at all", payload: "{{{"},
		{name: "wrong value shape", payload: `{"coinboard/state": [1, 2, 3]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prefs.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.payload), 0o644))

			m := NewManager(NewFileKV(path), discardLogger())
			_, ok := m.Load(context.Background())
			assert.False(t, ok, "corrupt payload is treated as absent")
		})
	}
}

func TestManager_SaveFailureIsSwallowed(t *testing.T) {
	// a directory at the target path makes every write fail
	dir := t.TempDir()
	m := NewManager(NewFileKV(dir), discardLogger())

	assert.NotPanics(t, func() {
		m.Save(context.Background(), models.Preferences{})
	})
	_, ok := m.Load(context.Background())
	assert.False(t, ok)
}

// recordingKV counts Set calls for throttle tests.
type recordingKV struct {
	mu   sync.Mutex
	sets int
	last []byte
}

func (r *recordingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil, false, nil
	}
	return r.last, true, nil
}

func (r *recordingKV) Set(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets++
	r.last = append([]byte(nil), value...)
	return nil
}

func (r *recordingKV) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sets
}

func TestSaver_ThrottlesBursts(t *testing.T) {
	kv := &recordingKV{}
	m := NewManager(kv, discardLogger())

	current := models.Preferences{Sorting: models.Sorting{Column: "price", Direction: "desc"}}
	saver := NewSaver(m, func() models.Preferences { return current }, 50*time.Millisecond)

	// a burst of changes within one interval
	for i := 0; i < 10; i++ {
		saver.Notify()
	}

	// leading save only, so far
	require.Eventually(t, func() bool { return kv.count() == 1 }, time.Second, time.Millisecond)

	// trailing save lands once the interval has passed
	require.Eventually(t, func() bool { return kv.count() == 2 }, time.Second, 5*time.Millisecond)

	// quiet period: no further writes
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 2, kv.count())
}

func TestSaver_FlushWritesImmediately(t *testing.T) {
	kv := &recordingKV{}
	m := NewManager(kv, discardLogger())

	current := models.Preferences{Filters: models.Filters{SearchTerm: "sol"}}
	saver := NewSaver(m, func() models.Preferences { return current }, time.Hour)

	saver.Notify() // leading save
	require.Eventually(t, func() bool { return kv.count() == 1 }, time.Second, time.Millisecond)

	saver.Notify() // throttled, schedules a trailing save an hour away
	saver.Flush()  // cancels it and writes now

	assert.Equal(t, 2, kv.count())

	loaded, ok := m.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "sol", loaded.Filters.SearchTerm)
}
