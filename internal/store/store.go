package store

import (
	"strings"
	"sync"
	"time"

	"github.com/coinboard/coinboard/internal/models"
)

// historyLimit bounds the per-asset price history ring fed to the UI's
// mini chart.
const historyLimit = 30

// Store 持有当前资产集合与用户的过滤/排序状态
//
// The asset set is seeded once at construction; UpdateAsset and
// UpdateAssets mutate market fields in place and never add or remove
// assets. Readers always observe complete asset records: every mutation
// runs to completion under the lock before any snapshot is taken.
type Store struct {
	mu       sync.RWMutex
	assets   []models.Asset
	index    map[int]int // asset id -> position in assets
	filters  models.Filters
	sorting  models.Sorting
	version  uint64
	nowFn    func() time.Time
	listener []func()
}

// New creates a store seeded with the given assets. Insertion order is
// preserved and is the order GetAssets reports.
func New(seed []models.Asset) *Store {
	s := &Store{
		assets: make([]models.Asset, len(seed)),
		index:  make(map[int]int, len(seed)),
		sorting: models.Sorting{
			Column:    models.ColumnMarketCap,
			Direction: models.SortDesc,
		},
		nowFn: time.Now,
	}
	copy(s.assets, seed)
	for i, a := range s.assets {
		s.index[a.ID] = i
	}
	return s
}

// SetNowFunc overrides the clock used for LastUpdated stamps. Test hook.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	s.nowFn = fn
	s.mu.Unlock()
}

// GetAssets returns a copy of all assets in insertion order.
func (s *Store) GetAssets() []models.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Asset, len(s.assets))
	copy(out, s.assets)
	return out
}

// GetAsset returns the asset with the given id.
func (s *Store) GetAsset(id int) (models.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Asset{}, false
	}
	return s.assets[i], true
}

// FindBySymbol returns the asset whose ticker symbol matches,
// case-insensitively. Feeds use it to map exchange symbols onto catalog
// entries.
func (s *Store) FindBySymbol(symbol string) (models.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assets {
		if strings.EqualFold(a.Symbol, symbol) {
			return a, true
		}
	}
	return models.Asset{}, false
}

// Filters returns the current filter state.
func (s *Store) Filters() models.Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// Sorting returns the current sorting state.
func (s *Store) Sorting() models.Sorting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorting
}

// Version returns a counter bumped on every mutation. The view selector
// uses it to decide whether its cached result is still valid.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns assets, filters, sorting and the version they belong
// to in one consistent read.
func (s *Store) Snapshot() ([]models.Asset, models.Filters, models.Sorting, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Asset, len(s.assets))
	copy(out, s.assets)
	return out, s.filters, s.sorting, s.version
}

// UpdateAsset merges the given partial update into the asset matching id
// and stamps LastUpdated. Unknown ids are a no-op.
func (s *Store) UpdateAsset(id int, update models.AssetUpdate) {
	s.mu.Lock()
	changed := s.applyLocked(id, update)
	if changed {
		s.version++
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// UpdateAssets applies a batch of partial updates. The whole batch runs
// under one lock acquisition, so readers either see the state before the
// batch or after it, never an asset mid-merge.
func (s *Store) UpdateAssets(batch []models.BatchItem) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	changed := false
	for _, item := range batch {
		if s.applyLocked(item.ID, item.Update) {
			changed = true
		}
	}
	if changed {
		s.version++
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Store) applyLocked(id int, u models.AssetUpdate) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	a := &s.assets[i]
	if u.Price != nil {
		a.Price = *u.Price
		a.PriceHistory = append(a.PriceHistory, *u.Price)
		if len(a.PriceHistory) > historyLimit {
			a.PriceHistory = a.PriceHistory[len(a.PriceHistory)-historyLimit:]
		}
	}
	if u.PriceChange1h != nil {
		a.PriceChange1h = *u.PriceChange1h
	}
	if u.PriceChange24h != nil {
		a.PriceChange24h = *u.PriceChange24h
	}
	if u.PriceChange7d != nil {
		a.PriceChange7d = *u.PriceChange7d
	}
	if u.MarketCap != nil {
		a.MarketCap = *u.MarketCap
	}
	if u.Volume24h != nil {
		a.Volume24h = *u.Volume24h
	}
	if u.CirculatingSupply != nil {
		a.CirculatingSupply = *u.CirculatingSupply
	}
	a.LastUpdated = s.nowFn()
	return true
}

// SetSearchTerm sets the substring filter matched against name or symbol.
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	s.filters.SearchTerm = term
	s.version++
	s.mu.Unlock()
	s.notify()
}

// SetPriceRange sets the inclusive price bounds. Nil means unbounded.
func (s *Store) SetPriceRange(min, max *float64) {
	s.mu.Lock()
	s.filters.MinPrice = min
	s.filters.MaxPrice = max
	s.version++
	s.mu.Unlock()
	s.notify()
}

// SetPriceChangeType sets the gainers/losers filter.
func (s *Store) SetPriceChangeType(t models.PriceChangeType) {
	s.mu.Lock()
	s.filters.PriceChangeType = t
	s.version++
	s.mu.Unlock()
	s.notify()
}

// SetFilters replaces the whole filter state at once. Used when seeding
// from saved preferences.
func (s *Store) SetFilters(f models.Filters) {
	s.mu.Lock()
	s.filters = f
	s.version++
	s.mu.Unlock()
	s.notify()
}

// ResetFilters restores the empty filter state. Idempotent.
func (s *Store) ResetFilters() {
	s.mu.Lock()
	s.filters = models.Filters{}
	s.version++
	s.mu.Unlock()
	s.notify()
}

// SetSorting sets the sort column and direction.
func (s *Store) SetSorting(sorting models.Sorting) {
	s.mu.Lock()
	s.sorting = sorting
	s.version++
	s.mu.Unlock()
	s.notify()
}

// CycleSorting advances the three-state sort cycle for a column header
// activation and returns the resulting state.
func (s *Store) CycleSorting(column string) models.Sorting {
	s.mu.Lock()
	s.sorting = s.sorting.Cycle(column)
	next := s.sorting
	s.version++
	s.mu.Unlock()
	s.notify()
	return next
}

// Subscribe registers a callback invoked after every store mutation.
// Callbacks run synchronously on the mutating goroutine and must not
// call back into the store's write API.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.listener = append(s.listener, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]func(), len(s.listener))
	copy(listeners, s.listener)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}
