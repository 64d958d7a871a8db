package view

import (
	"sort"
	"strings"
	"sync"

	"github.com/coinboard/coinboard/internal/models"
	"github.com/coinboard/coinboard/internal/store"
)

// ComputeView applies the active filters and sorting to assets and
// returns the visible list. Pure: deterministic for the same inputs and
// does not touch the input slice.
//
// Filter predicates combine with AND; the sort is stable so ties keep
// the filtered (insertion) order, and an empty sort direction leaves the
// filtered order untouched.
func ComputeView(assets []models.Asset, filters models.Filters, sorting models.Sorting) []models.Asset {
	out := make([]models.Asset, 0, len(assets))

	term := strings.ToLower(filters.SearchTerm)
	for _, a := range assets {
		if term != "" &&
			!strings.Contains(strings.ToLower(a.Name), term) &&
			!strings.Contains(strings.ToLower(a.Symbol), term) {
			continue
		}
		if filters.MinPrice != nil && a.Price < *filters.MinPrice {
			continue
		}
		if filters.MaxPrice != nil && a.Price > *filters.MaxPrice {
			continue
		}
		switch filters.PriceChangeType {
		case models.PriceChangeGainers:
			if a.PriceChange24h <= 0 {
				continue
			}
		case models.PriceChangeLosers:
			if a.PriceChange24h >= 0 {
				continue
			}
		}
		out = append(out, a)
	}

	if sorting.Direction == models.SortNone || !models.ValidColumn(sorting.Column) {
		return out
	}

	desc := sorting.Direction == models.SortDesc
	sort.SliceStable(out, func(i, j int) bool {
		less := columnLess(out[i], out[j], sorting.Column)
		if desc {
			return columnLess(out[j], out[i], sorting.Column)
		}
		return less
	})
	return out
}

func columnLess(a, b models.Asset, column string) bool {
	switch column {
	case models.ColumnName:
		return a.Name < b.Name
	case models.ColumnSymbol:
		return a.Symbol < b.Symbol
	case models.ColumnPrice:
		return a.Price < b.Price
	case models.ColumnPriceChange1h:
		return a.PriceChange1h < b.PriceChange1h
	case models.ColumnPriceChange24h:
		return a.PriceChange24h < b.PriceChange24h
	case models.ColumnPriceChange7d:
		return a.PriceChange7d < b.PriceChange7d
	case models.ColumnMarketCap:
		return a.MarketCap < b.MarketCap
	case models.ColumnVolume24h:
		return a.Volume24h < b.Volume24h
	case models.ColumnCirculatingSupply:
		return a.CirculatingSupply < b.CirculatingSupply
	}
	return false
}

// Selector memoizes ComputeView against a store. The cached result is
// reused until the store version moves, so repeated reads between
// mutations cost one version check.
type Selector struct {
	store *store.Store

	mu      sync.Mutex
	valid   bool
	version uint64
	cached  []models.Asset
}

// NewSelector creates a selector bound to one store.
func NewSelector(s *store.Store) *Selector {
	return &Selector{store: s}
}

// View returns the filtered, sorted asset list, recomputing only when
// the store has changed since the last call.
func (s *Selector) View() []models.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.valid && s.version == s.store.Version() {
		return s.cached
	}

	assets, filters, sorting, version := s.store.Snapshot()
	s.cached = ComputeView(assets, filters, sorting)
	s.version = version
	s.valid = true
	return s.cached
}
