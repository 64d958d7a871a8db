package models

import "time"

// Asset 单个追踪的加密资产
type Asset struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	Symbol            string    `json:"symbol"`
	Price             float64   `json:"price"`
	PriceChange1h     float64   `json:"priceChange1h"`
	PriceChange24h    float64   `json:"priceChange24h"`
	PriceChange7d     float64   `json:"priceChange7d"`
	MarketCap         float64   `json:"marketCap"`
	Volume24h         float64   `json:"volume24h"`
	CirculatingSupply float64   `json:"circulatingSupply"`
	PriceHistory      []float64 `json:"priceHistory,omitempty"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// AssetUpdate is a partial update applied to one asset. Nil fields are
// left untouched by the store.
type AssetUpdate struct {
	Price             *float64 `json:"price,omitempty"`
	PriceChange1h     *float64 `json:"priceChange1h,omitempty"`
	PriceChange24h    *float64 `json:"priceChange24h,omitempty"`
	PriceChange7d     *float64 `json:"priceChange7d,omitempty"`
	MarketCap         *float64 `json:"marketCap,omitempty"`
	Volume24h         *float64 `json:"volume24h,omitempty"`
	CirculatingSupply *float64 `json:"circulatingSupply,omitempty"`
}

// BatchItem pairs an asset id with its partial update inside one batch.
type BatchItem struct {
	ID     int         `json:"id"`
	Update AssetUpdate `json:"update"`
}

// PriceChangeType 涨跌过滤类型
type PriceChangeType string

const (
	PriceChangeNone    PriceChangeType = ""
	PriceChangeGainers PriceChangeType = "gainers"
	PriceChangeLosers  PriceChangeType = "losers"
)

// Filters 用户过滤条件
type Filters struct {
	SearchTerm      string          `json:"searchTerm"`
	MinPrice        *float64        `json:"minPrice"`
	MaxPrice        *float64        `json:"maxPrice"`
	PriceChangeType PriceChangeType `json:"priceChangeType"`
}

// Sort directions. The empty direction means "leave the filtered order as is".
const (
	SortAsc  = "asc"
	SortDesc = "desc"
	SortNone = ""
)

// Sortable column identifiers, matching the asset JSON field names so the
// browser can persist and replay them verbatim.
const (
	ColumnName              = "name"
	ColumnSymbol            = "symbol"
	ColumnPrice             = "price"
	ColumnPriceChange1h     = "priceChange1h"
	ColumnPriceChange24h    = "priceChange24h"
	ColumnPriceChange7d     = "priceChange7d"
	ColumnMarketCap         = "marketCap"
	ColumnVolume24h         = "volume24h"
	ColumnCirculatingSupply = "circulatingSupply"
)

// Sorting 排序状态
type Sorting struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// Cycle returns the next sorting state after activating a column header:
// none -> desc -> asc -> none. Activating a different column starts the
// cycle over at desc.
func (s Sorting) Cycle(column string) Sorting {
	if s.Column != column {
		return Sorting{Column: column, Direction: SortDesc}
	}
	switch s.Direction {
	case SortDesc:
		return Sorting{Column: column, Direction: SortAsc}
	case SortAsc:
		return Sorting{}
	default:
		return Sorting{Column: column, Direction: SortDesc}
	}
}

// ValidColumn reports whether column names a sortable asset field.
func ValidColumn(column string) bool {
	switch column {
	case ColumnName, ColumnSymbol, ColumnPrice,
		ColumnPriceChange1h, ColumnPriceChange24h, ColumnPriceChange7d,
		ColumnMarketCap, ColumnVolume24h, ColumnCirculatingSupply:
		return true
	}
	return false
}

// Preferences 持久化的界面偏好，只包含过滤与排序，绝不包含资产数据
type Preferences struct {
	Filters Filters `json:"filters"`
	Sorting Sorting `json:"sorting"`
}
