package catalog

import (
	"strings"
	"time"

	"github.com/coinboard/coinboard/internal/models"
)

// seed 静态资产目录，应用启动时的基线数据
var seed = []models.Asset{
	{
		ID:                1,
		Name:              "Bitcoin",
		Symbol:            "BTC",
		Price:             959.48,
		PriceChange1h:     0.43,
		PriceChange24h:    0.93,
		PriceChange7d:     11.11,
		MarketCap:         1861618902186,
		Volume24h:         43874950947,
		CirculatingSupply: 19.85,
	},
	{
		ID:                2,
		Name:              "Ethereum",
		Symbol:            "ETH",
		Price:             182.46,
		PriceChange1h:     0.60,
		PriceChange24h:    3.21,
		PriceChange7d:     13.68,
		MarketCap:         217581279327,
		Volume24h:         23547469307,
		CirculatingSupply: 120.71,
	},
	{
		ID:                3,
		Name:              "Tether",
		Symbol:            "USDT",
		Price:             1.00,
		PriceChange1h:     0.00,
		PriceChange24h:    0.00,
		PriceChange7d:     0.04,
		MarketCap:         145320022085,
		Volume24h:         92288882007,
		CirculatingSupply: 145.27,
	},
	{
		ID:                4,
		Name:              "XRP",
		Symbol:            "XRP",
		Price:             2,
		PriceChange1h:     0.46,
		PriceChange24h:    0.54,
		PriceChange7d:     6.18,
		MarketCap:         130073814966,
		Volume24h:         5131481491,
		CirculatingSupply: 58.39,
	},
	{
		ID:                5,
		Name:              "BNB",
		Symbol:            "BNB",
		Price:             6.65,
		PriceChange1h:     0.09,
		PriceChange24h:    -1.20,
		PriceChange7d:     3.73,
		MarketCap:         85471956947,
		Volume24h:         1874281784,
		CirculatingSupply: 140.89,
	},
	{
		ID:                6,
		Name:              "Solana",
		Symbol:            "SOL",
		Price:             15.50,
		PriceChange1h:     0.21,
		PriceChange24h:    1.32,
		PriceChange7d:     5.67,
		MarketCap:         64283719456,
		Volume24h:         2148392714,
		CirculatingSupply: 512.23,
	},
}

// Assets returns a fresh copy of the static catalog with LastUpdated
// stamped at call time. The set is fixed for the lifetime of the process;
// feeds only ever mutate the market fields in place through the store.
func Assets() []models.Asset {
	now := time.Now()
	out := make([]models.Asset, len(seed))
	copy(out, seed)
	for i := range out {
		out[i].LastUpdated = now
	}
	return out
}

// SupplyBySymbol returns the circulating supply for a catalog symbol,
// matched case-insensitively. Unknown symbols report ok=false.
func SupplyBySymbol(symbol string) (float64, bool) {
	for _, a := range seed {
		if strings.EqualFold(a.Symbol, symbol) {
			return a.CirculatingSupply, true
		}
	}
	return 0, false
}

// StreamSymbols returns the default exchange trading pairs for the live
// feed: every catalog symbol against USDT, minus USDT itself.
func StreamSymbols() []string {
	out := make([]string, 0, len(seed))
	for _, a := range seed {
		if a.Symbol == "USDT" {
			continue
		}
		out = append(out, a.Symbol+"USDT")
	}
	return out
}
