package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/go-resty/resty/v2"

	"github.com/coinboard/coinboard/internal/catalog"
	"github.com/coinboard/coinboard/internal/models"
	"github.com/coinboard/coinboard/internal/store"
	"github.com/coinboard/coinboard/internal/utils/request"
)

// DefaultReconnectDelay is the fixed wait before a dropped stream is
// reopened. Reconnect attempts are unbounded with no backoff growth.
const DefaultReconnectDelay = 5 * time.Second

const quoteSuffix = "USDT"

// State is the live feed connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "idle"
	}
}

// streamFunc opens the combined ticker stream. Matches the signature of
// binance.WsCombinedMarketStatServe so tests can substitute a fake.
type streamFunc func(symbols []string, handler binance.WsMarketStatHandler, errHandler binance.ErrHandler) (doneC, stopC chan struct{}, err error)

// symbolState 每个交易对上一次已知的派生指标
type symbolState struct {
	price    float64
	change1h float64
	change7d float64
	supply   float64
}

// Feed 实时行情源：REST 快照 + 币安组合 ticker 流
//
// Startup runs a per-symbol snapshot phase (current price plus 24h
// statistics, fetched concurrently) and then opens one combined stream
// multiplexing all tracked symbols. Snapshot failures are non-fatal.
// On any transport failure the stream is reopened after a fixed delay,
// with at most one reconnect timer pending at a time.
type Feed struct {
	store          *store.Store
	logger         *slog.Logger
	symbols        []string
	baseURL        string
	httpClient     *resty.Client
	stream         streamFunc
	reconnectDelay time.Duration

	mu             sync.Mutex
	gen            uint64 // bumped每次 Start，旧会话的迟到回调据此丢弃
	active         bool
	state          State
	session        map[string]*symbolState
	stopStream     chan struct{}
	reconnectTimer *time.Timer
	rng            *rand.Rand
	snapWG         sync.WaitGroup
}

// New creates a live feed over the given store, tracking the given
// exchange trading pairs (e.g. "BTCUSDT").
func New(s *store.Store, symbols []string, logger *slog.Logger) *Feed {
	if len(symbols) == 0 {
		symbols = catalog.StreamSymbols()
	}
	return &Feed{
		store:          s,
		logger:         logger,
		symbols:        symbols,
		baseURL:        "https://api.binance.com",
		httpClient:     request.Request,
		stream:         wsCombinedMarketStatServe,
		reconnectDelay: DefaultReconnectDelay,
		state:          StateIdle,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func wsCombinedMarketStatServe(symbols []string, handler binance.WsMarketStatHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsCombinedMarketStatServe(symbols, handler, errHandler)
}

func (f *Feed) Name() string { return "live" }

// State returns the current connection state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Start runs the snapshot phase in the background and opens the stream.
// A failed stream open is not an error: a reconnect is scheduled and
// retried until Stop.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return nil
	}
	f.gen++
	gen := f.gen
	f.active = true
	f.state = StateConnecting
	f.session = make(map[string]*symbolState, len(f.symbols))
	f.mu.Unlock()

	for _, symbol := range f.symbols {
		f.snapWG.Add(1)
		go func(symbol string) {
			defer f.snapWG.Done()
			f.fetchSnapshot(ctx, gen, symbol)
		}(symbol)
	}

	f.connect(gen)
	return nil
}

// Stop closes the stream, cancels any pending reconnect and marks the
// session inactive so in-flight snapshot responses and stream messages
// become no-ops. No store update is emitted after Stop returns.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.active = false
	f.state = StateIdle
	f.session = nil
	if f.reconnectTimer != nil {
		f.reconnectTimer.Stop()
		f.reconnectTimer = nil
	}
	stopStream := f.stopStream
	f.stopStream = nil
	f.mu.Unlock()

	if stopStream != nil {
		close(stopStream)
	}
	f.logger.Info("live feed stopped")
}

// connect opens the combined stream for the given session generation.
func (f *Feed) connect(gen uint64) {
	f.mu.Lock()
	if !f.active || gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.state = StateConnecting
	if f.reconnectTimer != nil {
		f.reconnectTimer.Stop()
		f.reconnectTimer = nil
	}
	f.mu.Unlock()

	doneC, stopC, err := f.stream(f.symbols,
		func(event *binance.WsMarketStatEvent) { f.handleTicker(gen, event) },
		func(err error) { f.logger.Warn("stream message error", "err", err) },
	)
	if err != nil {
		f.logger.Warn("failed to open stream", "err", err)
		f.scheduleReconnect(gen)
		return
	}

	f.mu.Lock()
	if !f.active || gen != f.gen {
		// stopped while dialing
		f.mu.Unlock()
		close(stopC)
		return
	}
	f.stopStream = stopC
	f.state = StateStreaming
	f.mu.Unlock()

	f.logger.Info("live feed streaming", "symbols", len(f.symbols))

	go func() {
		<-doneC
		f.scheduleReconnect(gen)
	}()
}

// scheduleReconnect arms the fixed-delay reconnect timer unless one is
// already pending or the session is gone.
func (f *Feed) scheduleReconnect(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active || gen != f.gen || f.reconnectTimer != nil {
		return
	}
	f.state = StateReconnecting
	f.stopStream = nil
	f.logger.Warn("stream down, reconnecting", "delay", f.reconnectDelay)
	f.reconnectTimer = time.AfterFunc(f.reconnectDelay, func() {
		f.mu.Lock()
		f.reconnectTimer = nil
		f.mu.Unlock()
		f.connect(gen)
	})
}

// fetchSnapshot issues the two REST calls for one symbol and applies the
// derived initial update. Failures are logged and skipped; streaming
// proceeds with whatever part of the snapshot succeeded.
func (f *Feed) fetchSnapshot(ctx context.Context, gen uint64, symbol string) {
	price, err := f.fetchPrice(ctx, symbol)
	if err != nil {
		f.logger.Warn("snapshot price fetch failed", "symbol", symbol, "err", err)
		return
	}
	change24h, quoteVolume, err := f.fetch24hStats(ctx, symbol)
	if err != nil {
		f.logger.Warn("snapshot stats fetch failed", "symbol", symbol, "err", err)
		return
	}
	f.applySnapshot(gen, symbol, price, change24h, quoteVolume)
}

func (f *Feed) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", f.baseURL, strings.ToUpper(symbol))

	resp, err := f.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(resp.Body(), &ticker); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price: %w", err)
	}
	return price, nil
}

func (f *Feed) fetch24hStats(ctx context.Context, symbol string) (change24h, quoteVolume float64, err error) {
	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", f.baseURL, strings.ToUpper(symbol))

	resp, err := f.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var stats struct {
		PriceChangePercent string `json:"priceChangePercent"`
		QuoteVolume        string `json:"quoteVolume"`
	}
	if err := json.Unmarshal(resp.Body(), &stats); err != nil {
		return 0, 0, fmt.Errorf("failed to decode response: %w", err)
	}

	change24h, err = strconv.ParseFloat(stats.PriceChangePercent, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse price change: %w", err)
	}
	quoteVolume, err = strconv.ParseFloat(stats.QuoteVolume, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse quote volume: %w", err)
	}
	return change24h, quoteVolume, nil
}

// applySnapshot derives the initial metrics for one symbol and writes
// them to the store. The 1h estimate is ~1/24 of the 24h change and the
// 7d estimate ~3.5x of it, each with small random jitter; market cap is
// price times the catalog circulating supply.
func (f *Feed) applySnapshot(gen uint64, symbol string, price, change24h, quoteVolume float64) {
	base := baseSymbol(symbol)
	asset, ok := f.store.FindBySymbol(base)
	if !ok {
		return // not in the catalog, silently skipped
	}
	supply, ok := catalog.SupplyBySymbol(base)
	if !ok {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active || gen != f.gen {
		return // late response after Stop
	}

	change1h := round2(change24h/24 + f.jitter(0.2))
	change7d := round2(change24h*3.5 + f.jitter(1))
	marketCap := price * supply

	f.session[strings.ToUpper(symbol)] = &symbolState{
		price:    price,
		change1h: change1h,
		change7d: change7d,
		supply:   supply,
	}

	change24h = round2(change24h)
	f.store.UpdateAsset(asset.ID, models.AssetUpdate{
		Price:             &price,
		PriceChange1h:     &change1h,
		PriceChange24h:    &change24h,
		PriceChange7d:     &change7d,
		Volume24h:         &quoteVolume,
		MarketCap:         &marketCap,
		CirculatingSupply: &supply,
	})
}

// handleTicker maps one inbound stream message to a store update,
// keeping a damped running estimate of the 1h/7d changes.
func (f *Feed) handleTicker(gen uint64, event *binance.WsMarketStatEvent) {
	if event == nil || event.Symbol == "" {
		return
	}

	lastPrice, err := strconv.ParseFloat(event.LastPrice, 64)
	if err != nil {
		f.logger.Warn("dropping malformed ticker", "symbol", event.Symbol, "err", err)
		return
	}
	change24h, err := strconv.ParseFloat(event.PriceChangePercent, 64)
	if err != nil {
		f.logger.Warn("dropping malformed ticker", "symbol", event.Symbol, "err", err)
		return
	}
	quoteVolume, err := strconv.ParseFloat(event.QuoteVolume, 64)
	if err != nil {
		f.logger.Warn("dropping malformed ticker", "symbol", event.Symbol, "err", err)
		return
	}

	asset, ok := f.store.FindBySymbol(baseSymbol(event.Symbol))
	if !ok {
		return // unmatched symbol, dropped
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active || gen != f.gen {
		return
	}

	key := strings.ToUpper(event.Symbol)
	sess := f.session[key]
	if sess == nil {
		// first message before any snapshot for this symbol landed
		sess = &symbolState{
			price:    lastPrice,
			change7d: change24h * 3.5,
			supply:   asset.CirculatingSupply,
		}
		f.session[key] = sess
	}

	priceDelta := lastPrice - sess.price
	change1h := sess.change1h
	change7d := sess.change7d
	if sess.price != 0 {
		// amplified so slow intraday drift stays visible
		change1h += (priceDelta / sess.price) * 25
		change7d += (priceDelta / sess.price) * 5
	}
	change1h = round2(change1h)
	change7d = round2(change7d)
	marketCap := lastPrice * sess.supply

	sess.price = lastPrice
	sess.change1h = change1h
	sess.change7d = change7d

	change24h = round2(change24h)
	f.store.UpdateAsset(asset.ID, models.AssetUpdate{
		Price:             &lastPrice,
		PriceChange1h:     &change1h,
		PriceChange24h:    &change24h,
		PriceChange7d:     &change7d,
		Volume24h:         &quoteVolume,
		MarketCap:         &marketCap,
		CirculatingSupply: &sess.supply,
	})
}

// jitter samples from [-bound, +bound). Caller holds f.mu.
func (f *Feed) jitter(bound float64) float64 {
	return (f.rng.Float64()*2 - 1) * bound
}

// baseSymbol strips the quote-currency suffix from an exchange pair,
// e.g. "BTCUSDT" -> "BTC".
func baseSymbol(symbol string) string {
	return strings.TrimSuffix(strings.ToUpper(symbol), quoteSuffix)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
