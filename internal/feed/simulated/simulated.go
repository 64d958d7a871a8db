package simulated

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/coinboard/coinboard/internal/models"
	"github.com/coinboard/coinboard/internal/store"
)

// DefaultTick is the period between synthetic update batches.
const DefaultTick = 1500 * time.Millisecond

const (
	minPrice  = 0.01
	minVolume = 1000
)

// Feed 模拟行情源：按固定周期对每个资产做随机游走
//
// Each tick samples, per asset: a price delta uniform in ±1% of the
// current price, additive noise on the 1h/24h/7d percentage changes
// (±0.1, ±0.15, ±0.2 points) and a volume delta uniform in ±2%. One
// batched store update is emitted per tick.
type Feed struct {
	store  *store.Store
	logger *slog.Logger
	tick   time.Duration

	mu     sync.Mutex
	rng    *rand.Rand
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a simulated feed over the given store.
func New(s *store.Store, logger *slog.Logger) *Feed {
	return &Feed{
		store:  s,
		logger: logger,
		tick:   DefaultTick,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetTick overrides the tick period. Test hook; call before Start.
func (f *Feed) SetTick(d time.Duration) { f.tick = d }

// SetSource overrides the random source. Test hook; call before Start.
func (f *Feed) SetSource(src rand.Source) { f.rng = rand.New(src) }

func (f *Feed) Name() string { return "simulated" }

// Start begins the periodic tick. Returns immediately; updates are
// produced on a background goroutine until Stop or ctx cancellation.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return nil // already running
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(1)
	go f.run(ctx)

	f.logger.Info("simulated feed started", "tick", f.tick)
	return nil
}

// Stop cancels the tick and waits for the update goroutine to drain, so
// no store update is emitted after Stop returns. Idempotent.
func (f *Feed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	f.wg.Wait()
	f.logger.Info("simulated feed stopped")
}

func (f *Feed) run(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.store.UpdateAssets(f.generateBatch())
		}
	}
}

// generateBatch builds one random-walk update per asset, reading the
// previous values from the store itself.
func (f *Feed) generateBatch() []models.BatchItem {
	assets := f.store.GetAssets()
	batch := make([]models.BatchItem, 0, len(assets))

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range assets {
		price := round2(math.Max(a.Price+f.uniform(a.Price*0.01), minPrice))
		change1h := round2(a.PriceChange1h + f.uniform(0.1))
		change24h := round2(a.PriceChange24h + f.uniform(0.15))
		change7d := round2(a.PriceChange7d + f.uniform(0.2))
		volume := math.Floor(math.Max(a.Volume24h+f.uniform(a.Volume24h*0.02), minVolume))

		batch = append(batch, models.BatchItem{
			ID: a.ID,
			Update: models.AssetUpdate{
				Price:          &price,
				PriceChange1h:  &change1h,
				PriceChange24h: &change24h,
				PriceChange7d:  &change7d,
				Volume24h:      &volume,
			},
		})
	}
	return batch
}

// uniform samples from [-bound, +bound).
func (f *Feed) uniform(bound float64) float64 {
	return (f.rng.Float64()*2 - 1) * bound
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
