package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinboard/coinboard/internal/catalog"
	"github.com/coinboard/coinboard/internal/feed"
	"github.com/coinboard/coinboard/internal/models"
	"github.com/coinboard/coinboard/internal/store"
	"github.com/coinboard/coinboard/internal/view"
)

type fakeFeed struct {
	name    string
	running bool
}

func (f *fakeFeed) Name() string                    { return f.name }
func (f *fakeFeed) Start(ctx context.Context) error { f.running = true; return nil }
func (f *fakeFeed) Stop()                           { f.running = false }

func setupRouter(t *testing.T) (*gin.Engine, *store.Store, *fakeFeed, *fakeFeed) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.New(catalog.Assets())
	s.SetSorting(models.Sorting{}) // insertion order unless a test sorts
	sim := &fakeFeed{name: "simulated"}
	live := &fakeFeed{name: "live"}
	feeds := feed.NewManager(context.Background(), sim, live)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := gin.New()
	NewHandler(s, view.NewSelector(s), feeds, logger).RegisterRoutes(router)
	return router, s, sim, live
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListAssets(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/assets", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Assets  []models.Asset `json:"assets"`
		Filters models.Filters `json:"filters"`
		Sorting models.Sorting `json:"sorting"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Assets, 6)
	assert.Equal(t, "Bitcoin", resp.Assets[0].Name)
}

func TestGetAsset(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/assets/2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var asset models.Asset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &asset))
	assert.Equal(t, "ETH", asset.Symbol)

	w = doJSON(t, router, http.MethodGet, "/api/assets/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetFilters(t *testing.T) {
	router, s, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/filters", gin.H{
		"searchTerm": "btc",
		"minPrice":   100.0,
		"maxPrice":   2000.0,
	})
	require.Equal(t, http.StatusOK, w.Code)

	f := s.Filters()
	assert.Equal(t, "btc", f.SearchTerm)
	require.NotNil(t, f.MinPrice)
	assert.Equal(t, 100.0, *f.MinPrice)

	// the filtered view follows
	w = doJSON(t, router, http.MethodGet, "/api/assets", nil)
	var resp struct {
		Assets []models.Asset `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Assets, 1)
	assert.Equal(t, "BTC", resp.Assets[0].Symbol)
}

func TestSetFiltersPartialUpdate(t *testing.T) {
	router, s, _, _ := setupRouter(t)

	doJSON(t, router, http.MethodPut, "/api/filters", gin.H{"searchTerm": "eth"})
	doJSON(t, router, http.MethodPut, "/api/filters", gin.H{"priceChangeType": "gainers"})

	f := s.Filters()
	assert.Equal(t, "eth", f.SearchTerm, "earlier fields survive a later partial update")
	assert.Equal(t, models.PriceChangeGainers, f.PriceChangeType)
}

func TestSetFiltersInvalidChangeType(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/filters", gin.H{"priceChangeType": "movers"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetFilters(t *testing.T) {
	router, s, _, _ := setupRouter(t)
	doJSON(t, router, http.MethodPut, "/api/filters", gin.H{"searchTerm": "btc"})

	w := doJSON(t, router, http.MethodDelete, "/api/filters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Filters{}, s.Filters())
}

func TestSetSorting(t *testing.T) {
	router, s, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/sorting", gin.H{"column": "price", "direction": "asc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Sorting{Column: "price", Direction: "asc"}, s.Sorting())

	w = doJSON(t, router, http.MethodPut, "/api/sorting", gin.H{"column": "bogus", "direction": "asc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/sorting", gin.H{"column": "price", "direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCycleSorting(t *testing.T) {
	router, s, _, _ := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/api/sorting/cycle", gin.H{"column": "price"})
	assert.Equal(t, models.Sorting{Column: "price", Direction: "desc"}, s.Sorting())

	doJSON(t, router, http.MethodPost, "/api/sorting/cycle", gin.H{"column": "price"})
	assert.Equal(t, models.Sorting{Column: "price", Direction: "asc"}, s.Sorting())

	doJSON(t, router, http.MethodPost, "/api/sorting/cycle", gin.H{"column": "price"})
	assert.Equal(t, models.Sorting{}, s.Sorting())
}

func TestFeedToggle(t *testing.T) {
	router, _, sim, live := setupRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/feed", gin.H{"feed": "simulated"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sim.running)

	w = doJSON(t, router, http.MethodPut, "/api/feed", gin.H{"feed": "live"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, sim.running, "previous feed stopped before the new one runs")
	assert.True(t, live.running)

	w = doJSON(t, router, http.MethodGet, "/api/feed", nil)
	var resp struct {
		Feed string `json:"feed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "live", resp.Feed)

	w = doJSON(t, router, http.MethodPut, "/api/feed", gin.H{"feed": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
