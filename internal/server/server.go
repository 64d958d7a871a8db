package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coinboard/coinboard/internal/feed"
	"github.com/coinboard/coinboard/internal/models"
	"github.com/coinboard/coinboard/internal/store"
	"github.com/coinboard/coinboard/internal/view"
)

// Handler serves the dashboard HTTP API the browser UI talks to.
type Handler struct {
	store    *store.Store
	selector *view.Selector
	feeds    *feed.Manager
	logger   *slog.Logger
}

// NewHandler wires the API over the given store, selector and feed
// manager.
func NewHandler(s *store.Store, selector *view.Selector, feeds *feed.Manager, logger *slog.Logger) *Handler {
	return &Handler{store: s, selector: selector, feeds: feeds, logger: logger}
}

// RegisterRoutes binds the handler to a gin engine.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/assets", h.ListAssets)
		api.GET("/assets/:id", h.GetAsset)
		api.PUT("/filters", h.SetFilters)
		api.DELETE("/filters", h.ResetFilters)
		api.PUT("/sorting", h.SetSorting)
		api.POST("/sorting/cycle", h.CycleSorting)
		api.GET("/feed", h.GetFeed)
		api.PUT("/feed", h.SetFeed)
	}
}

// ListAssets returns the filtered, sorted view plus the filter and
// sorting state that produced it.
func (h *Handler) ListAssets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"assets":  h.selector.View(),
		"filters": h.store.Filters(),
		"sorting": h.store.Sorting(),
	})
}

// GetAsset returns one asset by id.
func (h *Handler) GetAsset(c *gin.Context) {
	var uri struct {
		ID int `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}

	asset, ok := h.store.GetAsset(uri.ID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, asset)
}

type filtersRequest struct {
	SearchTerm      *string  `json:"searchTerm"`
	MinPrice        *float64 `json:"minPrice"`
	MaxPrice        *float64 `json:"maxPrice"`
	PriceChangeType *string  `json:"priceChangeType"`
}

// SetFilters applies a partial filter update. Absent fields keep their
// current value; minPrice/maxPrice are replaced as a pair when either
// is present.
func (h *Handler) SetFilters(c *gin.Context) {
	var req filtersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.SearchTerm != nil {
		h.store.SetSearchTerm(*req.SearchTerm)
	}
	if req.MinPrice != nil || req.MaxPrice != nil {
		h.store.SetPriceRange(req.MinPrice, req.MaxPrice)
	}
	if req.PriceChangeType != nil {
		switch t := models.PriceChangeType(*req.PriceChangeType); t {
		case models.PriceChangeNone, models.PriceChangeGainers, models.PriceChangeLosers:
			h.store.SetPriceChangeType(t)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid priceChangeType"})
			return
		}
	}

	c.JSON(http.StatusOK, h.store.Filters())
}

// ResetFilters restores the empty filter state.
func (h *Handler) ResetFilters(c *gin.Context) {
	h.store.ResetFilters()
	c.JSON(http.StatusOK, h.store.Filters())
}

// SetSorting sets an explicit sort column and direction.
func (h *Handler) SetSorting(c *gin.Context) {
	var req models.Sorting
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Column != "" && !models.ValidColumn(req.Column) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sort column"})
		return
	}
	switch req.Direction {
	case models.SortAsc, models.SortDesc, models.SortNone:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sort direction"})
		return
	}

	h.store.SetSorting(req)
	c.JSON(http.StatusOK, h.store.Sorting())
}

// CycleSorting advances the desc -> asc -> none cycle for one column
// header activation.
func (h *Handler) CycleSorting(c *gin.Context) {
	var req struct {
		Column string `json:"column" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidColumn(req.Column) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sort column"})
		return
	}

	c.JSON(http.StatusOK, h.store.CycleSorting(req.Column))
}

// GetFeed reports which feed is running.
func (h *Handler) GetFeed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feed": h.feeds.Active()})
}

// SetFeed switches between the simulated and live feeds. The previous
// feed is stopped before the new one starts.
func (h *Handler) SetFeed(c *gin.Context) {
	var req struct {
		Feed string `json:"feed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.feeds.Switch(req.Feed); err != nil {
		h.logger.Error("failed to switch feed", "feed", req.Feed, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed": h.feeds.Active()})
}
