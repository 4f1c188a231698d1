package api

import (
	"net/http"

	"mandi-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type APIHandler struct {
	db       *gorm.DB
	market   *services.MarketService
	forecast *services.ForecastService
	ingester *services.Ingester
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, ingester *services.Ingester) *APIHandler {
	handler := &APIHandler{
		db:       db,
		market:   services.NewMarketService(db),
		forecast: services.NewForecastService(db),
		ingester: ingester,
	}

	market := r.Group("/market")
	{
		market.GET("/", handler.GetMarketData)
		market.GET("/mandi", handler.GetMandiRates)
		market.GET("/mandi/export", handler.ExportMandiRates)
		market.GET("/districts", handler.GetDistricts)
		market.GET("/forecast", handler.GetPriceForecast)
		market.GET("/overview", handler.GetOverview)
		market.POST("/fetch", handler.TriggerFetch)
	}

	return handler
}

// GetMarketData serves the static landing snapshot shown before a crop and
// state are picked.
func (h *APIHandler) GetMarketData(c *gin.Context) {
	data := []gin.H{
		{"name": "Tomato (Today)", "price": "₹1,240 / quintal", "location": "Azadpur Mandi", "trend": "up"},
		{"name": "Potato", "price": "₹850 / quintal", "location": "Agra", "trend": "stable"},
		{"name": "Onion", "price": "₹1,100 / quintal", "location": "Nasik", "trend": "down"},
		{"name": "Cauliflower", "price": "₹600 / quintal", "location": "Local", "trend": "up"},
		{"name": "Spinach", "price": "₹400 / quintal", "location": "Local", "trend": "up"},
		{"name": "Carrot", "price": "₹950 / quintal", "location": "Haryana", "trend": "stable"},
		{"name": "Rice (Basmati)", "price": "₹3,500 / quintal", "location": "Punjab", "trend": "up"},
	}
	c.JSON(http.StatusOK, data)
}

// GetMandiRates serves the aggregated mandi view for a (crop, state) pair,
// optionally narrowed to one district.
func (h *APIHandler) GetMandiRates(c *gin.Context) {
	crop := c.Query("crop")
	state := c.Query("state")
	if crop == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "crop and state are required"})
		return
	}

	data, err := h.market.GetMandiData(crop, state, c.Query("district"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *APIHandler) GetDistricts(c *gin.Context) {
	crop := c.Query("crop")
	state := c.Query("state")
	if crop == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "crop and state are required"})
		return
	}

	districts, err := h.market.GetDistricts(crop, state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"districts": districts})
}

// GetPriceForecast serves the trailing month of daily averages plus the
// 7-day projection. Insufficient history yields an empty array, never an
// error.
func (h *APIHandler) GetPriceForecast(c *gin.Context) {
	crop := c.Query("crop")
	state := c.Query("state")
	if crop == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "crop and state are required"})
		return
	}

	points, err := h.forecast.Forecast(crop, state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *APIHandler) GetOverview(c *gin.Context) {
	state := c.Query("state")
	if state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}

	entries, err := h.market.GetOverview(state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state, "prices": entries})
}

// TriggerFetch kicks an ingestion run in the background. An optional date
// ("DD/MM/YYYY") restricts the run to that day. A run already in flight is
// refused rather than interleaved.
func (h *APIHandler) TriggerFetch(c *gin.Context) {
	if h.ingester.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "fetch already in progress"})
		return
	}

	date := c.Query("date")
	go h.ingester.FetchAll(date)
	c.JSON(http.StatusAccepted, gin.H{"status": "fetch started", "date": date})
}
