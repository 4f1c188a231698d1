package main

import (
	"log"
	"net/http"

	"mandi-tracker/internal/api"
	"mandi-tracker/internal/config"
	"mandi-tracker/internal/database"
	"mandi-tracker/internal/services"
	"mandi-tracker/internal/services/ogd"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	if cfg.OGDAPIKey == "" {
		log.Println("⚠️  OGD API key not configured; ingestion will be skipped")
	}

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Ingestion pipeline: OGD client -> ingester -> ws hub
	ogdClient := ogd.NewClient(cfg.OGDAPIKey, cfg.OGDBaseURL)
	hub := api.NewHub()
	ingester := services.NewIngester(db, ogdClient, hub)

	// Background jobs: ingest every 12h, retention cleanup daily
	scheduler := services.NewScheduler(ingester)
	if err := scheduler.Start(); err != nil {
		log.Fatal("Failed to start scheduler:", err)
	}
	defer scheduler.Stop()

	// Initialize Gin router
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Live ingestion updates
	r.GET("/ws", hub.HandleWS)

	// API routes
	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, db, ingester)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
