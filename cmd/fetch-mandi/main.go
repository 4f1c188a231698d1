// fetch-mandi backfills the mandi_rates table from the OGD API outside the
// scheduled cycle: a plain run covers the trailing 7 days, -date covers one
// day, and -reset truncates the table first.
package main

import (
	"flag"
	"log"
	"time"

	"mandi-tracker/internal/config"
	"mandi-tracker/internal/database"
	"mandi-tracker/internal/models"
	"mandi-tracker/internal/services"
	"mandi-tracker/internal/services/ogd"

	"github.com/joho/godotenv"
)

func main() {
	date := flag.String("date", "", "single day to fetch, DD/MM/YYYY (default: trailing 7 days)")
	reset := flag.Bool("reset", false, "delete all existing records before fetching")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	if cfg.OGDAPIKey == "" {
		log.Fatal("OGD_API_KEY is required")
	}

	if *date != "" {
		if _, err := time.Parse("02/01/2006", *date); err != nil {
			log.Fatalf("Invalid -date %q: expected DD/MM/YYYY", *date)
		}
	}

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if *reset {
		result := db.Where("1 = 1").Delete(&models.MandiRate{})
		if result.Error != nil {
			log.Fatal("Failed to clear mandi_rates:", result.Error)
		}
		log.Printf("Cleared %d existing records.", result.RowsAffected)
	}

	ingester := services.NewIngester(db, ogd.NewClient(cfg.OGDAPIKey, cfg.OGDBaseURL), nil)

	log.Println("Initiating fetch cycle via OGD API...")
	ingester.FetchAll(*date)
	log.Println("Data fetched successfully.")
}
