package services

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"mandi-tracker/internal/models"
	"mandi-tracker/internal/services/ogd"

	"gorm.io/gorm"
)

const (
	// maxRecordsPerDay caps paging per (commodity, day) so a runaway upstream
	// cursor cannot stall the whole cycle.
	maxRecordsPerDay = 2000

	// retentionDays bounds storage growth; records not re-observed within the
	// window are deleted.
	retentionDays = 30

	// fetchWindowDays is the trailing window covered by a full run.
	fetchWindowDays = 7

	arrivalDateLayout = "02/01/2006"

	paddyCommodity = "Paddy(Dhan)(Common)"
)

// TrackedCommodities is the fixed set of crops fetched every cycle.
var TrackedCommodities = []string{
	"Tomato", "Onion", "Potato", "Rice", paddyCommodity, "Wheat", "Maize", "Cotton", "Sugarcane",
	"Brinjal", "Cabbage", "Cauliflower", "Carrot", "Bhindi(Ladies Finger)", "Green Chilli",
	"Apple", "Banana", "Mango", "Orange", "Pomegranate", "Grapes",
}

// commodityAliases maps upstream labels to the canonical name used in
// storage. Queries apply the reverse mapping for rows ingested before the
// alias existed.
var commodityAliases = map[string]string{
	paddyCommodity: "Rice",
}

// CycleSummary describes one completed ingestion cycle.
type CycleSummary struct {
	TargetDate  string    `json:"target_date,omitempty"`
	Commodities int       `json:"commodities"`
	Processed   int       `json:"records_processed"`
	Upserted    int       `json:"records_upserted"`
	Deleted     int64     `json:"records_deleted"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// CyclePublisher receives a summary after every ingestion cycle. The
// websocket hub implements it; a nil publisher disables publishing.
type CyclePublisher interface {
	PublishCycle(CycleSummary)
}

// Ingester populates the mandi_rates table from the OGD API and retires
// stale rows. It is the only writer of price fields and the only deleter.
type Ingester struct {
	db        *gorm.DB
	client    *ogd.Client
	publisher CyclePublisher

	mu      sync.Mutex
	running bool
}

func NewIngester(db *gorm.DB, client *ogd.Client, publisher CyclePublisher) *Ingester {
	return &Ingester{
		db:        db,
		client:    client,
		publisher: publisher,
	}
}

type naturalKey struct {
	State       string
	District    string
	Market      string
	Commodity   string
	ArrivalDate string
}

// FetchAll fetches price data for every tracked commodity. With a targetDate
// ("DD/MM/YYYY") it covers exactly that day; otherwise the trailing 7 days.
// It is fire-and-forget: failures are logged and isolated per commodity and
// per day, and a retention cleanup runs at the end of the cycle.
func (ing *Ingester) FetchAll(targetDate string) {
	if !ing.client.HasAPIKey() {
		log.Println("[OGD API] No OGD API key found. Skipping fetch.")
		return
	}

	ing.mu.Lock()
	if ing.running {
		ing.mu.Unlock()
		log.Println("[OGD API] Fetch already in progress, skipping")
		return
	}
	ing.running = true
	ing.mu.Unlock()
	defer func() {
		ing.mu.Lock()
		ing.running = false
		ing.mu.Unlock()
	}()

	log.Println("[OGD API] Starting background fetch...")
	startedAt := time.Now()

	var days []string
	if targetDate != "" {
		days = []string{targetDate}
	} else {
		for i := 0; i < fetchWindowDays; i++ {
			days = append(days, time.Now().AddDate(0, 0, -i).Format(arrivalDateLayout))
		}
	}

	totalProcessed := 0
	totalUpserted := 0
	for _, crop := range TrackedCommodities {
		for _, day := range days {
			processed, upserted := ing.fetchCropDay(crop, day)
			totalProcessed += processed
			totalUpserted += upserted
			log.Printf("[OGD API] Processed %d records for %s (All India) on %s", processed, crop, day)
		}
	}

	log.Printf("[OGD API] Running %d-day rolling window cleanup...", retentionDays)
	deleted, err := ing.Cleanup()
	if err != nil {
		log.Printf("[OGD API] Cleanup failed: %v", err)
	} else {
		log.Printf("[OGD API] Cleanup complete. Deleted %d old records.", deleted)
	}

	if ing.publisher != nil {
		ing.publisher.PublishCycle(CycleSummary{
			TargetDate:  targetDate,
			Commodities: len(TrackedCommodities),
			Processed:   totalProcessed,
			Upserted:    totalUpserted,
			Deleted:     deleted,
			StartedAt:   startedAt,
			FinishedAt:  time.Now(),
		})
	}
}

// Running reports whether a fetch cycle is in flight.
func (ing *Ingester) Running() bool {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	return ing.running
}

// fetchCropDay pages through the upstream for one (commodity, day) pair,
// normalizes and de-duplicates the rows, and commits them as one batch. Page
// errors abandon the pair; a commit error is logged and the caller moves on.
func (ing *Ingester) fetchCropDay(crop, day string) (processed, upserted int) {
	seen := make(map[naturalKey]int)
	var batch []models.MandiRate

	offset := 0
	for {
		records, hasMore, err := ing.client.FetchPage(crop, day, offset, ogd.MaxPageSize)
		if err != nil {
			log.Printf("[OGD API] Error fetching %s on %s: %v", crop, day, err)
			break
		}

		for _, raw := range records {
			rate := normalizeRecord(raw, crop, day)
			key := naturalKey{rate.State, rate.District, rate.Market, rate.Commodity, rate.ArrivalDate}
			// Later pages may repeat earlier rows; the latest occurrence wins.
			if idx, ok := seen[key]; ok {
				batch[idx] = rate
				continue
			}
			seen[key] = len(batch)
			batch = append(batch, rate)
		}

		processed += len(records)
		if !hasMore || processed >= maxRecordsPerDay {
			break
		}
		offset += ogd.MaxPageSize
	}

	if len(batch) == 0 {
		return processed, 0
	}

	if err := ing.commitBatch(batch); err != nil {
		log.Printf("[OGD API] DB commit error for %s on %s: %v", crop, day, err)
		return processed, 0
	}
	return processed, len(batch)
}

// commitBatch upserts one (commodity, day) batch in a single transaction.
// Existing rows keep their CreatedAt; only prices, variety and UpdatedAt move.
func (ing *Ingester) commitBatch(batch []models.MandiRate) error {
	return ing.db.Transaction(func(tx *gorm.DB) error {
		for i := range batch {
			rate := batch[i]

			var existing models.MandiRate
			err := tx.Where(
				"state = ? AND district = ? AND market = ? AND commodity = ? AND arrival_date = ?",
				rate.State, rate.District, rate.Market, rate.Commodity, rate.ArrivalDate,
			).First(&existing).Error

			switch {
			case err == nil:
				existing.MinPrice = rate.MinPrice
				existing.MaxPrice = rate.MaxPrice
				existing.ModalPrice = rate.ModalPrice
				existing.Variety = rate.Variety
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&rate).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}
		return nil
	})
}

// Cleanup deletes records whose UpdatedAt is older than the retention
// window. It is idempotent and safe to run at any time.
func (ing *Ingester) Cleanup() (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := ing.db.Where("updated_at < ?", cutoff).Delete(&models.MandiRate{})
	return result.RowsAffected, result.Error
}

// normalizeRecord turns a loosely-typed upstream row into a MandiRate.
// Missing location fields default to "Unknown", a missing arrival date
// defaults to the day being processed, and the commodity label is
// canonicalized through the alias table.
func normalizeRecord(raw ogd.RawRecord, crop, day string) models.MandiRate {
	rate := models.MandiRate{
		State:       defaultString(raw.State, "Unknown"),
		District:    defaultString(raw.District, "Unknown"),
		Market:      defaultString(raw.Market, "Unknown"),
		Commodity:   defaultString(raw.Commodity, crop),
		Variety:     raw.Variety,
		ArrivalDate: defaultString(raw.ArrivalDate, day),
	}

	if canonical, ok := commodityAliases[rate.Commodity]; ok {
		rate.Commodity = canonical
	}

	minPrice, err1 := priceToInt(raw.MinPrice)
	maxPrice, err2 := priceToInt(raw.MaxPrice)
	modalPrice, err3 := priceToInt(raw.ModalPrice)
	if err1 != nil || err2 != nil || err3 != nil {
		// Availability over validation: store the row with zeroed prices
		// rather than dropping it.
		minPrice, maxPrice, modalPrice = 0, 0, 0
	}
	rate.MinPrice = minPrice
	rate.MaxPrice = maxPrice
	rate.ModalPrice = modalPrice

	return rate
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func priceToInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return int(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, err
		}
		return int(f), nil
	default:
		return 0, errors.New("unsupported price type")
	}
}

// legacyCommodityNames returns the upstream labels that should also match a
// query for crop, for rows stored before write-time canonicalization.
func legacyCommodityNames(crop string) []string {
	names := []string{crop}
	for legacy, canonical := range commodityAliases {
		if canonical == crop {
			names = append(names, legacy)
		}
	}
	return names
}
