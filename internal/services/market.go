package services

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"mandi-tracker/internal/models"

	"gorm.io/gorm"
)

// MarketService answers read-only aggregation queries over the mandi_rates
// table. It never writes.
type MarketService struct {
	db *gorm.DB
}

func NewMarketService(db *gorm.DB) *MarketService {
	return &MarketService{db: db}
}

// HistoryPoint is one day in the price history chart: the mean modal price
// across markets plus the day's min/max band.
type HistoryPoint struct {
	Date  string `json:"date"`
	Price int    `json:"price"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
}

// RecentEntry is one row of the results table: the single best (highest
// modal price) market quote for a day, reported verbatim.
type RecentEntry struct {
	Date  string `json:"date"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Modal int    `json:"modal"`
}

// MandiData is the aggregated payload served to the UI.
type MandiData struct {
	CurrentPrice string         `json:"current_price"`
	PriceUnit    string         `json:"price_unit"`
	Change       string         `json:"change"`
	Market       string         `json:"market"`
	History      []HistoryPoint `json:"history"`
	RecentData   []RecentEntry  `json:"recent_data"`
	MinPrice     string         `json:"min_price,omitempty"`
	MaxPrice     string         `json:"max_price,omitempty"`
}

// OverviewEntry is one row of the state dashboard.
type OverviewEntry struct {
	District    string `json:"district"`
	Market      string `json:"market"`
	Commodity   string `json:"commodity"`
	ModalPrice  int    `json:"modal_price"`
	ArrivalDate string `json:"arrival_date"`
}

// AllDistricts is the sentinel district value meaning "do not filter".
const AllDistricts = "All Districts"

// Records returns the raw rows matching (crop, state[, district]). A crop of
// "Rice" also matches rows still stored under the legacy paddy label.
func (s *MarketService) Records(crop, state, district string) ([]models.MandiRate, error) {
	query := s.db.Where("state = ?", state).
		Where("commodity IN ?", legacyCommodityNames(crop))
	if district != "" && district != AllDistricts {
		query = query.Where("district = ?", district)
	}

	var records []models.MandiRate
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetMandiData aggregates the retained records for (crop, state[, district])
// into the dashboard payload. Missing data is not an error: the sentinel
// "(No Data)" payload is returned instead.
func (s *MarketService) GetMandiData(crop, state, district string) (*MandiData, error) {
	records, err := s.Records(crop, state, district)
	if err != nil {
		return nil, err
	}

	label := marketLabel(crop, state, district)
	if len(records) == 0 {
		return noDataPayload(label), nil
	}

	// Group by calendar date; rows with unparseable dates are excluded from
	// date-based aggregation but stay in the global min/max scan.
	byDate := make(map[string][]models.MandiRate)
	for _, r := range records {
		day, err := time.Parse(arrivalDateLayout, r.ArrivalDate)
		if err != nil {
			continue
		}
		key := day.Format("2006-01-02")
		byDate[key] = append(byDate[key], r)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) == 0 {
		return noDataPayload(label), nil
	}

	// Current price: mean modal price across markets on the latest date.
	latest := byDate[dates[len(dates)-1]]
	avgModal := meanModalPrice(latest)

	// Day-over-day change against the prior date's average.
	changePct := 0.0
	if len(dates) > 1 {
		prevAvg := meanModalPrice(byDate[dates[len(dates)-2]])
		if prevAvg > 0 {
			changePct = (avgModal - prevAvg) / prevAvg * 100
		}
	}

	historyDates := dates
	if len(historyDates) > 7 {
		historyDates = historyDates[len(historyDates)-7:]
	}
	history := make([]HistoryPoint, 0, len(historyDates))
	for _, d := range historyDates {
		dayRecords := byDate[d]
		dayMin, dayMax := dayRecords[0].MinPrice, dayRecords[0].MaxPrice
		for _, r := range dayRecords[1:] {
			if r.MinPrice < dayMin {
				dayMin = r.MinPrice
			}
			if r.MaxPrice > dayMax {
				dayMax = r.MaxPrice
			}
		}
		history = append(history, HistoryPoint{
			Date:  displayDate(d),
			Price: int(meanModalPrice(dayRecords)),
			Min:   dayMin,
			Max:   dayMax,
		})
	}

	// Results table: newest first, one representative "best" quote per day.
	recentDates := dates
	if len(recentDates) > 5 {
		recentDates = recentDates[len(recentDates)-5:]
	}
	recent := make([]RecentEntry, 0, len(recentDates))
	for i := len(recentDates) - 1; i >= 0; i-- {
		dayRecords := byDate[recentDates[i]]
		top := dayRecords[0]
		for _, r := range dayRecords[1:] {
			if r.ModalPrice > top.ModalPrice {
				top = r
			}
		}
		recent = append(recent, RecentEntry{
			Date:  displayDate(recentDates[i]),
			Min:   top.MinPrice,
			Max:   top.MaxPrice,
			Modal: top.ModalPrice,
		})
	}

	// Global min/max over the whole retained window, ignoring zeroed rows.
	allMin, allMax := 0, 0
	for _, r := range records {
		if r.MinPrice > 0 && (allMin == 0 || r.MinPrice < allMin) {
			allMin = r.MinPrice
		}
		if r.MaxPrice > allMax {
			allMax = r.MaxPrice
		}
	}

	return &MandiData{
		CurrentPrice: "₹" + formatINR(int(avgModal)),
		PriceUnit:    "per quintal",
		Change:       fmt.Sprintf("%+.1f%%", changePct),
		Market:       label,
		History:      history,
		RecentData:   recent,
		MinPrice:     "₹" + formatINR(allMin),
		MaxPrice:     "₹" + formatINR(allMax),
	}, nil
}

// GetDistricts returns the sorted, de-duplicated, non-empty district names
// with data for (crop, state).
func (s *MarketService) GetDistricts(crop, state string) ([]string, error) {
	var districts []string
	err := s.db.Model(&models.MandiRate{}).
		Where("state = ?", state).
		Where("commodity IN ?", legacyCommodityNames(crop)).
		Distinct().
		Pluck("district", &districts).Error
	if err != nil {
		return nil, err
	}

	filtered := districts[:0]
	for _, d := range districts {
		if d != "" {
			filtered = append(filtered, d)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// GetOverview returns the latest arrival date's rows for a state, for the
// dashboard listing.
func (s *MarketService) GetOverview(state string) ([]OverviewEntry, error) {
	var records []models.MandiRate
	if err := s.db.Where("state = ?", state).Find(&records).Error; err != nil {
		return nil, err
	}

	var latest time.Time
	for _, r := range records {
		if day, err := time.Parse(arrivalDateLayout, r.ArrivalDate); err == nil && day.After(latest) {
			latest = day
		}
	}

	entries := []OverviewEntry{}
	for _, r := range records {
		day, err := time.Parse(arrivalDateLayout, r.ArrivalDate)
		if err != nil || !day.Equal(latest) {
			continue
		}
		entries = append(entries, OverviewEntry{
			District:    r.District,
			Market:      r.Market,
			Commodity:   r.Commodity,
			ModalPrice:  r.ModalPrice,
			ArrivalDate: r.ArrivalDate,
		})
	}
	return entries, nil
}

func noDataPayload(label string) *MandiData {
	return &MandiData{
		CurrentPrice: "N/A",
		PriceUnit:    "per quintal",
		Change:       "-",
		Market:       label + " (No Data)",
		History:      []HistoryPoint{},
		RecentData:   []RecentEntry{},
	}
}

func marketLabel(crop, state, district string) string {
	label := crop + " - " + state
	if district != "" && district != AllDistricts {
		label += " - " + district
	}
	return label
}

func meanModalPrice(records []models.MandiRate) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0
	for _, r := range records {
		sum += r.ModalPrice
	}
	return float64(sum) / float64(len(records))
}

// displayDate converts a sortable "2006-01-02" key into the "02 Jan" form
// the UI shows.
func displayDate(key string) string {
	day, err := time.Parse("2006-01-02", key)
	if err != nil {
		return key
	}
	return day.Format("02 Jan")
}

// formatINR groups digits with thousands separators ("1,240").
func formatINR(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
