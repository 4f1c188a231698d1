package services

import (
	"math"
	"sort"
	"time"

	"mandi-tracker/internal/models"

	"gorm.io/gorm"
)

const (
	forecastHorizonDays  = 7
	forecastLookbackDays = 30

	// Smoothing parameters for the Holt linear-trend fit.
	holtAlpha = 0.3
	holtBeta  = 0.1
)

// ForecastPoint is one day of the combined history+projection series.
type ForecastPoint struct {
	Date       string `json:"date"`
	Price      int    `json:"price"`
	IsForecast bool   `json:"isForecast"`
}

// ForecastService projects short-horizon mandi prices from the trailing
// month of observations. Read-only.
type ForecastService struct {
	db *gorm.DB
}

func NewForecastService(db *gorm.DB) *ForecastService {
	return &ForecastService{db: db}
}

// Forecast returns the trailing 30 days of daily average modal prices for
// (crop, state) followed by 7 projected days. Fewer than 2 daily data points
// is not enough to fit a trend, so the result is empty rather than an error.
//
// The model is a seasonality-free level+trend fit: with only a month of
// history the daily/weekly/yearly seasonal components cannot be estimated
// reliably, so only the trend is extrapolated. Each projected price is
// floored at half the minimum observed daily average so a short losing
// streak cannot extrapolate into an implausible collapse.
func (s *ForecastService) Forecast(crop, state string) ([]ForecastPoint, error) {
	cutoff := time.Now().AddDate(0, 0, -forecastLookbackDays)

	var records []models.MandiRate
	err := s.db.Where("state = ? AND commodity = ?", state, crop).
		Where("updated_at >= ?", cutoff).
		Order("updated_at asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []ForecastPoint{}, nil
	}

	// Daily mean of modal price, keyed by the update day, to smooth out
	// multiple updates within one day.
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, r := range records {
		day := r.UpdatedAt.Format("2006-01-02")
		sums[day] += r.ModalPrice
		counts[day]++
	}

	days := make([]string, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Strings(days)

	if len(days) < 2 {
		return []ForecastPoint{}, nil
	}

	series := make([]float64, len(days))
	points := make([]ForecastPoint, 0, len(days)+forecastHorizonDays)
	minAvg := math.MaxFloat64
	for i, d := range days {
		avg := float64(sums[d]) / float64(counts[d])
		series[i] = avg
		if avg < minAvg {
			minAvg = avg
		}
		points = append(points, ForecastPoint{
			Date:       d,
			Price:      int(avg),
			IsForecast: false,
		})
	}

	level, trend := holtFit(series, holtAlpha, holtBeta)
	floor := minAvg * 0.5

	lastDay, _ := time.Parse("2006-01-02", days[len(days)-1])
	for k := 1; k <= forecastHorizonDays; k++ {
		predicted := level + float64(k)*trend
		if predicted < floor {
			predicted = floor
		}
		points = append(points, ForecastPoint{
			Date:       lastDay.AddDate(0, 0, k).Format("2006-01-02"),
			Price:      int(math.Round(predicted)),
			IsForecast: true,
		})
	}

	return points, nil
}

// holtFit runs Holt's double exponential smoothing over the series and
// returns the final level and per-step trend.
func holtFit(series []float64, alpha, beta float64) (level, trend float64) {
	level = series[0]
	trend = 0
	for i := 1; i < len(series); i++ {
		prevLevel := level
		level = alpha*series[i] + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	return level, trend
}
