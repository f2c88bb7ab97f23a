package models

import (
	"time"

	pkgmodels "github.com/commercelens/foresight-go/pkg/models"
)

// OrderRecord is the forecaster's input unit, defined in pkg/models as part
// of the public boundary.
type OrderRecord = pkgmodels.OrderRecord

// ForecastPoint is a single forecasted day with its confidence band.
type ForecastPoint struct {
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
}

// HistoricalSummary describes the daily-revenue window a forecast was fit on.
type HistoricalSummary struct {
	TotalDays       int       `json:"total_days"`
	TotalRevenue    float64   `json:"total_revenue"`
	AvgDailyRevenue float64   `json:"avg_daily_revenue"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// ForecastInsights carries the derived business figures the reporting layer
// shows next to the raw series.
type ForecastInsights struct {
	GrowthRatePercent float64 `json:"growth_rate_percent"` // trend slope relative to average daily revenue
	RevenueVolatility float64 `json:"revenue_volatility"`  // std relative to average daily revenue
	ForecastTotal     float64 `json:"forecast_total"`
	ConfidenceLabel   string  `json:"confidence_label"` // "Medium" or "Low"
	Recommendation    string  `json:"recommendation"`
}

// ForecastSeries is the ordered forecast output plus the summary of the
// historical window it was fit on.
type ForecastSeries struct {
	Points      []ForecastPoint   `json:"points"`
	Summary     HistoricalSummary `json:"summary"`
	Insights    ForecastInsights  `json:"insights"`
	TrendSlope  float64           `json:"trend_slope"`
	Intercept   float64           `json:"trend_intercept"`
	GeneratedAt time.Time         `json:"generated_at"`
}
