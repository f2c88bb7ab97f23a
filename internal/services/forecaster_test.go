package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercelens/foresight-go/internal/config"
	"github.com/commercelens/foresight-go/internal/models"
	"github.com/commercelens/foresight-go/internal/utils"
)

func dailyOrders(start time.Time, amounts ...float64) []models.OrderRecord {
	orders := make([]models.OrderRecord, len(amounts))
	for i, amount := range amounts {
		orders[i] = models.OrderRecord{
			OrderDate: start.AddDate(0, 0, i),
			Amount:    decimal.NewFromFloat(amount),
		}
	}
	return orders
}

// TestForecast_BlendArithmetic tests the trend/moving-average blend and the
// uncertainty band on a hand-computed series.
func TestForecast_BlendArithmetic(t *testing.T) {
	cfg := config.Default().Forecast
	tf := NewTrendForecaster(cfg, testLogger())
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	series, err := tf.Forecast(context.Background(), dailyOrders(start, 100, 120, 90, 130, 110), 3)
	require.NoError(t, err)
	require.Len(t, series.Points, 3)

	// OLS over [100 120 90 130 110]: slope 3, intercept 104. The moving
	// average window shrinks to the 5 observed days, giving 110.
	assert.InDelta(t, 3, series.TrendSlope, 1e-9)
	assert.InDelta(t, 104, series.Intercept, 1e-9)

	first := series.Points[0]
	assert.InDelta(t, 116.3, first.Value, 1e-9) // 0.7*(3*5+104) + 0.3*110
	assert.Equal(t, start.AddDate(0, 0, 5), first.Date)

	band := 1.96 * math.Sqrt(200) * 0.3
	assert.InDelta(t, 116.3-band, first.LowerBound, 1e-9)
	assert.InDelta(t, 116.3+band, first.UpperBound, 1e-9)

	second := series.Points[1]
	assert.InDelta(t, 118.4, second.Value, 1e-9) // 0.7*(3*6+104) + 0.3*110
	assert.Equal(t, start.AddDate(0, 0, 6), second.Date)

	assert.Equal(t, 5, series.Summary.TotalDays)
	assert.InDelta(t, 550, series.Summary.TotalRevenue, 1e-9)
	assert.InDelta(t, 110, series.Summary.AvgDailyRevenue, 1e-9)
	assert.Equal(t, start, series.Summary.StartDate)
	assert.Equal(t, start.AddDate(0, 0, 4), series.Summary.EndDate)
}

// TestForecast_Insights tests the derived growth, volatility and
// recommendation fields.
func TestForecast_Insights(t *testing.T) {
	cfg := config.Default().Forecast
	tf := NewTrendForecaster(cfg, testLogger())
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	series, err := tf.Forecast(context.Background(), dailyOrders(start, 100, 120, 90, 130, 110), 3)
	require.NoError(t, err)

	ins := series.Insights
	assert.InDelta(t, 3.0/110*100, ins.GrowthRatePercent, 1e-9)
	assert.InDelta(t, math.Sqrt(200)/110, ins.RevenueVolatility, 1e-9)
	assert.Equal(t, "Medium", ins.ConfidenceLabel)
	assert.Contains(t, ins.Recommendation, "trending upward")
	assert.InDelta(t, 116.3+118.4+120.5, ins.ForecastTotal, 1e-9)

	// A declining series flips the recommendation.
	declining, err := tf.Forecast(context.Background(), dailyOrders(start, 200, 150, 100, 50, 20), 3)
	require.NoError(t, err)
	assert.Contains(t, declining.Insights.Recommendation, "declining")
}

// TestForecast_FloorsAtFractionOfRecentAverage tests the collapse guard on
// a steeply falling trend.
func TestForecast_FloorsAtFractionOfRecentAverage(t *testing.T) {
	cfg := config.Default().Forecast
	tf := NewTrendForecaster(cfg, testLogger())
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	series, err := tf.Forecast(context.Background(), dailyOrders(start, 1000, 700, 400, 100, 10), 30)
	require.NoError(t, err)

	recentAvg := calculateMean([]float64{1000, 700, 400, 100, 10})
	floor := cfg.FloorFraction * recentAvg
	for _, point := range series.Points {
		assert.GreaterOrEqual(t, point.Value, floor)
		assert.GreaterOrEqual(t, point.LowerBound, 0.0)
	}
	assert.InDelta(t, floor, series.Points[len(series.Points)-1].Value, 1e-9)
}

// TestForecast_HorizonClamp tests the horizon cap and the minimum of one
// day.
func TestForecast_HorizonClamp(t *testing.T) {
	cfg := config.Default().Forecast
	tf := NewTrendForecaster(cfg, testLogger())
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	orders := dailyOrders(start, 100, 120, 90, 130, 110)

	series, err := tf.Forecast(context.Background(), orders, 200)
	require.NoError(t, err)
	assert.Len(t, series.Points, cfg.HorizonCap)

	series, err = tf.Forecast(context.Background(), orders, 0)
	require.NoError(t, err)
	assert.Len(t, series.Points, 1)
}

// TestForecast_InsufficientData tests the typed errors for thin histories.
func TestForecast_InsufficientData(t *testing.T) {
	cfg := config.Default().Forecast
	tf := NewTrendForecaster(cfg, testLogger())
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	_, err := tf.Forecast(context.Background(), dailyOrders(start, 100, 120), 7)
	assert.True(t, utils.IsInsufficientData(err))

	// Three orders but all on the same day: only one aggregated point.
	sameDay := []models.OrderRecord{
		{OrderDate: start, Amount: decimal.NewFromFloat(10)},
		{OrderDate: start.Add(2 * time.Hour), Amount: decimal.NewFromFloat(20)},
		{OrderDate: start.Add(5 * time.Hour), Amount: decimal.NewFromFloat(30)},
	}
	_, err = tf.Forecast(context.Background(), sameDay, 7)
	assert.True(t, utils.IsInsufficientData(err))
}

// TestForecast_AggregatesIntraDayOrders tests daily totals across mixed
// order times.
func TestForecast_AggregatesIntraDayOrders(t *testing.T) {
	cfg := config.Default().Forecast
	tf := NewTrendForecaster(cfg, testLogger())
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	orders := []models.OrderRecord{
		{OrderDate: start.Add(9 * time.Hour), Amount: decimal.NewFromFloat(40)},
		{OrderDate: start.Add(17 * time.Hour), Amount: decimal.NewFromFloat(60)},
		{OrderDate: start.AddDate(0, 0, 1), Amount: decimal.NewFromFloat(120)},
		{OrderDate: start.AddDate(0, 0, 2), Amount: decimal.NewFromFloat(90)},
	}

	series, err := tf.Forecast(context.Background(), orders, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, series.Summary.TotalDays)
	assert.InDelta(t, 310, series.Summary.TotalRevenue, 1e-9)
}

// TestForecast_DownsamplesOversizedHistory tests that only the most recent
// orders survive past the threshold.
func TestForecast_DownsamplesOversizedHistory(t *testing.T) {
	cfg := config.Default().Forecast
	cfg.DownsampleThreshold = 10
	cfg.DownsampleKeep = 5
	tf := NewTrendForecaster(cfg, testLogger())
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	orders := dailyOrders(start, 1, 2, 3, 4, 5, 6, 7, 100, 110, 120, 130, 140)
	series, err := tf.Forecast(context.Background(), orders, 5)
	require.NoError(t, err)

	// Only the last 5 days remain after downsampling.
	assert.Equal(t, 5, series.Summary.TotalDays)
	assert.Equal(t, start.AddDate(0, 0, 7), series.Summary.StartDate)
	assert.InDelta(t, 600, series.Summary.TotalRevenue, 1e-9)
}

// TestForecast_CancelledContext tests cooperative cancellation before the
// heavy work starts.
func TestForecast_CancelledContext(t *testing.T) {
	cfg := config.Default().Forecast
	tf := NewTrendForecaster(cfg, testLogger())
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tf.Forecast(ctx, dailyOrders(start, 100, 120, 90, 130, 110), 7)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestTrailingAverage tests the window shrink on short series.
func TestTrailingAverage(t *testing.T) {
	assert.InDelta(t, 110, trailingAverage([]float64{100, 120, 90, 130, 110}, 7), 1e-9)
	assert.InDelta(t, 30, trailingAverage([]float64{10, 20, 30, 40}, 3), 1e-9)

	long := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		long = append(long, float64(i))
	}
	assert.InDelta(t, 16, trailingAverage(long, 7), 1e-9)
}
