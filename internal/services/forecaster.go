package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/commercelens/foresight-go/internal/config"
	"github.com/commercelens/foresight-go/internal/models"
	"github.com/commercelens/foresight-go/internal/telemetry"
	"github.com/commercelens/foresight-go/internal/utils"
)

// cancelCheckInterval is how many loop iterations pass between context
// checks in the hot paths.
const cancelCheckInterval = 1000

// TrendForecaster projects daily revenue forward by blending a least-squares
// trend line with a trailing moving average. It is CPU-bound and checks the
// context at loop checkpoints, so a cancelled or expired context stops the
// work promptly instead of being ignored until the end.
type TrendForecaster struct {
	cfg    config.ForecastConfig
	logger *logrus.Logger
}

// NewTrendForecaster creates a new trend forecaster.
func NewTrendForecaster(cfg config.ForecastConfig, logger *logrus.Logger) *TrendForecaster {
	return &TrendForecaster{cfg: cfg, logger: logger}
}

// Forecast builds a revenue forecast from the order history. The horizon is
// clamped to [1, HorizonCap] days. At least 3 orders spanning at least 2
// distinct days are required; oversized histories are downsampled to the
// most recent DownsampleKeep orders before aggregation.
func (tf *TrendForecaster) Forecast(ctx context.Context, orders []models.OrderRecord, horizonDays int) (*models.ForecastSeries, error) {
	_, span := telemetry.Tracer("services.forecaster").Start(ctx, "Forecast")
	defer span.End()
	span.SetAttributes(attribute.Int("orders", len(orders)), attribute.Int("horizon_days", horizonDays))

	if len(orders) < 3 {
		return nil, utils.NewInsufficientDataError("trend forecast", 3, len(orders), "orders")
	}

	if horizonDays < 1 {
		horizonDays = 1
	}
	if horizonDays > tf.cfg.HorizonCap {
		tf.logger.WithFields(logrus.Fields{
			"requested": horizonDays,
			"cap":       tf.cfg.HorizonCap,
		}).Warn("Forecast horizon clamped to cap")
		horizonDays = tf.cfg.HorizonCap
	}

	orders = tf.downsample(orders)

	days, totals, err := aggregateDaily(ctx, orders)
	if err != nil {
		return nil, err
	}
	if len(days) < 2 {
		return nil, utils.NewInsufficientDataError("trend forecast", 2, len(days), "distinct days")
	}

	slope, intercept := fitLinearTrend(totals)
	recentAvg := trailingAverage(totals, tf.cfg.MovingAverageWindow)
	volatility := calculatePopStdDev(totals)
	band := tf.cfg.BandZ * volatility * tf.cfg.BandScale
	floor := tf.cfg.FloorFraction * recentAvg

	n := len(totals)
	lastDay := days[n-1]
	points := make([]models.ForecastPoint, 0, horizonDays)
	var forecastTotal float64
	for i := 0; i < horizonDays; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		trendValue := slope*float64(n+i) + intercept
		value := tf.cfg.TrendWeight*trendValue + tf.cfg.RecentWeight*recentAvg
		if value < floor {
			value = floor
		}
		points = append(points, models.ForecastPoint{
			Date:       lastDay.AddDate(0, 0, i+1),
			Value:      value,
			LowerBound: math.Max(0, value-band),
			UpperBound: value + band,
		})
		forecastTotal += value
	}

	series := &models.ForecastSeries{
		Points:      points,
		Summary:     summarize(days, totals),
		Insights:    tf.insights(slope, totals, volatility, forecastTotal),
		TrendSlope:  slope,
		Intercept:   intercept,
		GeneratedAt: time.Now(),
	}

	tf.logger.WithFields(logrus.Fields{
		"history_days": len(days),
		"horizon_days": horizonDays,
		"trend_slope":  slope,
	}).Info("Generated revenue forecast")

	return series, nil
}

// downsample keeps only the most recent orders when the history exceeds the
// configured threshold. The trend fit is dominated by recent behavior
// anyway, and this bounds the aggregation cost.
func (tf *TrendForecaster) downsample(orders []models.OrderRecord) []models.OrderRecord {
	if len(orders) <= tf.cfg.DownsampleThreshold {
		return orders
	}

	sorted := make([]models.OrderRecord, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].OrderDate.Before(sorted[b].OrderDate)
	})

	tf.logger.WithFields(logrus.Fields{
		"orders": len(orders),
		"kept":   tf.cfg.DownsampleKeep,
	}).Warn("Downsampling oversized order history")

	return sorted[len(sorted)-tf.cfg.DownsampleKeep:]
}

// aggregateDaily sums order amounts per calendar day (UTC) and returns the
// days in ascending order alongside their totals.
func aggregateDaily(ctx context.Context, orders []models.OrderRecord) ([]time.Time, []float64, error) {
	byDay := make(map[time.Time]float64)
	for i, o := range orders {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		day := o.OrderDate.UTC()
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		amount, _ := o.Amount.Float64()
		byDay[day] += amount
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(a, b int) bool { return days[a].Before(days[b]) })

	totals := make([]float64, len(days))
	for i, day := range days {
		totals[i] = byDay[day]
	}
	return days, totals, nil
}

// trailingAverage is the simple moving average over the last window values,
// with the window shrunk to the series length when the history is short.
func trailingAverage(totals []float64, window int) float64 {
	if window > len(totals) {
		window = len(totals)
	}
	if window < 1 {
		window = 1
	}
	sma := trend.NewSmaWithPeriod[float64](window)
	values := helper.ChanToSlice(sma.Compute(helper.SliceToChan(totals)))
	return values[len(values)-1]
}

func summarize(days []time.Time, totals []float64) models.HistoricalSummary {
	var total float64
	for _, v := range totals {
		total += v
	}
	return models.HistoricalSummary{
		TotalDays:       len(days),
		TotalRevenue:    total,
		AvgDailyRevenue: total / float64(len(days)),
		StartDate:       days[0],
		EndDate:         days[len(days)-1],
	}
}

// insights derives the qualitative read on the forecast. The thresholds are
// relative to average daily revenue so the labels behave the same at any
// revenue scale.
func (tf *TrendForecaster) insights(slope float64, totals []float64, volatility, forecastTotal float64) models.ForecastInsights {
	avg := calculateMean(totals)

	ins := models.ForecastInsights{
		ForecastTotal: forecastTotal,
	}
	if avg > 0 {
		ins.GrowthRatePercent = slope / avg * 100
		ins.RevenueVolatility = volatility / avg
	}

	if volatility < avg*0.3 {
		ins.ConfidenceLabel = "Medium"
	} else {
		ins.ConfidenceLabel = "Low"
	}

	switch {
	case slope > avg*0.01:
		ins.Recommendation = "Revenue is trending upward. Consider scaling marketing efforts."
	case slope < -avg*0.01:
		ins.Recommendation = "Revenue is declining. Review recent changes and customer feedback."
	default:
		ins.Recommendation = "Revenue is stable. Focus on maintaining current performance."
	}

	return ins
}
