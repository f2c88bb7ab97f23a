package services

import (
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercelens/foresight-go/internal/config"
	"github.com/commercelens/foresight-go/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testCLVConfig() config.CLVConfig {
	cfg := config.Default().CLV
	// Keep the tree ensembles small so training-dependent tests stay fast.
	cfg.ForestTrees = 10
	cfg.BoostRounds = 10
	cfg.TreeMaxDepth = 3
	cfg.SyntheticRows = 120
	return cfg
}

func order(customerID string, daysAgo int, amount float64, now time.Time) models.CustomerOrder {
	return models.CustomerOrder{
		CustomerID: customerID,
		Platform:   "shopify",
		OrderDate:  now.AddDate(0, 0, -daysAgo),
		Amount:     decimal.NewFromFloat(amount),
	}
}

// TestGenerateSyntheticDataset_Deterministic tests that two runs with the
// same seed produce identical rows.
func TestGenerateSyntheticDataset_Deterministic(t *testing.T) {
	provider := NewTrainingDataProvider(testCLVConfig(), testLogger())

	first := provider.GenerateSyntheticDataset()
	second := provider.GenerateSyntheticDataset()

	require.Equal(t, 120, first.Len())
	assert.Equal(t, models.ProvenanceSynthetic, first.Provenance)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Targets, second.Targets)
}

// TestGenerateSyntheticDataset_Ranges tests the generated distributions
// respect their structural constraints.
func TestGenerateSyntheticDataset_Ranges(t *testing.T) {
	provider := NewTrainingDataProvider(testCLVConfig(), testLogger())
	dataset := provider.GenerateSyntheticDataset()

	for i, r := range dataset.Records {
		assert.GreaterOrEqual(t, r.Frequency, 1.0)
		assert.GreaterOrEqual(t, r.RecencyDays, 0.0)
		assert.Greater(t, r.Monetary, 0.0)
		assert.Greater(t, r.DaysSinceFirstPurchase, r.RecencyDays)
		assert.NotEmpty(t, r.CustomerID)
		assert.GreaterOrEqual(t, dataset.Targets[i], 0.0)
	}
}

// TestPrepareTrainingData_OutOfTimeSplit tests eligibility and labeling
// across the cutoff.
func TestPrepareTrainingData_OutOfTimeSplit(t *testing.T) {
	cfg := testCLVConfig()
	cfg.MinRealRows = 1
	provider := NewTrainingDataProvider(cfg, testLogger())
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	orders := []models.CustomerOrder{
		// Eligible: two historical orders plus future revenue.
		order("repeat", 90, 100, now),
		order("repeat", 60, 150, now),
		order("repeat", 10, 75, now),
		// Ineligible: single historical order.
		order("once", 90, 500, now),
		// Ineligible: all orders inside the label window.
		order("fresh", 5, 40, now),
		order("fresh", 2, 60, now),
	}

	dataset := provider.PrepareTrainingData(orders, now)

	require.Equal(t, 1, dataset.Len())
	assert.Equal(t, models.ProvenanceReal, dataset.Provenance)

	r := dataset.Records[0]
	assert.Equal(t, "repeat", r.CustomerID)
	assert.Equal(t, 2.0, r.Frequency)
	assert.InDelta(t, 250, r.Monetary, 1e-9)
	assert.InDelta(t, 60, r.RecencyDays, 1e-9)
	assert.InDelta(t, 90, r.DaysSinceFirstPurchase, 1e-9)
	assert.InDelta(t, 75, dataset.Targets[0], 1e-9)
}

// TestPrepareTrainingData_SyntheticFallback tests that a thin order history
// falls back to the synthetic generator.
func TestPrepareTrainingData_SyntheticFallback(t *testing.T) {
	cfg := testCLVConfig()
	provider := NewTrainingDataProvider(cfg, testLogger())
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	orders := []models.CustomerOrder{
		order("repeat", 90, 100, now),
		order("repeat", 60, 150, now),
	}

	dataset := provider.PrepareTrainingData(orders, now)
	assert.Equal(t, models.ProvenanceSynthetic, dataset.Provenance)
	assert.Equal(t, cfg.SyntheticRows, dataset.Len())
}

// TestBuildBehaviorRecords tests the full-history aggregation used for
// scoring live customers.
func TestBuildBehaviorRecords(t *testing.T) {
	provider := NewTrainingDataProvider(testCLVConfig(), testLogger())
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	records := provider.BuildBehaviorRecords([]models.CustomerOrder{
		order("a", 40, 100, now),
		order("b", 5, 30, now),
		order("a", 20, 50, now),
	}, now)

	require.Len(t, records, 2)
	// First-seen input order is preserved.
	assert.Equal(t, "a", records[0].CustomerID)
	assert.Equal(t, "b", records[1].CustomerID)

	a := records[0]
	assert.Equal(t, 2.0, a.Frequency)
	assert.InDelta(t, 150, a.Monetary, 1e-9)
	assert.InDelta(t, 20, a.RecencyDays, 1e-9)
	assert.InDelta(t, 40, a.DaysSinceFirstPurchase, 1e-9)
}
