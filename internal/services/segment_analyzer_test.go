package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercelens/foresight-go/internal/models"
)

func scoredCustomer(id, platform, segment string, estimate, confidence float64) models.ScoredCustomer {
	return models.ScoredCustomer{
		CustomerID: id,
		Platform:   platform,
		Segment:    segment,
		Prediction: models.PredictionResult{
			CustomerID:      id,
			PointEstimate:   estimate,
			LowerBound:      estimate * 0.8,
			UpperBound:      estimate * 1.2,
			ConfidenceScore: confidence,
			ConfidenceValid: true,
		},
	}
}

// TestSegmentAnalyzer_GroupStats tests the per-platform and per-segment
// aggregates.
func TestSegmentAnalyzer_GroupStats(t *testing.T) {
	analyzer := NewSegmentAnalyzer(testLogger())

	report := analyzer.Analyze([]models.ScoredCustomer{
		scoredCustomer("a", "shopify", "loyal", 100, 0.9),
		scoredCustomer("b", "shopify", "standard", 300, 0.5),
		scoredCustomer("c", "magento", "loyal", 200, 0.7),
	})

	require.Len(t, report.PlatformStats, 2)
	shopify := report.PlatformStats[0]
	assert.Equal(t, "shopify", shopify.Group)
	assert.Equal(t, 2, shopify.Customers)
	assert.InDelta(t, 200, shopify.Mean, 1e-9)
	assert.InDelta(t, 200, shopify.Median, 1e-9)
	assert.InDelta(t, 100, shopify.Min, 1e-9)
	assert.InDelta(t, 300, shopify.Max, 1e-9)
	assert.InDelta(t, 0.7, shopify.MeanConfidence, 1e-9)

	require.Len(t, report.SegmentStats, 2)
	assert.Equal(t, "loyal", report.SegmentStats[0].Group)
	assert.Equal(t, 2, report.SegmentStats[0].Customers)
}

// TestSegmentAnalyzer_TopCustomers tests the stable descending ranking and
// the size cap.
func TestSegmentAnalyzer_TopCustomers(t *testing.T) {
	analyzer := NewSegmentAnalyzer(testLogger())

	scored := make([]models.ScoredCustomer, 0, 15)
	for i := 0; i < 15; i++ {
		scored = append(scored, scoredCustomer(fmt.Sprintf("c%d", i), "shopify", "standard", float64(i*10), 0.5))
	}
	// Two customers tie with the maximum; input order must break the tie.
	scored = append(scored,
		scoredCustomer("tie-first", "shopify", "standard", 1000, 0.5),
		scoredCustomer("tie-second", "shopify", "standard", 1000, 0.5),
	)

	report := analyzer.Analyze(scored)
	require.Len(t, report.TopCustomers, 10)
	assert.Equal(t, "tie-first", report.TopCustomers[0].CustomerID)
	assert.Equal(t, "tie-second", report.TopCustomers[1].CustomerID)
	for i := 1; i < len(report.TopCustomers); i++ {
		assert.GreaterOrEqual(t,
			report.TopCustomers[i-1].Prediction.PointEstimate,
			report.TopCustomers[i].Prediction.PointEstimate)
	}
}

// TestSegmentAnalyzer_HighConfidence tests the confidence filter.
func TestSegmentAnalyzer_HighConfidence(t *testing.T) {
	analyzer := NewSegmentAnalyzer(testLogger())

	uncertain := scoredCustomer("uncertain", "shopify", "standard", 900, 0.3)
	invalid := scoredCustomer("invalid", "shopify", "standard", 800, 0.95)
	invalid.Prediction.ConfidenceValid = false

	report := analyzer.Analyze([]models.ScoredCustomer{
		scoredCustomer("sure", "shopify", "standard", 100, 0.85),
		uncertain,
		invalid,
		scoredCustomer("boundary", "shopify", "standard", 200, 0.8),
	})

	require.Len(t, report.HighConfidence, 1)
	assert.Equal(t, "sure", report.HighConfidence[0].CustomerID)
}

// TestSegmentAnalyzer_Recommendations tests the fixed rule set.
func TestSegmentAnalyzer_Recommendations(t *testing.T) {
	analyzer := NewSegmentAnalyzer(testLogger())

	report := analyzer.Analyze([]models.ScoredCustomer{
		scoredCustomer("a", "shopify", "loyal", 500, 0.9),
		scoredCustomer("b", "magento", "standard", 100, 0.4),
	})

	types := make([]string, len(report.Recommendations))
	for i, rec := range report.Recommendations {
		types[i] = rec.Type
	}
	assert.Contains(t, types, "high_value_retention")
	assert.Contains(t, types, "segment_optimization")
	assert.Contains(t, types, "predictive_marketing")

	// The best-segment rule names the segment with the highest mean.
	for _, rec := range report.Recommendations {
		if rec.Type == "segment_optimization" {
			assert.Contains(t, rec.Action, "loyal")
		}
	}

	empty := analyzer.Analyze(nil)
	assert.Empty(t, empty.Recommendations)
	assert.Empty(t, empty.TopCustomers)
}

// TestSegmentAnalyzer_ClassifySegment tests the fallback segmentation rules.
func TestSegmentAnalyzer_ClassifySegment(t *testing.T) {
	analyzer := NewSegmentAnalyzer(testLogger())

	assert.Equal(t, "champion", analyzer.ClassifySegment(models.BehaviorRecord{Frequency: 6, RecencyDays: 10}))
	assert.Equal(t, "loyal", analyzer.ClassifySegment(models.BehaviorRecord{Frequency: 6, RecencyDays: 60}))
	assert.Equal(t, "at_risk", analyzer.ClassifySegment(models.BehaviorRecord{Frequency: 1, RecencyDays: 120}))
	assert.Equal(t, "standard", analyzer.ClassifySegment(models.BehaviorRecord{Frequency: 2, RecencyDays: 40}))
}
