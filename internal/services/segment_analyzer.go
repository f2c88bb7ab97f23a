package services

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/commercelens/foresight-go/internal/models"
)

const (
	topCustomerCount        = 10
	highConfidenceThreshold = 0.8
)

// SegmentAnalyzer aggregates scored customers into per-segment and
// per-platform CLV statistics and derives fixed-rule action recommendations.
type SegmentAnalyzer struct {
	logger *logrus.Logger
}

// NewSegmentAnalyzer creates a new segment analyzer.
func NewSegmentAnalyzer(logger *logrus.Logger) *SegmentAnalyzer {
	return &SegmentAnalyzer{logger: logger}
}

// Analyze builds the segment report from a batch of scored customers.
// Rankings are stable: customers with equal estimates keep their input
// order. An empty batch yields an empty report rather than an error.
func (sa *SegmentAnalyzer) Analyze(scored []models.ScoredCustomer) *models.SegmentReport {
	report := &models.SegmentReport{
		SegmentStats:  sa.groupStats(scored, func(c models.ScoredCustomer) string { return c.Segment }),
		PlatformStats: sa.groupStats(scored, func(c models.ScoredCustomer) string { return c.Platform }),
		TopCustomers:  topByEstimate(scored, topCustomerCount),
		GeneratedAt:   time.Now(),
	}

	confident := make([]models.ScoredCustomer, 0, len(scored))
	for _, c := range scored {
		if c.Prediction.ConfidenceValid && c.Prediction.ConfidenceScore > highConfidenceThreshold {
			confident = append(confident, c)
		}
	}
	report.HighConfidence = topByEstimate(confident, topCustomerCount)

	report.Recommendations = sa.recommendations(scored, report)

	sa.logger.WithFields(logrus.Fields{
		"customers":       len(scored),
		"segments":        len(report.SegmentStats),
		"platforms":       len(report.PlatformStats),
		"high_confidence": len(confident),
	}).Info("Built CLV segment report")

	return report
}

// ClassifySegment assigns a coarse behavioral segment to a record whose
// caller did not supply one.
func (sa *SegmentAnalyzer) ClassifySegment(r models.BehaviorRecord) string {
	switch {
	case r.Frequency >= 5 && r.RecencyDays <= 30:
		return "champion"
	case r.Frequency >= 3:
		return "loyal"
	case r.RecencyDays > 90:
		return "at_risk"
	default:
		return "standard"
	}
}

// groupStats aggregates point estimates per group key. Groups appear in
// first-seen input order; customers with an empty key are skipped.
func (sa *SegmentAnalyzer) groupStats(scored []models.ScoredCustomer, key func(models.ScoredCustomer) string) []models.GroupStats {
	estimates := make(map[string][]float64)
	confidences := make(map[string][]float64)
	groupOrder := make([]string, 0)

	for _, c := range scored {
		g := key(c)
		if g == "" {
			continue
		}
		if _, seen := estimates[g]; !seen {
			groupOrder = append(groupOrder, g)
		}
		estimates[g] = append(estimates[g], c.Prediction.PointEstimate)
		confidences[g] = append(confidences[g], c.Prediction.ConfidenceScore)
	}

	stats := make([]models.GroupStats, 0, len(groupOrder))
	for _, g := range groupOrder {
		values := estimates[g]
		min, max := values[0], values[0]
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		stats = append(stats, models.GroupStats{
			Group:          g,
			Customers:      len(values),
			Mean:           calculateMean(values),
			Median:         calculateMedian(values),
			StdDev:         calculateSampleStdDev(values),
			Min:            min,
			Max:            max,
			MeanConfidence: calculateMean(confidences[g]),
		})
	}
	return stats
}

// topByEstimate returns the highest-estimate customers, at most limit of
// them. The sort is stable so equal estimates preserve input order.
func topByEstimate(scored []models.ScoredCustomer, limit int) []models.ScoredCustomer {
	ranked := make([]models.ScoredCustomer, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Prediction.PointEstimate > ranked[b].Prediction.PointEstimate
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// recommendations applies the fixed rule set over the aggregates. Rules are
// deliberately simple and deterministic; the output is advisory text, not a
// decision engine.
func (sa *SegmentAnalyzer) recommendations(scored []models.ScoredCustomer, report *models.SegmentReport) []models.Recommendation {
	if len(scored) == 0 {
		return nil
	}

	recs := make([]models.Recommendation, 0, 3)

	if len(report.TopCustomers) > 0 {
		recs = append(recs, models.Recommendation{
			Type:     "high_value_retention",
			Priority: "high",
			Action:   "Launch a retention program for the top predicted-CLV customers",
			Impact:   "Protects the revenue concentrated in the highest-value accounts",
		})
	}

	if best := bestSegment(report.SegmentStats); best != "" {
		recs = append(recs, models.Recommendation{
			Type:     "segment_optimization",
			Priority: "medium",
			Action:   "Shift acquisition spend toward the '" + best + "' segment profile",
			Impact:   "Acquires customers resembling the segment with the highest mean CLV",
		})
	}

	if len(report.HighConfidence) > 0 {
		recs = append(recs, models.Recommendation{
			Type:     "predictive_marketing",
			Priority: "medium",
			Action:   "Target high-confidence predictions with personalized campaigns",
			Impact:   "Concentrates budget where the model uncertainty is lowest",
		})
	}

	return recs
}

// bestSegment returns the segment with the highest mean estimate, first-seen
// order breaking ties.
func bestSegment(stats []models.GroupStats) string {
	best, bestMean := "", 0.0
	for _, s := range stats {
		if best == "" || s.Mean > bestMean {
			best, bestMean = s.Group, s.Mean
		}
	}
	return best
}
