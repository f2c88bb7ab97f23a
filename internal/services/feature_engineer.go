package services

import (
	"github.com/commercelens/foresight-go/internal/models"
	"github.com/commercelens/foresight-go/internal/utils"
)

// FeatureEngineer derives the model feature set from aggregated behavior
// records. It is a pure batch transform: the high-value flag and the loyalty
// score are normalized against the batch's own percentile and maxima, so the
// same customer can score differently inside different batches. Callers
// define the batch boundary; the engineer never widens or narrows it.
type FeatureEngineer struct{}

// NewFeatureEngineer creates a new feature engineer.
func NewFeatureEngineer() *FeatureEngineer {
	return &FeatureEngineer{}
}

// EngineerFeatures computes one FeatureVector per record. The batch must be
// non-empty and every record must have frequency >= 1; a zero frequency
// would make the division-based features undefined and is rejected as a
// DataIntegrityError rather than propagated as infinity.
func (fe *FeatureEngineer) EngineerFeatures(records []models.BehaviorRecord) ([]models.FeatureVector, error) {
	if len(records) == 0 {
		return nil, utils.NewInsufficientDataError("feature engineering", 1, 0, "records")
	}

	monetary := make([]float64, len(records))
	maxFrequency, maxMonetary, maxRecency := 0.0, 0.0, 0.0
	for i, r := range records {
		if r.Frequency < 1 {
			return nil, utils.NewDataIntegrityErrorf(
				"customer %s: frequency must be >= 1, got %v", r.CustomerID, r.Frequency)
		}
		if r.RecencyDays < 0 || r.Monetary < 0 {
			return nil, utils.NewDataIntegrityErrorf(
				"customer %s: negative recency or monetary value", r.CustomerID)
		}
		monetary[i] = r.Monetary
		if r.Frequency > maxFrequency {
			maxFrequency = r.Frequency
		}
		if r.Monetary > maxMonetary {
			maxMonetary = r.Monetary
		}
		if r.RecencyDays > maxRecency {
			maxRecency = r.RecencyDays
		}
	}

	highValueThreshold := calculatePercentile(monetary, 0.75)

	vectors := make([]models.FeatureVector, len(records))
	for i, r := range records {
		fv := models.FeatureVector{
			CustomerID:            r.CustomerID,
			RecencyDays:           r.RecencyDays,
			Frequency:             r.Frequency,
			Monetary:              r.Monetary,
			AvgOrderValue:         r.Monetary / r.Frequency,
			RecencyFrequencyRatio: r.RecencyDays / (r.Frequency + 1),
			PurchaseIntensity:     r.Frequency / (r.RecencyDays + 1) * 365,
			ChurnRiskScore:        churnRiskScore(r),
			LoyaltyScore:          loyaltyScore(r, maxFrequency, maxMonetary, maxRecency),
		}

		if r.RecencyDays <= 30 {
			fv.IsNewCustomer = 1
		}
		if r.Frequency >= 5 {
			fv.IsFrequentBuyer = 1
		}
		if r.Monetary >= highValueThreshold {
			fv.IsHighValue = 1
		}

		fv.DaysSinceFirst = r.DaysSinceFirstPurchase
		if fv.DaysSinceFirst == 0 {
			fv.DaysSinceFirst = r.RecencyDays
		}
		fv.PurchaseVelocity = r.Frequency / (fv.DaysSinceFirst + 1) * 365

		vectors[i] = fv
	}

	return vectors, nil
}

// churnRiskScore averages a recency step function and a frequency step
// function.
func churnRiskScore(r models.BehaviorRecord) float64 {
	var recencyScore float64
	switch {
	case r.RecencyDays > 90:
		recencyScore = 0.8
	case r.RecencyDays > 60:
		recencyScore = 0.5
	case r.RecencyDays > 30:
		recencyScore = 0.2
	default:
		recencyScore = 0.1
	}

	var frequencyScore float64
	switch {
	case r.Frequency == 1:
		frequencyScore = 0.6
	case r.Frequency <= 2:
		frequencyScore = 0.3
	default:
		frequencyScore = 0.1
	}

	return (recencyScore + frequencyScore) / 2
}

// loyaltyScore blends batch-normalized frequency, monetary and inverted
// recency at fixed 0.4/0.4/0.2 weights.
func loyaltyScore(r models.BehaviorRecord, maxFrequency, maxMonetary, maxRecency float64) float64 {
	var frequencyNorm, monetaryNorm, recencyNormInverted float64
	if maxFrequency > 0 {
		frequencyNorm = r.Frequency / maxFrequency
	}
	if maxMonetary > 0 {
		monetaryNorm = r.Monetary / maxMonetary
	}
	if maxRecency > 0 {
		recencyNormInverted = (maxRecency - r.RecencyDays) / maxRecency
	}
	return 0.4*frequencyNorm + 0.4*monetaryNorm + 0.2*recencyNormInverted
}
