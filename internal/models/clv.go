package models

import (
	"time"

	pkgmodels "github.com/commercelens/foresight-go/pkg/models"
)

// The boundary types are defined in pkg/models so collaborator modules can
// implement pkg/interfaces without importing internal packages. They are
// aliased here for the engine's own use.
type (
	CustomerOrder  = pkgmodels.CustomerOrder
	BehaviorRecord = pkgmodels.BehaviorRecord
)

// FeatureVector holds the engineered features for one BehaviorRecord.
// Several fields (IsHighValue, LoyaltyScore) are normalized against the
// batch the record was engineered with, so a vector is only meaningful
// relative to its batch.
type FeatureVector struct {
	CustomerID            string  `json:"customer_id"`
	RecencyDays           float64 `json:"recency_days"`
	Frequency             float64 `json:"frequency"`
	Monetary              float64 `json:"monetary"`
	AvgOrderValue         float64 `json:"avg_order_value"`
	RecencyFrequencyRatio float64 `json:"recency_frequency_ratio"`
	PurchaseIntensity     float64 `json:"purchase_intensity"`
	IsNewCustomer         float64 `json:"is_new_customer"`
	IsFrequentBuyer       float64 `json:"is_frequent_buyer"`
	IsHighValue           float64 `json:"is_high_value"`
	ChurnRiskScore        float64 `json:"churn_risk_score"`
	LoyaltyScore          float64 `json:"loyalty_score"`
	DaysSinceFirst        float64 `json:"days_since_first_purchase"`
	PurchaseVelocity      float64 `json:"purchase_velocity"`
}

// Values returns the vector's fields in the canonical feature order.
func (fv *FeatureVector) Values() []float64 {
	return []float64{
		fv.RecencyDays,
		fv.Frequency,
		fv.Monetary,
		fv.AvgOrderValue,
		fv.RecencyFrequencyRatio,
		fv.PurchaseIntensity,
		fv.IsNewCustomer,
		fv.IsFrequentBuyer,
		fv.IsHighValue,
		fv.ChurnRiskScore,
		fv.LoyaltyScore,
		fv.DaysSinceFirst,
		fv.PurchaseVelocity,
	}
}

// FeatureNames is the canonical feature ordering used at fit time and at
// predict time. It must match FeatureVector.Values index for index.
var FeatureNames = []string{
	"recency_days",
	"frequency",
	"monetary",
	"avg_order_value",
	"recency_frequency_ratio",
	"purchase_intensity",
	"is_new_customer",
	"is_frequent_buyer",
	"is_high_value",
	"churn_risk_score",
	"loyalty_score",
	"days_since_first_purchase",
	"purchase_velocity",
}

// DatasetProvenance marks whether a training dataset was built from real
// order history or from the deterministic synthetic generator.
type DatasetProvenance string

const (
	ProvenanceReal      DatasetProvenance = "real"
	ProvenanceSynthetic DatasetProvenance = "synthetic"
)

// TrainingDataset pairs behavior records with the revenue they realized in
// the disjoint future window (the CLV label).
type TrainingDataset struct {
	Records    []BehaviorRecord  `json:"records"`
	Targets    []float64         `json:"targets"`
	Provenance DatasetProvenance `json:"provenance"`
	CutoffDate time.Time         `json:"cutoff_date,omitempty"`
}

// Len returns the number of labeled rows.
func (d *TrainingDataset) Len() int {
	return len(d.Records)
}

// ModelMetrics holds held-out evaluation metrics for one regressor.
type ModelMetrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// TrainingReport summarizes a training run for the reporting layer.
type TrainingReport struct {
	TotalCustomers     int                           `json:"total_customers"`
	FeaturesEngineered int                           `json:"features_engineered"`
	TrainSize          int                           `json:"train_size"`
	TestSize           int                           `json:"test_size"`
	Provenance         DatasetProvenance             `json:"provenance"`
	ModelPerformance   map[string]ModelMetrics       `json:"model_performance"`
	FeatureImportance  map[string]map[string]float64 `json:"feature_importance"`
	TrainedAt          time.Time                     `json:"trained_at"`
}

// PredictionResult is the per-customer CLV estimate with its uncertainty
// band. ConfidenceValid is false when the point estimate is too close to
// zero for the relative-spread score to be meaningful.
type PredictionResult struct {
	CustomerID         string             `json:"customer_id"`
	PointEstimate      float64            `json:"point_estimate"`
	LowerBound         float64            `json:"lower_bound"`
	UpperBound         float64            `json:"upper_bound"`
	ConfidenceScore    float64            `json:"confidence_score"`
	ConfidenceValid    bool               `json:"confidence_valid"`
	PerModelEstimates  map[string]float64 `json:"per_model_estimates"`
}

// ScoredCustomer ties a prediction back to its platform and segment tags for
// group-wise analysis.
type ScoredCustomer struct {
	CustomerID string           `json:"customer_id"`
	Platform   string           `json:"platform"`
	Segment    string           `json:"segment"`
	Prediction PredictionResult `json:"prediction"`
}

// GroupStats holds the aggregate CLV statistics for one customer grouping.
type GroupStats struct {
	Group          string  `json:"group"`
	Customers      int     `json:"customers"`
	Mean           float64 `json:"mean"`
	Median         float64 `json:"median"`
	StdDev         float64 `json:"std_dev"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Recommendation is a fixed-rule, human-readable action suggestion derived
// from the segment analysis.
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Impact   string `json:"impact"`
}

// SegmentReport is the aggregate output of the segment analyzer.
type SegmentReport struct {
	SegmentStats    []GroupStats     `json:"segment_stats"`
	PlatformStats   []GroupStats     `json:"platform_stats"`
	TopCustomers    []ScoredCustomer `json:"top_customers"`
	HighConfidence  []ScoredCustomer `json:"high_confidence"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}
