package services

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/commercelens/foresight-go/internal/config"
	"github.com/commercelens/foresight-go/internal/models"
	"github.com/commercelens/foresight-go/internal/telemetry"
	"github.com/commercelens/foresight-go/internal/utils"
)

// pointEstimateEpsilon is the threshold below which the relative-spread
// confidence score is meaningless and reported as invalid.
const pointEstimateEpsilon = 1e-9

// Predictor produces per-customer CLV estimates with uncertainty bands from
// a trained ensemble. Training is lazy: the first call that needs a model
// set trains one under a mutex, so concurrent callers share a single fit
// instead of racing to train in parallel.
type Predictor struct {
	cfg      config.CLVConfig
	logger   *logrus.Logger
	bank     *EnsembleModelBank
	provider *TrainingDataProvider
	engineer *FeatureEngineer

	mu     sync.Mutex
	set    *TrainedModelSet
	report *models.TrainingReport
}

// NewPredictor creates a predictor. The ensemble weights must sum to 1; a
// misconfigured blend would silently scale every estimate, so it is rejected
// up front.
func NewPredictor(cfg config.CLVConfig, logger *logrus.Logger) (*Predictor, error) {
	weightSum := cfg.ForestWeight + cfg.BoostWeight + cfg.LinearWeight
	if math.Abs(weightSum-1) > 1e-9 {
		return nil, utils.NewDataIntegrityErrorf(
			"ensemble weights must sum to 1.0, got %v", weightSum)
	}
	return &Predictor{
		cfg:      cfg,
		logger:   logger,
		bank:     NewEnsembleModelBank(cfg, logger),
		provider: NewTrainingDataProvider(cfg, logger),
		engineer: NewFeatureEngineer(),
	}, nil
}

// SetModelSet installs a previously trained model set, bypassing lazy
// training.
func (p *Predictor) SetModelSet(set *TrainedModelSet, report *models.TrainingReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set = set
	p.report = report
}

// TrainingReport returns the report from the active model set, or nil when
// no training has happened yet.
func (p *Predictor) TrainingReport() *models.TrainingReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report
}

// EnsureTrained trains the ensemble from the order history unless a model
// set is already installed. The check-train-install sequence holds the mutex
// throughout, so exactly one caller trains and the rest wait for its result.
func (p *Predictor) EnsureTrained(ctx context.Context, orders []models.CustomerOrder, now time.Time) (*models.TrainingReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.set != nil {
		return p.report, nil
	}

	dataset := p.provider.PrepareTrainingData(orders, now)
	set, report, err := p.bank.Train(ctx, dataset)
	if err != nil {
		return nil, err
	}
	p.set = set
	p.report = report
	return report, nil
}

// Predict scores a batch of behavior records. confidenceLevel is the
// two-sided interval level; values outside (0, 1) fall back to the
// configured default. Requires a trained model set.
func (p *Predictor) Predict(ctx context.Context, records []models.BehaviorRecord, confidenceLevel float64) ([]models.PredictionResult, error) {
	_, span := telemetry.Tracer("services.predictor").Start(ctx, "Predict")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(records)))

	p.mu.Lock()
	set := p.set
	p.mu.Unlock()
	if set == nil {
		return nil, utils.NewModelNotTrainedError("predict")
	}

	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		confidenceLevel = p.cfg.ConfidenceLevel
	}
	z := zScoreForConfidence(confidenceLevel)

	vectors, err := p.engineer.EngineerFeatures(records)
	if err != nil {
		return nil, err
	}

	results := make([]models.PredictionResult, len(vectors))
	for i := range vectors {
		estimates := set.predictRow(vectors[i].Values())
		results[i] = p.combine(vectors[i].CustomerID, estimates, z)
	}

	p.logger.WithFields(logrus.Fields{
		"customers":        len(results),
		"confidence_level": confidenceLevel,
	}).Debug("Scored CLV batch")

	return results, nil
}

// combine blends the per-model estimates into the weighted point estimate
// and derives the uncertainty band from the cross-model spread.
func (p *Predictor) combine(customerID string, estimates map[string]float64, z float64) models.PredictionResult {
	pointEstimate := p.cfg.ForestWeight*estimates[ModelRandomForest] +
		p.cfg.BoostWeight*estimates[ModelGradientBoost] +
		p.cfg.LinearWeight*estimates[ModelLinear]

	spread := calculatePopStdDev([]float64{
		estimates[ModelRandomForest],
		estimates[ModelGradientBoost],
		estimates[ModelLinear],
	})
	halfWidth := z * spread

	result := models.PredictionResult{
		CustomerID:        customerID,
		PointEstimate:     pointEstimate,
		LowerBound:        math.Max(0, pointEstimate-halfWidth),
		UpperBound:        pointEstimate + halfWidth,
		PerModelEstimates: estimates,
	}

	if math.Abs(pointEstimate) > pointEstimateEpsilon {
		result.ConfidenceScore = clip(1-spread/math.Abs(pointEstimate), 0, 1)
		result.ConfidenceValid = true
	}

	return result
}
