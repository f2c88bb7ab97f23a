package services

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/commercelens/foresight-go/internal/config"
	"github.com/commercelens/foresight-go/internal/models"
	"github.com/commercelens/foresight-go/internal/telemetry"
	"github.com/commercelens/foresight-go/internal/utils"
)

// Model names used in reports, importance maps and per-model estimates.
const (
	ModelRandomForest  = "random_forest"
	ModelGradientBoost = "gradient_boost"
	ModelLinear        = "linear"
)

// TrainedModelSet is an immutable snapshot of one training run: the three
// fitted regressors, the standardization transform fitted on the training
// split, per-model feature importances and the feature ordering used at fit
// time. Predictions must go through the exact set they were trained with;
// there is no mutable shared singleton.
type TrainedModelSet struct {
	forest       *randomForest
	boost        *gradientBoosting
	linear       *linearModel
	scaler       *standardScaler
	featureNames []string
	importance   map[string]map[string]float64
	provenance   models.DatasetProvenance
	trainedAt    time.Time
}

// FeatureNames returns the feature ordering the set was fitted with.
func (ts *TrainedModelSet) FeatureNames() []string {
	names := make([]string, len(ts.featureNames))
	copy(names, ts.featureNames)
	return names
}

// TrainedAt returns when the set was fitted.
func (ts *TrainedModelSet) TrainedAt() time.Time {
	return ts.trainedAt
}

// predictRow runs all three models on one feature row. The linear model
// sees standardized features, the tree ensembles see raw ones.
func (ts *TrainedModelSet) predictRow(row []float64) map[string]float64 {
	return map[string]float64{
		ModelRandomForest:  ts.forest.predict(row),
		ModelGradientBoost: ts.boost.predict(row),
		ModelLinear:        ts.linear.predict(ts.scaler.transformRow(row)),
	}
}

// EnsembleModelBank trains the CLV regressor ensemble from a labeled
// dataset and evaluates it on a held-out split.
type EnsembleModelBank struct {
	cfg      config.CLVConfig
	logger   *logrus.Logger
	engineer *FeatureEngineer
}

// NewEnsembleModelBank creates a new ensemble model bank.
func NewEnsembleModelBank(cfg config.CLVConfig, logger *logrus.Logger) *EnsembleModelBank {
	return &EnsembleModelBank{
		cfg:      cfg,
		logger:   logger,
		engineer: NewFeatureEngineer(),
	}
}

// Train fits the ensemble on the dataset and returns the immutable model
// set plus a training report. Fewer than 2 rows, or a target with zero
// variance, cannot be fit and yields an InsufficientTrainingDataError.
func (mb *EnsembleModelBank) Train(ctx context.Context, dataset *models.TrainingDataset) (*TrainedModelSet, *models.TrainingReport, error) {
	_, span := telemetry.Tracer("services.model_bank").Start(ctx, "Train")
	defer span.End()

	n := dataset.Len()
	span.SetAttributes(attribute.Int("dataset.rows", n), attribute.String("dataset.provenance", string(dataset.Provenance)))

	if n < 2 {
		return nil, nil, utils.NewInsufficientTrainingDataErrorf(
			"training requires at least 2 rows, got %d", n)
	}
	if calculatePopStdDev(dataset.Targets) == 0 {
		return nil, nil, utils.NewInsufficientTrainingDataErrorf(
			"training target has zero variance across %d rows", n)
	}

	vectors, err := mb.engineer.EngineerFeatures(dataset.Records)
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]float64, n)
	for i := range vectors {
		rows[i] = vectors[i].Values()
	}

	trainIdx, testIdx := splitIndices(n, 0.2, mb.cfg.RandomSeed)
	trainRows, trainTargets := gatherRows(rows, dataset.Targets, trainIdx)
	testRows, testTargets := gatherRows(rows, dataset.Targets, testIdx)

	scaler := &standardScaler{}
	scaler.fit(trainRows)

	forest := &randomForest{nTrees: mb.cfg.ForestTrees, maxDepth: mb.cfg.TreeMaxDepth, seed: mb.cfg.RandomSeed}
	forest.fit(trainRows, trainTargets)

	boost := &gradientBoosting{nRounds: mb.cfg.BoostRounds, maxDepth: mb.cfg.TreeMaxDepth, learningRate: mb.cfg.BoostLearningRate}
	boost.fit(trainRows, trainTargets)

	linear := &linearModel{}
	linear.fit(scaler.transform(trainRows), trainTargets)

	nFeatures := len(models.FeatureNames)
	importance := map[string]map[string]float64{
		ModelRandomForest:  importanceByName(forest.featureImportances(nFeatures)),
		ModelGradientBoost: importanceByName(boost.featureImportances(nFeatures)),
	}

	set := &TrainedModelSet{
		forest:       forest,
		boost:        boost,
		linear:       linear,
		scaler:       scaler,
		featureNames: models.FeatureNames,
		importance:   importance,
		provenance:   dataset.Provenance,
		trainedAt:    time.Now(),
	}

	performance := map[string]models.ModelMetrics{}
	for name, predict := range map[string]func([]float64) float64{
		ModelRandomForest:  forest.predict,
		ModelGradientBoost: boost.predict,
		ModelLinear:        func(row []float64) float64 { return linear.predict(scaler.transformRow(row)) },
	} {
		performance[name] = evaluateModel(predict, testRows, testTargets)
	}

	report := &models.TrainingReport{
		TotalCustomers:     n,
		FeaturesEngineered: nFeatures,
		TrainSize:          len(trainIdx),
		TestSize:           len(testIdx),
		Provenance:         dataset.Provenance,
		ModelPerformance:   performance,
		FeatureImportance:  importance,
		TrainedAt:          set.trainedAt,
	}

	mb.logger.WithFields(logrus.Fields{
		"rows":       n,
		"train_size": report.TrainSize,
		"test_size":  report.TestSize,
		"provenance": dataset.Provenance,
	}).Info("Trained CLV model ensemble")

	return set, report, nil
}

// splitIndices shuffles row indices with a seeded source and carves off the
// test fraction, so the split is reproducible across runs.
func splitIndices(n int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	indices := rng.Perm(n)

	testSize := int(math.Ceil(float64(n) * testFraction))
	if testSize >= n {
		testSize = n - 1
	}
	return indices[testSize:], indices[:testSize]
}

func gatherRows(rows [][]float64, targets []float64, indices []int) ([][]float64, []float64) {
	outRows := make([][]float64, len(indices))
	outTargets := make([]float64, len(indices))
	for i, idx := range indices {
		outRows[i] = rows[idx]
		outTargets[i] = targets[idx]
	}
	return outRows, outTargets
}

func importanceByName(importances []float64) map[string]float64 {
	out := make(map[string]float64, len(importances))
	for j, imp := range importances {
		out[models.FeatureNames[j]] = imp
	}
	return out
}

// evaluateModel computes MAE, RMSE and R-squared on the held-out split.
// With an empty or constant test target R-squared is reported as 0.
func evaluateModel(predict func([]float64) float64, rows [][]float64, targets []float64) models.ModelMetrics {
	n := len(rows)
	if n == 0 {
		return models.ModelMetrics{}
	}

	var absErr, sqErr float64
	predictions := make([]float64, n)
	for i, row := range rows {
		predictions[i] = predict(row)
		diff := predictions[i] - targets[i]
		absErr += math.Abs(diff)
		sqErr += diff * diff
	}

	mean := calculateMean(targets)
	var ssTot float64
	for _, y := range targets {
		d := y - mean
		ssTot += d * d
	}

	metrics := models.ModelMetrics{
		MAE:  absErr / float64(n),
		RMSE: math.Sqrt(sqErr / float64(n)),
	}
	if ssTot > 0 {
		metrics.R2 = 1 - sqErr/ssTot
	}
	return metrics
}
