package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/commercelens/foresight-go/internal/config"
	"github.com/commercelens/foresight-go/internal/logging"
	"github.com/commercelens/foresight-go/internal/models"
	"github.com/commercelens/foresight-go/internal/services"
	"github.com/commercelens/foresight-go/internal/telemetry"
	"github.com/commercelens/foresight-go/internal/utils"
)

// insightOutput is the single JSON document printed to stdout.
type insightOutput struct {
	TrainingReport *models.TrainingReport `json:"training_report"`
	SegmentReport  *models.SegmentReport  `json:"segment_report"`
	Forecast       *models.ForecastSeries `json:"forecast,omitempty"`
}

func main() {
	ordersPath := flag.String("orders", "orders.json", "path to the JSON order history")
	horizonDays := flag.Int("horizon", 30, "forecast horizon in days")
	confidence := flag.Float64("confidence", 0, "confidence level for CLV bounds (0 uses the configured default)")
	flag.Parse()

	// Optional .env for local runs; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	tp, err := telemetry.Init(cfg.Telemetry.Enabled, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := newFileOrderSource(*ordersPath)
	orders, err := source.CustomerOrders(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to read order history")
	}

	now := time.Now()

	predictor, err := services.NewPredictor(cfg.CLV, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid CLV configuration")
	}

	report, err := predictor.EnsureTrained(ctx, orders, now)
	if err != nil {
		logger.WithError(err).Fatal("CLV training failed")
	}

	provider := services.NewTrainingDataProvider(cfg.CLV, logger)
	records := provider.BuildBehaviorRecords(orders, now)

	predictions, err := predictor.Predict(ctx, records, *confidence)
	if err != nil {
		logger.WithError(err).Fatal("CLV prediction failed")
	}

	analyzer := services.NewSegmentAnalyzer(logger)
	scored := make([]models.ScoredCustomer, len(records))
	for i, r := range records {
		segment := r.Segment
		if segment == "" {
			segment = analyzer.ClassifySegment(r)
		}
		scored[i] = models.ScoredCustomer{
			CustomerID: r.CustomerID,
			Platform:   r.Platform,
			Segment:    segment,
			Prediction: predictions[i],
		}
	}

	output := insightOutput{
		TrainingReport: report,
		SegmentReport:  analyzer.Analyze(scored),
	}

	orderRecords, err := source.OrderRecords(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to read order history")
	}

	scheduler := services.NewForecastScheduler(cfg.Forecast, logger)
	defer scheduler.CancelAll()

	forecast, err := scheduler.Submit(ctx, orderRecords, *horizonDays)
	switch {
	case err == nil:
		output.Forecast = forecast
	case utils.IsInsufficientData(err):
		logger.WithError(err).Warn("Skipping forecast, not enough order history")
	default:
		logger.WithError(err).Fatal("Revenue forecast failed")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		logger.WithError(err).Fatal("Failed to encode output")
	}
}
