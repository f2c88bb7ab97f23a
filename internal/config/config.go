package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
	CLV         CLVConfig       `mapstructure:"clv"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

// CLVConfig controls the CLV training and prediction pipeline.
type CLVConfig struct {
	LabelCutoffDays      int     `mapstructure:"label_cutoff_days"` // feature window ends this many days before now
	MinOrdersPerCustomer int     `mapstructure:"min_orders_per_customer"`
	MinRealRows          int     `mapstructure:"min_real_rows"` // below this, fall back to synthetic data
	SyntheticRows        int     `mapstructure:"synthetic_rows"`
	RandomSeed           int64   `mapstructure:"random_seed"`
	ConfidenceLevel      float64 `mapstructure:"confidence_level"`
	ForestWeight         float64 `mapstructure:"forest_weight"`
	BoostWeight          float64 `mapstructure:"boost_weight"`
	LinearWeight         float64 `mapstructure:"linear_weight"`
	ForestTrees          int     `mapstructure:"forest_trees"`
	BoostRounds          int     `mapstructure:"boost_rounds"`
	BoostLearningRate    float64 `mapstructure:"boost_learning_rate"`
	TreeMaxDepth         int     `mapstructure:"tree_max_depth"`
}

// ForecastConfig controls the trend forecaster and its scheduler.
type ForecastConfig struct {
	Timeout             string  `mapstructure:"timeout"`
	MaxWorkers          int     `mapstructure:"max_workers"`
	HorizonCap          int     `mapstructure:"horizon_cap"`
	DownsampleThreshold int     `mapstructure:"downsample_threshold"`
	DownsampleKeep      int     `mapstructure:"downsample_keep"`
	MovingAverageWindow int     `mapstructure:"moving_average_window"`
	TrendWeight         float64 `mapstructure:"trend_weight"`
	RecentWeight        float64 `mapstructure:"recent_weight"`
	FloorFraction       float64 `mapstructure:"floor_fraction"`
	BandZ               float64 `mapstructure:"band_z"`
	BandScale           float64 `mapstructure:"band_scale"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// TimeoutDuration parses the configured forecast timeout.
func (f ForecastConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	weightSum := c.CLV.ForestWeight + c.CLV.BoostWeight + c.CLV.LinearWeight
	if math.Abs(weightSum-1.0) > 1e-9 {
		return fmt.Errorf("ensemble weights must sum to 1.0, got %.6f", weightSum)
	}
	if c.CLV.ConfidenceLevel <= 0 || c.CLV.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level must be in (0, 1), got %.4f", c.CLV.ConfidenceLevel)
	}
	if c.Forecast.MaxWorkers < 1 {
		return fmt.Errorf("forecast.max_workers must be at least 1, got %d", c.Forecast.MaxWorkers)
	}
	if c.Forecast.HorizonCap < 1 {
		return fmt.Errorf("forecast.horizon_cap must be at least 1, got %d", c.Forecast.HorizonCap)
	}
	if c.Forecast.DownsampleKeep > c.Forecast.DownsampleThreshold {
		return fmt.Errorf("forecast.downsample_keep (%d) must not exceed forecast.downsample_threshold (%d)",
			c.Forecast.DownsampleKeep, c.Forecast.DownsampleThreshold)
	}
	if _, err := time.ParseDuration(c.Forecast.Timeout); err != nil {
		return fmt.Errorf("invalid forecast timeout duration: %w", err)
	}
	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	// CLV pipeline
	viper.SetDefault("clv.label_cutoff_days", 30)
	viper.SetDefault("clv.min_orders_per_customer", 2)
	viper.SetDefault("clv.min_real_rows", 50)
	viper.SetDefault("clv.synthetic_rows", 500)
	viper.SetDefault("clv.random_seed", 42)
	viper.SetDefault("clv.confidence_level", 0.95)
	viper.SetDefault("clv.forest_weight", 0.4)
	viper.SetDefault("clv.boost_weight", 0.4)
	viper.SetDefault("clv.linear_weight", 0.2)
	viper.SetDefault("clv.forest_trees", 100)
	viper.SetDefault("clv.boost_rounds", 100)
	viper.SetDefault("clv.boost_learning_rate", 0.1)
	viper.SetDefault("clv.tree_max_depth", 4)

	// Forecast
	viper.SetDefault("forecast.timeout", "30s")
	viper.SetDefault("forecast.max_workers", 2)
	viper.SetDefault("forecast.horizon_cap", 90)
	viper.SetDefault("forecast.downsample_threshold", 10000)
	viper.SetDefault("forecast.downsample_keep", 5000)
	viper.SetDefault("forecast.moving_average_window", 7)
	viper.SetDefault("forecast.trend_weight", 0.7)
	viper.SetDefault("forecast.recent_weight", 0.3)
	viper.SetDefault("forecast.floor_fraction", 0.1)
	viper.SetDefault("forecast.band_z", 1.96)
	viper.SetDefault("forecast.band_scale", 0.3)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", "foresight-engine")
}

// Default returns a Config populated with the library defaults, for callers
// that embed the engine without a config file.
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		LogFormat:   "text",
		CLV: CLVConfig{
			LabelCutoffDays:      30,
			MinOrdersPerCustomer: 2,
			MinRealRows:          50,
			SyntheticRows:        500,
			RandomSeed:           42,
			ConfidenceLevel:      0.95,
			ForestWeight:         0.4,
			BoostWeight:          0.4,
			LinearWeight:         0.2,
			ForestTrees:          100,
			BoostRounds:          100,
			BoostLearningRate:    0.1,
			TreeMaxDepth:         4,
		},
		Forecast: ForecastConfig{
			Timeout:             "30s",
			MaxWorkers:          2,
			HorizonCap:          90,
			DownsampleThreshold: 10000,
			DownsampleKeep:      5000,
			MovingAverageWindow: 7,
			TrendWeight:         0.7,
			RecentWeight:        0.3,
			FloorFraction:       0.1,
			BandZ:               1.96,
			BandScale:           0.3,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "foresight-engine",
		},
	}
}
