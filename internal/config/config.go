// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogPretty bool
	Port      int `validate:"gte=1,lte=65535"`
	DevMode   bool
	// RequestTimeout caps one HTTP request, frontier sweep included.
	RequestTimeout time.Duration `validate:"gte=1s"`

	Optimizer  OptimizerConfig
	Frontier   FrontierConfig
	MonteCarlo MonteCarloConfig
	Charts     ChartsConfig
	Runs       RunsConfig
	Backup     BackupConfig
}

// OptimizerConfig bounds every constrained solve.
type OptimizerConfig struct {
	Method              string        `validate:"oneof=bfgs lbfgs nelder-mead"`
	MaxIterations       int           `validate:"gte=1,lte=100000"`
	ConstraintTolerance float64       `validate:"gt=0,lte=0.000001"`
	Timeout             time.Duration `validate:"gte=0"`
}

// FrontierConfig configures the frontier sweep.
type FrontierConfig struct {
	Resolution        int    `validate:"gte=2,lte=1000"`
	Workers           int    `validate:"gte=0,lte=256"` // 0 means GOMAXPROCS
	ReturnAggregation string `validate:"oneof=sum mean"`
}

// MonteCarloConfig configures the baseline cloud.
type MonteCarloConfig struct {
	Samples  int `validate:"gte=0,lte=1000000"`
	Seed     uint64
	Sampling string `validate:"oneof=uniform dirichlet"`
}

// ChartsConfig configures the optional presentation layer.
type ChartsConfig struct {
	Enabled   bool
	OutputDir string `validate:"required_if=Enabled true"`
	Width     int    `validate:"gte=100,lte=4000"`
	Height    int    `validate:"gte=100,lte=4000"`
}

// RunsConfig configures frontier run history.
type RunsConfig struct {
	Enabled       bool
	DBPath        string        `validate:"required_if=Enabled true"`
	Retention     time.Duration `validate:"gte=1m"`
	PruneSchedule string        `validate:"required_if=Enabled true"`
}

// BackupConfig configures archiving the run database to S3-compatible storage.
type BackupConfig struct {
	Enabled         bool
	Bucket          string `validate:"required_if=Enabled true"`
	Endpoint        string `validate:"omitempty,url"`
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string        `validate:"required"`
	Schedule        string        `validate:"required_if=Enabled true"`
	Retention       time.Duration `validate:"gte=0"`
	Keep            int           `validate:"gte=1,lte=1000"`
	StagingDir      string        `validate:"required_if=Enabled true"`
}

var validate = validator.New()

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		Port:      getEnvAsInt("PORT", 8080),
		DevMode:   getEnvAsBool("DEV_MODE", false),

		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		Optimizer: OptimizerConfig{
			Method:              getEnv("OPTIMIZER_METHOD", "bfgs"),
			MaxIterations:       getEnvAsInt("OPTIMIZER_MAX_ITERATIONS", 200),
			ConstraintTolerance: getEnvAsFloat("OPTIMIZER_CONSTRAINT_TOLERANCE", 1e-7),
			Timeout:             getEnvAsDuration("OPTIMIZER_TIMEOUT", 10*time.Second),
		},
		Frontier: FrontierConfig{
			Resolution:        getEnvAsInt("FRONTIER_RESOLUTION", 50),
			Workers:           getEnvAsInt("FRONTIER_WORKERS", 0),
			ReturnAggregation: getEnv("RETURN_AGGREGATION", "sum"),
		},
		MonteCarlo: MonteCarloConfig{
			Samples:  getEnvAsInt("MONTE_CARLO_SAMPLES", 5000),
			Seed:     uint64(getEnvAsInt("MONTE_CARLO_SEED", 42)),
			Sampling: getEnv("MONTE_CARLO_SAMPLING", "uniform"),
		},
		Charts: ChartsConfig{
			Enabled:   getEnvAsBool("CHARTS_ENABLED", false),
			OutputDir: getEnv("CHARTS_OUTPUT_DIR", "charts"),
			Width:     getEnvAsInt("CHARTS_WIDTH", 900),
			Height:    getEnvAsInt("CHARTS_HEIGHT", 600),
		},
		Runs: RunsConfig{
			Enabled:       getEnvAsBool("RUNS_ENABLED", true),
			DBPath:        getEnv("RUNS_DB_PATH", "data/runs.db"),
			Retention:     getEnvAsDuration("RUNS_RETENTION", 30*24*time.Hour),
			PruneSchedule: getEnv("RUNS_PRUNE_SCHEDULE", "@hourly"),
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("BACKUP_PREFIX", "finance-instruments-backup-"),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 30 2 * * *"),
			Retention:       getEnvAsDuration("BACKUP_RETENTION", 7*24*time.Hour),
			Keep:            getEnvAsInt("BACKUP_KEEP", 3),
			StagingDir:      getEnv("BACKUP_STAGING_DIR", "data/backup-staging"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every field against its struct tag rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
