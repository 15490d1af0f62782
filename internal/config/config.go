// Package config holds the explicit run configuration for the charge-mapping tools.
//
// Values come from environment variables with the CHARGEMAP_ prefix (an optional .env file
// is read first), for example:
//
//	CHARGEMAP_GCP_BUCKET=invoice_inference_json_output
//	CHARGEMAP_MATCH_ACCEPT_THRESHOLD=5
//	CHARGEMAP_MATCH_TIE_BREAK=first
//	CHARGEMAP_LOG_LEVEL=debug
//
// The loaded Config is passed into every entry point; nothing reads it from package state.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const envPrefix = "CHARGEMAP"

// Tie-break policies for equal-scoring candidates.
const (
	TieBreakFirst  = "first"
	TieBreakRanked = "ranked"
)

// Join key modes.
const (
	JoinKeyAuto          = "auto"
	JoinKeyInvoiceNumber = "invoice_number"
	JoinKeyMD5           = "md5"
)

type Config struct {
	GCP      GCPConfig
	BigQuery BigQueryConfig
	Output   OutputConfig
	Match    MatchConfig
	Download DownloadConfig
	Log      LogConfig
}

type GCPConfig struct {
	ProjectID string `envconfig:"PROJECT" default:"academic-torch-405913"`
	Bucket    string `envconfig:"BUCKET" default:"invoice_inference_json_output"`
}

// BigQueryConfig names the billing ledger source and the optional joined-record sink.
// An empty JoinedTable disables publishing.
type BigQueryConfig struct {
	Dataset      string `envconfig:"DATASET" default:"billing" validate:"required"`
	ChargesTable string `envconfig:"CHARGES_TABLE" default:"billing_charges" validate:"required"`
	JoinedTable  string `envconfig:"JOINED_TABLE"`
}

type OutputConfig struct {
	Dir    string `envconfig:"DIR" default:"."`
	Prefix string `envconfig:"PREFIX" default:"invoice_billing" validate:"required"`
	XLSX   bool   `envconfig:"XLSX" default:"false"`
	TopN   int    `envconfig:"TOP_N" default:"20" validate:"gte=0"`
}

// MatchConfig carries the scoring constants. The defaults are the production values:
// an amount within 0.02 scores 10, within 1.00 scores 5, and a candidate needs 5 to be accepted.
type MatchConfig struct {
	AcceptThreshold int     `envconfig:"ACCEPT_THRESHOLD" default:"5" validate:"gte=0"`
	ExactTolerance  float64 `envconfig:"EXACT_TOLERANCE" default:"0.02" validate:"gt=0"`
	NearTolerance   float64 `envconfig:"NEAR_TOLERANCE" default:"1.00" validate:"gtfield=ExactTolerance"`
	ExactScore      int     `envconfig:"EXACT_SCORE" default:"10" validate:"gte=0"`
	NearScore       int     `envconfig:"NEAR_SCORE" default:"5" validate:"gte=0"`
	TieBreak        string  `envconfig:"TIE_BREAK" default:"first" validate:"oneof=first ranked"`
	Exclusive       bool    `envconfig:"EXCLUSIVE" default:"false"`
	JoinKey         string  `envconfig:"JOIN_KEY" default:"auto" validate:"oneof=auto invoice_number md5"`
	Workers         int     `envconfig:"WORKERS" default:"1" validate:"gte=1"`
}

type DownloadConfig struct {
	Workers    int `envconfig:"WORKERS" default:"5" validate:"gte=1"`
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"console" validate:"oneof=console json"`
}

// ExactTol returns the exact-tier tolerance as a decimal.
func (m MatchConfig) ExactTol() decimal.Decimal {
	return decimal.NewFromFloat(m.ExactTolerance)
}

// NearTol returns the near-tier tolerance as a decimal.
func (m MatchConfig) NearTol() decimal.Decimal {
	return decimal.NewFromFloat(m.NearTolerance)
}

// Load reads an optional .env file, then the CHARGEMAP_* environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in defaults without reading the environment.
func Default() *Config {
	return &Config{
		GCP: GCPConfig{
			ProjectID: "academic-torch-405913",
			Bucket:    "invoice_inference_json_output",
		},
		BigQuery: BigQueryConfig{
			Dataset:      "billing",
			ChargesTable: "billing_charges",
		},
		Output: OutputConfig{
			Dir:    ".",
			Prefix: "invoice_billing",
			TopN:   20,
		},
		Match: MatchConfig{
			AcceptThreshold: 5,
			ExactTolerance:  0.02,
			NearTolerance:   1.00,
			ExactScore:      10,
			NearScore:       5,
			TieBreak:        TieBreakFirst,
			JoinKey:         JoinKeyAuto,
			Workers:         1,
		},
		Download: DownloadConfig{
			Workers:    5,
			MaxRetries: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks field constraints declared in the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
