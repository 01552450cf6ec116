package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Upbit struct {
		BaseURL   string `yaml:"base_url"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Quote     string `yaml:"quote_currency"`
	} `yaml:"upbit"`
	Schedule struct {
		CaptureCron   string `yaml:"capture_cron"`
		SelectionCron string `yaml:"selection_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Selection struct {
		MinTradeValue     float64 `yaml:"min_trade_value"`
		MinVolatility     float64 `yaml:"min_volatility"`
		MaxVolatility     float64 `yaml:"max_volatility"`
		MomentumThreshold float64 `yaml:"momentum_threshold"`
		DipMinRate        float64 `yaml:"dip_min_rate"`
		DipMaxRate        float64 `yaml:"dip_max_rate"`
		DipMinVolatility  float64 `yaml:"dip_min_volatility"`
		TargetMomentum    int     `yaml:"target_momentum"`
		TargetDip         int     `yaml:"target_dip"`
		CandidatePoolSize int     `yaml:"candidate_pool_size"`
		MajorsFile        string  `yaml:"majors_file"`
	} `yaml:"selection"`
	Report struct {
		WindowHours int `yaml:"window_hours"`
	} `yaml:"report"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields a default configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("UPBIT_ACCESS_KEY"); v != "" {
		cfg.Upbit.AccessKey = v
	}
	if v := os.Getenv("UPBIT_SECRET_KEY"); v != "" {
		cfg.Upbit.SecretKey = v
	}
	if v := os.Getenv("UPBIT_BASE_URL"); v != "" {
		cfg.Upbit.BaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_CAPTURE"); v != "" {
		cfg.Schedule.CaptureCron = v
	}
	if v := os.Getenv("CRON_SELECTION"); v != "" {
		cfg.Schedule.SelectionCron = v
	}
	if v := os.Getenv("MIN_TRADE_VALUE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Selection.MinTradeValue = f
		}
	}

	// Defaults
	if cfg.Upbit.BaseURL == "" {
		cfg.Upbit.BaseURL = "https://api.upbit.com"
	}
	if cfg.Upbit.Quote == "" {
		cfg.Upbit.Quote = "KRW"
	}
	if cfg.Schedule.CaptureCron == "" {
		cfg.Schedule.CaptureCron = "0 */10 * * * *"
	}
	if cfg.Schedule.SelectionCron == "" {
		cfg.Schedule.SelectionCron = "0 0 2 * * *"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/coin_sentinel.db"
	}
	if cfg.Selection.MinTradeValue == 0 {
		cfg.Selection.MinTradeValue = 1_000_000_000
	}
	if cfg.Selection.MinVolatility == 0 {
		cfg.Selection.MinVolatility = 0.01
	}
	if cfg.Selection.MaxVolatility == 0 {
		cfg.Selection.MaxVolatility = 0.25
	}
	if cfg.Selection.MomentumThreshold == 0 {
		cfg.Selection.MomentumThreshold = 0.03
	}
	if cfg.Selection.DipMinRate == 0 {
		cfg.Selection.DipMinRate = -0.06
	}
	if cfg.Selection.DipMinVolatility == 0 {
		cfg.Selection.DipMinVolatility = 0.015
	}
	if cfg.Selection.TargetMomentum == 0 {
		cfg.Selection.TargetMomentum = 6
	}
	if cfg.Selection.TargetDip == 0 {
		cfg.Selection.TargetDip = 6
	}
	if cfg.Selection.CandidatePoolSize == 0 {
		cfg.Selection.CandidatePoolSize = 12
	}
	if cfg.Selection.MajorsFile == "" {
		cfg.Selection.MajorsFile = "data/pinned_tickers.json"
	}
	if cfg.Report.WindowHours == 0 {
		cfg.Report.WindowHours = 24
	}

	return cfg, nil
}

// Validate checks that configured values are coherent.
func (c *Config) Validate() error {
	if c.Upbit.BaseURL == "" {
		return fmt.Errorf("upbit.base_url is required")
	}
	if c.Selection.MinTradeValue <= 0 {
		return fmt.Errorf("selection.min_trade_value must be positive")
	}
	if c.Selection.MaxVolatility <= c.Selection.MinVolatility {
		return fmt.Errorf("selection volatility bounds are invalid")
	}
	if c.Selection.DipMinRate > c.Selection.DipMaxRate {
		return fmt.Errorf("selection.dip_min_rate must not exceed dip_max_rate")
	}
	return nil
}
