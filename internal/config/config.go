package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "MAXTRADE"

type Config struct {
	Server         ServerConfig  `mapstructure:"server"`
	Engine         EngineConfig  `mapstructure:"engine"`
	Factors        FactorsConfig `mapstructure:"factors"`
	Data           DataConfig    `mapstructure:"data"`
	StrategiesFile string        `mapstructure:"strategiesFile"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type EngineConfig struct {
	MaxConcurrentRuns   int           `mapstructure:"maxConcurrentRuns"`
	RunTimeout          time.Duration `mapstructure:"runTimeout"`
	MaxBars             int           `mapstructure:"maxBars"`
	DefaultMaxPositions int           `mapstructure:"defaultMaxPositions"`
	CommissionRate      float64       `mapstructure:"commissionRate"`
	CommissionMinimum   float64       `mapstructure:"commissionMinimum"`
	ExecutionPrice      string        `mapstructure:"executionPrice"`
	// calendar days of history loaded before startDate so factors are
	// available on the first rebalance
	WarmupDays      int `mapstructure:"warmupDays"`
	ScreenerWorkers int `mapstructure:"screenerWorkers"`
}

type FactorsConfig struct {
	MomentumPeriod   int `mapstructure:"momentumPeriod"`
	RsiPeriod        int `mapstructure:"rsiPeriod"`
	VolatilityPeriod int `mapstructure:"volatilityPeriod"`
	KellyLookback    int `mapstructure:"kellyLookback"`
}

type DataSource string

const (
	DataSource_Memory  DataSource = "memory"
	DataSource_Csv     DataSource = "csv"
	DataSource_Parquet DataSource = "parquet"
	DataSource_Sqlite  DataSource = "sqlite"
)

type DataConfig struct {
	Source           DataSource `mapstructure:"source"`
	CsvPath          string     `mapstructure:"csvPath"`
	FundamentalsPath string     `mapstructure:"fundamentalsPath"`
	ParquetDir       string     `mapstructure:"parquetDir"`
	SqlitePath       string     `mapstructure:"sqlitePath"`
	// results are persisted only when set
	ResultsPath string `mapstructure:"resultsPath"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3009)

	v.SetDefault("engine.maxConcurrentRuns", 4)
	v.SetDefault("engine.runTimeout", "60s")
	v.SetDefault("engine.maxBars", 20000)
	v.SetDefault("engine.defaultMaxPositions", 10)
	v.SetDefault("engine.commissionRate", 0.001)
	v.SetDefault("engine.commissionMinimum", 1.0)
	v.SetDefault("engine.executionPrice", "next_open")
	v.SetDefault("engine.warmupDays", 120)
	v.SetDefault("engine.screenerWorkers", 10)

	v.SetDefault("factors.momentumPeriod", 20)
	v.SetDefault("factors.rsiPeriod", 14)
	v.SetDefault("factors.volatilityPeriod", 20)
	v.SetDefault("factors.kellyLookback", 60)

	v.SetDefault("data.source", string(DataSource_Memory))
	v.SetDefault("data.csvPath", "")
	v.SetDefault("data.fundamentalsPath", "")
	v.SetDefault("data.parquetDir", "")
	v.SetDefault("data.sqlitePath", "")
	v.SetDefault("data.resultsPath", "")

	v.SetDefault("strategiesFile", "")
}

// Load reads an optional yaml file and MAXTRADE_* env overrides, e.g.
// MAXTRADE_ENGINE_RUNTIMEOUT=30s. an empty path uses defaults + env
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Errorf("default config is invalid: %w", err))
	}
	return cfg
}

func (c Config) Validate() error {
	errs := []error{}
	if c.Engine.MaxConcurrentRuns < 1 {
		errs = append(errs, fmt.Errorf("engine.maxConcurrentRuns must be >= 1"))
	}
	if c.Engine.RunTimeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.runTimeout must be positive"))
	}
	if c.Engine.MaxBars < 1 {
		errs = append(errs, fmt.Errorf("engine.maxBars must be >= 1"))
	}
	if c.Engine.DefaultMaxPositions < 1 {
		errs = append(errs, fmt.Errorf("engine.defaultMaxPositions must be >= 1"))
	}
	if c.Engine.CommissionRate < 0 || c.Engine.CommissionMinimum < 0 {
		errs = append(errs, fmt.Errorf("engine commission settings must be >= 0"))
	}
	if c.Engine.ScreenerWorkers < 1 {
		errs = append(errs, fmt.Errorf("engine.screenerWorkers must be >= 1"))
	}
	if c.Engine.WarmupDays < 0 {
		errs = append(errs, fmt.Errorf("engine.warmupDays must be >= 0"))
	}
	if c.Factors.MomentumPeriod < 1 || c.Factors.VolatilityPeriod < 2 || c.Factors.RsiPeriod < 2 || c.Factors.KellyLookback < 2 {
		errs = append(errs, fmt.Errorf("factor periods out of range"))
	}

	switch c.Data.Source {
	case DataSource_Memory:
	case DataSource_Csv:
		if c.Data.CsvPath == "" {
			errs = append(errs, fmt.Errorf("data.csvPath is required for csv source"))
		}
	case DataSource_Parquet:
		if c.Data.ParquetDir == "" {
			errs = append(errs, fmt.Errorf("data.parquetDir is required for parquet source"))
		}
	case DataSource_Sqlite:
		if c.Data.SqlitePath == "" {
			errs = append(errs, fmt.Errorf("data.sqlitePath is required for sqlite source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown data.source %q", c.Data.Source))
	}

	return errors.Join(errs...)
}
