package cmd

import (
	"database/sql"
	"fmt"

	"maxtrade/api"
	"maxtrade/internal/app"
	"maxtrade/internal/config"
	"maxtrade/internal/domain"
	"maxtrade/internal/logger"
	"maxtrade/internal/repository"
	l1_service "maxtrade/internal/service/l1"
	l2_service "maxtrade/internal/service/l2"
	l3_service "maxtrade/internal/service/l3"

	"go.uber.org/zap"
)

type Dependencies struct {
	Config        *config.Config
	Logger        *zap.SugaredLogger
	App           app.EngineApp
	ApiHandler    *api.ApiHandler
	BarRepository repository.BarRepository

	dbs []*sql.DB
}

func (d *Dependencies) Close() {
	for _, db := range d.dbs {
		if err := db.Close(); err != nil {
			d.Logger.Errorf("failed to close db: %v", err)
		}
	}
}

// InitializeDependencies builds the whole object graph from cfg
func InitializeDependencies(cfg *config.Config) (*Dependencies, error) {
	log := logger.New()
	deps := &Dependencies{
		Config: cfg,
		Logger: log,
	}

	var sqliteDb *sql.DB
	openSqlite := func(path string) (*sql.DB, error) {
		if sqliteDb != nil && path == cfg.Data.SqlitePath {
			return sqliteDb, nil
		}
		db, err := repository.OpenSqlite(path)
		if err != nil {
			return nil, err
		}
		deps.dbs = append(deps.dbs, db)
		return db, nil
	}

	var (
		barRepository          repository.BarRepository
		fundamentalsRepository repository.FundamentalsRepository
		err                    error
	)
	switch cfg.Data.Source {
	case config.DataSource_Memory:
		barRepository, err = repository.NewMemoryBarRepository(nil)
	case config.DataSource_Csv:
		barRepository, err = repository.NewCsvBarRepository(cfg.Data.CsvPath)
	case config.DataSource_Parquet:
		barRepository = repository.NewParquetBarRepository(cfg.Data.ParquetDir)
	case config.DataSource_Sqlite:
		sqliteDb, err = openSqlite(cfg.Data.SqlitePath)
		if err == nil {
			barRepository = repository.NewSqliteBarRepository(sqliteDb)
			fundamentalsRepository = repository.NewSqliteFundamentalsRepository(sqliteDb)
		}
	default:
		err = fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize bar repository: %w", err)
	}

	if cfg.Data.FundamentalsPath != "" {
		fundamentalsRepository, err = repository.NewCsvFundamentalsRepository(cfg.Data.FundamentalsPath)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize fundamentals repository: %w", err)
		}
	}

	var backtestResultRepository repository.BacktestResultRepository
	if cfg.Data.ResultsPath != "" {
		db, err := openSqlite(cfg.Data.ResultsPath)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to open results db: %w", err)
		}
		backtestResultRepository = repository.NewBacktestResultRepository(db)
	}

	presets := []l3_service.Strategy{}
	if cfg.StrategiesFile != "" {
		loaded, err := config.LoadStrategyPresets(cfg.StrategiesFile)
		if err != nil {
			deps.Close()
			return nil, err
		}
		for _, p := range loaded {
			presets = append(presets, l3_service.StrategyFromPreset(p))
		}
	}

	executionPrice, err := domain.NewExecutionPrice(cfg.Engine.ExecutionPrice)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("invalid engine.executionPrice: %w", err)
	}

	priceService := l1_service.NewPriceService(barRepository, cfg.Engine.ScreenerWorkers)
	factorService := l2_service.NewFactorService(fundamentalsRepository, l2_service.FactorDefaults{
		MomentumPeriod:   cfg.Factors.MomentumPeriod,
		RsiPeriod:        cfg.Factors.RsiPeriod,
		VolatilityPeriod: cfg.Factors.VolatilityPeriod,
	})
	strategyService, err := l3_service.NewStrategyService(l3_service.EngineDefaults{
		MaxPositions:      cfg.Engine.DefaultMaxPositions,
		ExecutionPrice:    executionPrice,
		CommissionRate:    cfg.Engine.CommissionRate,
		CommissionMinimum: cfg.Engine.CommissionMinimum,
		KellyLookback:     cfg.Factors.KellyLookback,
	}, presets)
	if err != nil {
		deps.Close()
		return nil, err
	}
	backtestService := l3_service.NewBacktestService(priceService, factorService, strategyService, l3_service.BacktestSettings{
		MaxBars:    cfg.Engine.MaxBars,
		WarmupDays: cfg.Engine.WarmupDays,
	})
	screenerService := l3_service.NewScreenerService(priceService, factorService, l3_service.ScreenerSettings{
		Workers:    cfg.Engine.ScreenerWorkers,
		WarmupDays: cfg.Engine.WarmupDays,
	})

	deps.BarRepository = barRepository
	deps.App = app.NewEngineApp(
		barRepository,
		backtestResultRepository,
		priceService,
		factorService,
		strategyService,
		backtestService,
		screenerService,
		app.EngineSettings{
			MaxConcurrentRuns: cfg.Engine.MaxConcurrentRuns,
			RunTimeout:        cfg.Engine.RunTimeout,
			WarmupDays:        cfg.Engine.WarmupDays,
		},
	)
	deps.ApiHandler = &api.ApiHandler{
		App:    deps.App,
		Logger: log,
	}

	log.Infof("initialized with %s data source", cfg.Data.Source)
	return deps, nil
}

// NewBarWriter opens an import target. exactly one of sqlitePath or
// parquetDir must be set
func NewBarWriter(sqlitePath, parquetDir string) (repository.BarWriter, func() error, error) {
	switch {
	case sqlitePath != "" && parquetDir != "":
		return nil, nil, fmt.Errorf("choose one of sqlite or parquet as the import target")
	case sqlitePath != "":
		db, err := repository.OpenSqlite(sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSqliteBarRepository(db), db.Close, nil
	case parquetDir != "":
		return repository.NewParquetBarRepository(parquetDir), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("an import target is required")
	}
}
