package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"maxtrade/cmd"
	"maxtrade/internal/app"
	"maxtrade/internal/domain"
	"maxtrade/internal/logger"
	"maxtrade/internal/repository"
	"maxtrade/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCommandContext(parent context.Context, log *zap.SugaredLogger) (context.Context, func()) {
	profile, endProfile := domain.NewProfile()
	ctx := domain.NewContextWithProfile(parent, profile)
	return logger.NewContext(ctx, log), endProfile
}

func printJson(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseSymbols(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseCriteria reads "momentum=1,value=-0.5". a missing weight means 1
func parseCriteria(s string) ([]domain.Criterion, error) {
	out := []domain.Criterion{}
	for _, part := range parseSymbols(s) {
		factor, weightStr, hasWeight := strings.Cut(part, "=")
		factor = strings.TrimSpace(factor)
		if factor == "" {
			return nil, fmt.Errorf("empty factor in %q", part)
		}
		weight := 1.0
		if hasWeight {
			w, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid weight for %s: %w", factor, err)
			}
			weight = w
		}
		out = append(out, domain.Criterion{
			Factor: factor,
			Weight: weight,
		})
	}
	return out, nil
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := util.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return &t, nil
}

type backtestOptions struct {
	symbols        string
	start          string
	end            string
	capital        float64
	strategyID     string
	maxPositions   int
	sizing         string
	rebalance      string
	criteria       string
	executionPrice string
	tradesCsv      string
}

func (o backtestOptions) toInput() (app.RunBacktestInput, error) {
	start, err := util.ParseDate(o.start)
	if err != nil {
		return app.RunBacktestInput{}, fmt.Errorf("failed to parse --start: %w", err)
	}
	end, err := util.ParseDate(o.end)
	if err != nil {
		return app.RunBacktestInput{}, fmt.Errorf("failed to parse --end: %w", err)
	}
	criteria, err := parseCriteria(o.criteria)
	if err != nil {
		return app.RunBacktestInput{}, err
	}
	if len(criteria) == 0 {
		criteria = nil
	}
	return app.RunBacktestInput{
		Symbols:        parseSymbols(o.symbols),
		StartDate:      start,
		EndDate:        end,
		InitialCapital: o.capital,
		Config: domain.StrategyConfig{
			StrategyID:         o.strategyID,
			MaxPositions:       o.maxPositions,
			PositionSizing:     domain.PositionSizing(o.sizing),
			RebalanceFrequency: domain.RebalanceFrequency(o.rebalance),
			ExecutionPrice:     domain.ExecutionPrice(o.executionPrice),
			Criteria:           criteria,
		},
	}, nil
}

func newBacktestCommand(root *rootOptions) *cobra.Command {
	opts := backtestOptions{}
	c := &cobra.Command{
		Use:   "backtest",
		Short: "run a single backtest and print the result as json",
		RunE: func(c *cobra.Command, args []string) error {
			in, err := opts.toInput()
			if err != nil {
				return err
			}
			deps, err := root.dependencies()
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx, endProfile := newCommandContext(c.Context(), deps.Logger)
			defer endProfile()

			result, err := deps.App.RunBacktest(ctx, in)
			if err != nil {
				return err
			}
			if opts.tradesCsv != "" {
				if err := writeTradesFile(opts.tradesCsv, result.Trades); err != nil {
					return err
				}
			}
			if err := printJson(c.OutOrStdout(), result); err != nil {
				return err
			}
			if result.Failed() {
				return fmt.Errorf("backtest failed: %s", result.Failure.Message)
			}
			return nil
		},
	}
	f := c.Flags()
	f.StringVar(&opts.symbols, "symbols", "", "comma separated universe")
	f.StringVar(&opts.start, "start", "", "start date, YYYY-MM-DD")
	f.StringVar(&opts.end, "end", "", "end date, YYYY-MM-DD")
	f.Float64Var(&opts.capital, "capital", 100000, "initial capital")
	f.StringVar(&opts.strategyID, "strategy", "momentum", "strategy id")
	f.IntVar(&opts.maxPositions, "max-positions", 0, "max positions, 0 uses the strategy default")
	f.StringVar(&opts.sizing, "sizing", "", "equal_weight, percent, fixed or kelly")
	f.StringVar(&opts.rebalance, "rebalance", "", "daily, weekly, monthly, quarterly or never")
	f.StringVar(&opts.criteria, "criteria", "", "override criteria, e.g. momentum=1,volatility=-0.5")
	f.StringVar(&opts.executionPrice, "execution-price", "", "next_open or close")
	f.StringVar(&opts.tradesCsv, "trades-csv", "", "also write the trade log to this csv file")
	_ = c.MarkFlagRequired("symbols")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func writeTradesFile(path string, trades []domain.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := repository.WriteTradesCsv(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newScreenCommand(root *rootOptions) *cobra.Command {
	var (
		symbols  string
		criteria string
		limit    int
		asOf     string
	)
	c := &cobra.Command{
		Use:   "screen",
		Short: "rank symbols by weighted factor criteria",
		RunE: func(c *cobra.Command, args []string) error {
			parsed, err := parseCriteria(criteria)
			if err != nil {
				return err
			}
			date, err := parseOptionalDate(asOf)
			if err != nil {
				return err
			}
			deps, err := root.dependencies()
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx, endProfile := newCommandContext(c.Context(), deps.Logger)
			defer endProfile()

			results, err := deps.App.Screen(ctx, app.ScreenInput{
				Symbols:  parseSymbols(symbols),
				Criteria: parsed,
				Limit:    limit,
				AsOf:     date,
			})
			if err != nil {
				return err
			}
			return printJson(c.OutOrStdout(), results)
		},
	}
	f := c.Flags()
	f.StringVar(&symbols, "symbols", "", "comma separated universe, empty screens every known symbol")
	f.StringVar(&criteria, "criteria", "", "e.g. momentum=1,volatility=-0.5")
	f.IntVar(&limit, "limit", 20, "number of results")
	f.StringVar(&asOf, "as-of", "", "screen date, YYYY-MM-DD; defaults to the latest bar")
	_ = c.MarkFlagRequired("criteria")
	return c
}

func newFactorsCommand(root *rootOptions) *cobra.Command {
	var (
		categories string
		asOf       string
	)
	c := &cobra.Command{
		Use:   "factors SYMBOL",
		Short: "compute the factor snapshot for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			date, err := parseOptionalDate(asOf)
			if err != nil {
				return err
			}
			deps, err := root.dependencies()
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx, endProfile := newCommandContext(c.Context(), deps.Logger)
			defer endProfile()

			snapshot, err := deps.App.ComputeFactors(ctx, app.ComputeFactorsInput{
				Symbol:     args[0],
				Categories: parseSymbols(categories),
				AsOf:       date,
			})
			if err != nil {
				return err
			}
			return printJson(c.OutOrStdout(), snapshot)
		},
	}
	c.Flags().StringVar(&categories, "categories", "", "momentum, volatility, value, quality")
	c.Flags().StringVar(&asOf, "as-of", "", "YYYY-MM-DD; defaults to the latest bar")
	return c
}

func newStrategiesCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "list registered strategies",
		RunE: func(c *cobra.Command, args []string) error {
			deps, err := root.dependencies()
			if err != nil {
				return err
			}
			defer deps.Close()
			return printJson(c.OutOrStdout(), deps.App.ListStrategies())
		},
	}
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int
	c := &cobra.Command{
		Use:   "serve",
		Short: "start the http api",
		RunE: func(c *cobra.Command, args []string) error {
			deps, err := root.dependencies()
			if err != nil {
				return err
			}
			defer deps.Close()
			if port == 0 {
				port = deps.Config.Server.Port
			}
			deps.Logger.Infof("listening on %d", port)
			return deps.ApiHandler.StartApi(port)
		},
	}
	c.Flags().IntVar(&port, "port", 0, "overrides server.port")
	return c
}

func newImportCommand() *cobra.Command {
	var (
		barsCsv    string
		sqlitePath string
		parquetDir string
	)
	c := &cobra.Command{
		Use:   "import",
		Short: "load a bars csv into a sqlite db or parquet directory",
		RunE: func(c *cobra.Command, args []string) error {
			log := logger.New()
			bars, err := repository.ReadBarsCsvFile(barsCsv)
			if err != nil {
				return err
			}
			writer, closeWriter, err := cmd.NewBarWriter(sqlitePath, parquetDir)
			if err != nil {
				return err
			}
			defer closeWriter()

			ctx, endProfile := newCommandContext(c.Context(), log)
			defer endProfile()
			if err := writer.Add(ctx, bars); err != nil {
				return fmt.Errorf("failed to import bars: %w", err)
			}
			log.Infof("imported %d bars from %s", len(bars), barsCsv)
			return nil
		},
	}
	f := c.Flags()
	f.StringVar(&barsCsv, "csv", "", "bars csv with date,symbol,open,high,low,close,volume")
	f.StringVar(&sqlitePath, "sqlite", "", "target sqlite db")
	f.StringVar(&parquetDir, "parquet", "", "target parquet directory")
	_ = c.MarkFlagRequired("csv")
	return c
}
