package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"maxtrade/internal/domain"
	"maxtrade/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseCriteria(t *testing.T) {
	t.Run("weights default to one", func(t *testing.T) {
		criteria, err := parseCriteria("momentum, volatility=-0.5")
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff([]domain.Criterion{
			{Factor: "momentum", Weight: 1},
			{Factor: "volatility", Weight: -0.5},
		}, criteria))
	})

	t.Run("bad weight", func(t *testing.T) {
		_, err := parseCriteria("momentum=lots")
		require.Error(t, err)
	})

	t.Run("empty factor", func(t *testing.T) {
		_, err := parseCriteria("=1")
		require.Error(t, err)
	})
}

func TestBacktestOptions_toInput(t *testing.T) {
	in, err := backtestOptions{
		symbols:    "aapl, msft,",
		start:      "2024-01-01",
		end:        "2024-03-31",
		capital:    5000,
		strategyID: "value",
		rebalance:  "weekly",
	}.toInput()
	require.NoError(t, err)
	require.Equal(t, []string{"aapl", "msft"}, in.Symbols)
	require.Equal(t, util.NewDate(2024, 1, 1), in.StartDate)
	require.Equal(t, util.NewDate(2024, 3, 31), in.EndDate)
	require.Equal(t, domain.RebalanceFrequency_Weekly, in.Config.RebalanceFrequency)
	require.Nil(t, in.Config.Criteria)

	_, err = backtestOptions{start: "yesterday", end: "2024-03-31"}.toInput()
	require.Error(t, err)
}

func writeBarsCsv(t *testing.T, dir string) string {
	lines := []string{"date,symbol,open,high,low,close,volume"}
	for i := 0; i < 10; i++ {
		day := util.NewDate(2024, 1, 1).AddDate(0, 0, i).Format("2006-01-02")
		lines = append(lines,
			fmt.Sprintf("%s,AAPL,%d,%d,%d,%d,1000", day, 100+i, 100+i, 100+i, 100+i),
			fmt.Sprintf("%s,MSFT,%d,%d,%d,%d,1000", day, 200-i, 200-i, 200-i, 200-i),
		)
	}
	path := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	root := newRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestImportThenBacktest(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeBarsCsv(t, dir)
	dbPath := filepath.Join(dir, "bars.db")

	_, err := runCommand(t, "import", "--csv", csvPath, "--sqlite", dbPath)
	require.NoError(t, err)

	configPath := filepath.Join(dir, "config.yaml")
	config := fmt.Sprintf(`
data:
  source: sqlite
  sqlitePath: %s
  resultsPath: %s
engine:
  warmupDays: 0
factors:
  momentumPeriod: 3
  rsiPeriod: 3
  volatilityPeriod: 3
  kellyLookback: 5
`, dbPath, filepath.Join(dir, "results.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	tradesPath := filepath.Join(dir, "trades.csv")
	out, err := runCommand(t,
		"backtest",
		"--config", configPath,
		"--symbols", "AAPL,MSFT",
		"--start", "2024-01-01",
		"--end", "2024-01-10",
		"--capital", "10000",
		"--strategy", "equal_weight",
		"--rebalance", "never",
		"--trades-csv", tradesPath,
	)
	require.NoError(t, err)

	result := domain.BacktestResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, domain.BacktestStatus_Completed, result.Status)
	require.NotEmpty(t, result.Trades)

	trades, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(trades), "timestamp,symbol,side"))
}

func TestImportRequiresOneTarget(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeBarsCsv(t, dir)

	_, err := runCommand(t, "import", "--csv", csvPath)
	require.Error(t, err)

	_, err = runCommand(t, "import", "--csv", csvPath, "--sqlite", filepath.Join(dir, "a.db"), "--parquet", dir)
	require.Error(t, err)
}
