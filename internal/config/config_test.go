package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		require.Equal(t, 60*time.Second, cfg.Engine.RunTimeout)
		require.Equal(t, 10, cfg.Engine.DefaultMaxPositions)
		require.Equal(t, "next_open", cfg.Engine.ExecutionPrice)
		require.Equal(t, FactorsConfig{
			MomentumPeriod:   20,
			RsiPeriod:        14,
			VolatilityPeriod: 20,
			KellyLookback:    60,
		}, cfg.Factors)
		require.Equal(t, DataSource_Memory, cfg.Data.Source)
	})

	t.Run("file and env overrides", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "maxtrade.yaml")
		err := os.WriteFile(path, []byte(`
engine:
  maxConcurrentRuns: 2
  runTimeout: 5s
data:
  source: csv
  csvPath: /tmp/bars.csv
`), 0o644)
		require.NoError(t, err)

		t.Setenv("MAXTRADE_ENGINE_MAXBARS", "500")

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 2, cfg.Engine.MaxConcurrentRuns)
		require.Equal(t, 5*time.Second, cfg.Engine.RunTimeout)
		require.Equal(t, 500, cfg.Engine.MaxBars)
		require.Equal(t, DataSource_Csv, cfg.Data.Source)
		require.Equal(t, "/tmp/bars.csv", cfg.Data.CsvPath)
	})

	t.Run("source without path", func(t *testing.T) {
		t.Setenv("MAXTRADE_DATA_SOURCE", "sqlite")
		_, err := Load("")
		require.ErrorContains(t, err, "data.sqlitePath")
	})
}

func TestParseStrategyPresets(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		presets, err := ParseStrategyPresets([]byte(`
strategies:
  - id: Cheap_Momentum
    max_positions: 5
    position_sizing: equal_weight
    rebalance_frequency: weekly
    criteria:
      - factor: momentum_60
        weight: 1
      - expression: 1 / pe_ratio
        name: earnings_yield
        weight: 0.5
        min: 0
`))
		require.NoError(t, err)
		require.Len(t, presets, 1)

		zero := 0.0
		expected := StrategyPreset{
			ID:                 "cheap_momentum",
			MaxPositions:       5,
			PositionSizing:     "equal_weight",
			RebalanceFrequency: "weekly",
		}
		require.Equal(t, "", cmp.Diff(expected.ID, presets[0].ID))
		require.Equal(t, expected.MaxPositions, presets[0].MaxPositions)
		require.Len(t, presets[0].Criteria, 2)
		require.Equal(t, "earnings_yield", presets[0].Criteria[1].Key())
		require.Equal(t, &zero, presets[0].Criteria[1].Min)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := ParseStrategyPresets([]byte(`
strategies:
  - id: a
  - id: A
`))
		require.ErrorContains(t, err, "duplicate")
	})

	t.Run("bad sizing", func(t *testing.T) {
		_, err := ParseStrategyPresets([]byte(`
strategies:
  - id: a
    position_sizing: martingale
`))
		require.ErrorContains(t, err, "invalid position sizing")
	})
}
