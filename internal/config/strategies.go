package config

import (
	"fmt"
	"os"
	"strings"

	"maxtrade/internal/domain"

	"gopkg.in/yaml.v3"
)

// StrategyPreset is a named strategy defined in the presets file
type StrategyPreset struct {
	ID                 string             `yaml:"id"`
	Description        string             `yaml:"description"`
	MaxPositions       int                `yaml:"max_positions"`
	PositionSizing     string             `yaml:"position_sizing"`
	RebalanceFrequency string             `yaml:"rebalance_frequency"`
	PositionPercent    float64            `yaml:"position_percent"`
	PositionAmount     float64            `yaml:"position_amount"`
	Criteria           []domain.Criterion `yaml:"criteria"`
}

type strategyPresetsFile struct {
	Strategies []StrategyPreset `yaml:"strategies"`
}

func LoadStrategyPresets(path string) ([]StrategyPreset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategies file %s: %w", path, err)
	}
	return ParseStrategyPresets(data)
}

func ParseStrategyPresets(data []byte) ([]StrategyPreset, error) {
	file := strategyPresetsFile{}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse strategies file: %w", err)
	}

	seen := map[string]bool{}
	for i, preset := range file.Strategies {
		id := strings.ToLower(strings.TrimSpace(preset.ID))
		if id == "" {
			return nil, fmt.Errorf("strategy preset %d is missing id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate strategy preset %q", id)
		}
		seen[id] = true
		file.Strategies[i].ID = id

		if err := preset.ToConfig().Validate(); err != nil {
			return nil, fmt.Errorf("invalid strategy preset %q: %w", id, err)
		}
	}

	return file.Strategies, nil
}

func (p StrategyPreset) ToConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyID:         p.ID,
		MaxPositions:       p.MaxPositions,
		PositionSizing:     domain.PositionSizing(p.PositionSizing),
		RebalanceFrequency: domain.RebalanceFrequency(p.RebalanceFrequency),
		PositionPercent:    p.PositionPercent,
		PositionAmount:     p.PositionAmount,
		Criteria:           p.Criteria,
	}
}
