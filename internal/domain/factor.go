package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type FactorKind string

const (
	FactorKind_Momentum   FactorKind = "momentum"
	FactorKind_Rsi        FactorKind = "rsi"
	FactorKind_Macd       FactorKind = "macd"
	FactorKind_Volatility FactorKind = "volatility"
	FactorKind_PeRatio    FactorKind = "pe_ratio"
	FactorKind_PbRatio    FactorKind = "pb_ratio"
	FactorKind_Roe        FactorKind = "roe"
)

// windowed factors take a bar count, the rest ignore Period
var windowedFactors = map[FactorKind]bool{
	FactorKind_Momentum:   true,
	FactorKind_Rsi:        true,
	FactorKind_Volatility: true,
}

var knownFactors = map[FactorKind]bool{
	FactorKind_Momentum:   true,
	FactorKind_Rsi:        true,
	FactorKind_Macd:       true,
	FactorKind_Volatility: true,
	FactorKind_PeRatio:    true,
	FactorKind_PbRatio:    true,
	FactorKind_Roe:        true,
}

// FactorSpec is a parsed factor name, e.g. momentum_60 -> {momentum, 60}
// Period 0 means "use the engine default"
type FactorSpec struct {
	Name   string
	Kind   FactorKind
	Period int
}

func (f FactorSpec) IsFundamental() bool {
	return f.Kind == FactorKind_PeRatio || f.Kind == FactorKind_PbRatio || f.Kind == FactorKind_Roe
}

func ParseFactorName(name string) (*FactorSpec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("empty factor name")
	}
	if knownFactors[FactorKind(name)] {
		return &FactorSpec{Name: name, Kind: FactorKind(name)}, nil
	}

	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return nil, fmt.Errorf("unknown factor %q", name)
	}
	kind := FactorKind(name[:idx])
	if !windowedFactors[kind] {
		return nil, fmt.Errorf("unknown factor %q", name)
	}
	period, err := strconv.Atoi(name[idx+1:])
	if err != nil || period < 1 {
		return nil, fmt.Errorf("invalid period in factor %q", name)
	}
	if kind == FactorKind_Rsi && period < 2 {
		return nil, fmt.Errorf("rsi period must be >= 2, got %d", period)
	}
	return &FactorSpec{Name: name, Kind: kind, Period: period}, nil
}

type FactorCategory string

const (
	FactorCategory_Momentum   FactorCategory = "momentum"
	FactorCategory_Volatility FactorCategory = "volatility"
	FactorCategory_Value      FactorCategory = "value"
	FactorCategory_Quality    FactorCategory = "quality"
)

var factorsByCategory = map[FactorCategory][]string{
	FactorCategory_Momentum:   {string(FactorKind_Momentum), string(FactorKind_Rsi), string(FactorKind_Macd)},
	FactorCategory_Volatility: {string(FactorKind_Volatility)},
	FactorCategory_Value:      {string(FactorKind_PeRatio), string(FactorKind_PbRatio)},
	FactorCategory_Quality:    {string(FactorKind_Roe)},
}

func AllFactorCategories() []FactorCategory {
	return []FactorCategory{
		FactorCategory_Momentum,
		FactorCategory_Volatility,
		FactorCategory_Value,
		FactorCategory_Quality,
	}
}

// FactorNamesForCategories expands categories into factor names. no
// categories means all of them
func FactorNamesForCategories(categories []string) ([]string, error) {
	if len(categories) == 0 {
		for _, c := range AllFactorCategories() {
			categories = append(categories, string(c))
		}
	}
	seen := map[string]bool{}
	out := []string{}
	for _, c := range categories {
		names, ok := factorsByCategory[FactorCategory(strings.ToLower(strings.TrimSpace(c)))]
		if !ok {
			return nil, fmt.Errorf("unknown factor category %q", c)
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out, nil
}

// FactorSnapshot holds factor values for a symbol at a timestamp. a nil
// value means the factor is unavailable (e.g. not enough history)
type FactorSnapshot struct {
	Symbol string              `json:"symbol"`
	AsOf   time.Time           `json:"asOf"`
	Values map[string]*float64 `json:"values"`
}

func NewFactorSnapshot(symbol string, asOf time.Time) *FactorSnapshot {
	return &FactorSnapshot{
		Symbol: symbol,
		AsOf:   asOf,
		Values: map[string]*float64{},
	}
}

// Set stores v, mapping non-finite values to unavailable
func (f *FactorSnapshot) Set(name string, v *float64) {
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		v = nil
	}
	f.Values[name] = v
}

func (f FactorSnapshot) Get(name string) (float64, bool) {
	v, ok := f.Values[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

func (f FactorSnapshot) Names() []string {
	out := make([]string, 0, len(f.Values))
	for k := range f.Values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Criterion is one weighted scoring term. exactly one of Factor or
// Expression is set
type Criterion struct {
	Factor     string   `json:"factor,omitempty" yaml:"factor"`
	Expression string   `json:"expression,omitempty" yaml:"expression"`
	Name       string   `json:"name,omitempty" yaml:"name"`
	Weight     float64  `json:"weight" yaml:"weight"`
	Min        *float64 `json:"min,omitempty" yaml:"min"`
	Max        *float64 `json:"max,omitempty" yaml:"max"`
}

// Key is the name the criterion's value is stored under
func (c Criterion) Key() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Factor != "" {
		return strings.ToLower(strings.TrimSpace(c.Factor))
	}
	return c.Expression
}

// InBand reports whether v satisfies the optional min/max band
func (c Criterion) InBand(v float64) bool {
	if c.Min != nil && v < *c.Min {
		return false
	}
	if c.Max != nil && v > *c.Max {
		return false
	}
	return true
}

func (c Criterion) Validate() error {
	if (c.Factor == "") == (c.Expression == "") {
		return fmt.Errorf("criterion must set exactly one of factor or expression")
	}
	if math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
		return fmt.Errorf("criterion %s has non-finite weight", c.Key())
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return fmt.Errorf("criterion %s has min > max", c.Key())
	}
	if c.Factor != "" {
		if _, err := ParseFactorName(c.Factor); err != nil {
			return err
		}
	}
	return nil
}
