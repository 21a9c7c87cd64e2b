package l2_service

import (
	"sort"

	"maxtrade/internal/domain"
)

type scoredCriterion struct {
	criterion  domain.Criterion
	factor     *domain.FactorSpec
	expression *Expression
}

// CriteriaScorer is the weighted-criteria formula shared by strategy
// evaluation and screening
type CriteriaScorer struct {
	criteria []scoredCriterion
	inputs   []domain.FactorSpec
}

type CriteriaScore struct {
	Symbol string
	// false when any criterion's value is unavailable
	Available bool
	// at least one criterion contributed a positive amount, or there
	// are no criteria at all
	Qualifies bool
	Score     float64
	Values    map[string]*float64
}

func NewCriteriaScorer(criteria []domain.Criterion) (*CriteriaScorer, error) {
	scorer := &CriteriaScorer{}
	seen := map[string]bool{}
	addInput := func(spec domain.FactorSpec) {
		if !seen[spec.Name] {
			seen[spec.Name] = true
			scorer.inputs = append(scorer.inputs, spec)
		}
	}

	for _, c := range criteria {
		if err := c.Validate(); err != nil {
			return nil, domain.ConfigurationError{Err: err}
		}
		sc := scoredCriterion{criterion: c}
		if c.Factor != "" {
			spec, err := domain.ParseFactorName(c.Factor)
			if err != nil {
				return nil, domain.ConfigurationError{Err: err}
			}
			sc.factor = spec
			addInput(*spec)
		} else {
			e, err := ParseExpression(c.Expression)
			if err != nil {
				return nil, err
			}
			sc.expression = e
			for _, in := range e.Inputs {
				addInput(in)
			}
		}
		scorer.criteria = append(scorer.criteria, sc)
	}

	sort.Slice(scorer.inputs, func(i, j int) bool {
		return scorer.inputs[i].Name < scorer.inputs[j].Name
	})
	return scorer, nil
}

// RequiredFactors is every factor the criteria read
func (s CriteriaScorer) RequiredFactors() []domain.FactorSpec {
	return s.inputs
}

func (s CriteriaScorer) Len() int {
	return len(s.criteria)
}

// Score applies sum(weight * value) over in-band criteria. a criterion
// outside its min/max band contributes zero
func (s CriteriaScorer) Score(snapshot *domain.FactorSnapshot) CriteriaScore {
	out := CriteriaScore{
		Symbol:    snapshot.Symbol,
		Available: true,
		Qualifies: len(s.criteria) == 0,
		Values:    map[string]*float64{},
	}

	for _, sc := range s.criteria {
		var value *float64
		if sc.factor != nil {
			if v, ok := snapshot.Get(sc.factor.Name); ok {
				value = &v
			}
		} else {
			// evaluation failures degrade to unavailable
			v, err := sc.expression.Evaluate(snapshot.Values)
			if err == nil {
				value = v
			}
		}

		out.Values[sc.criterion.Key()] = value
		if value == nil {
			out.Available = false
			continue
		}
		if !sc.criterion.InBand(*value) {
			continue
		}
		contribution := sc.criterion.Weight * *value
		out.Score += contribution
		if contribution > 0 {
			out.Qualifies = true
		}
	}

	if !out.Available {
		out.Qualifies = false
		out.Score = 0
	}
	return out
}

// RankScores sorts descending by score, ties broken by symbol
func RankScores(scores []CriteriaScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Symbol < scores[j].Symbol
	})
}
