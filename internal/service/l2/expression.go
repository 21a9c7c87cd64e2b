package l2_service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"maxtrade/internal/domain"

	"github.com/maja42/goval"
)

// Expression is a parsed criterion formula such as "1 / pe_ratio" or
// "momentum_60 / volatility". identifiers are factor names
type Expression struct {
	Source string
	Inputs []domain.FactorSpec
}

var goLiterals = map[string]bool{
	"true":  true,
	"false": true,
	"nil":   true,
}

func toFloat(arg interface{}) (float64, error) {
	switch v := arg.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	}
	return 0, fmt.Errorf("expected number, got %T", arg)
}

func unaryFunction(name string, f func(float64) float64) goval.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("%s needs 1 arg, got %d", name, len(args))
		}
		x, err := toFloat(args[0])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return f(x), nil
	}
}

func reduceFunction(name string, pick func(a, b float64) float64) goval.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) < 1 {
			return 0, fmt.Errorf("%s needs at least 1 arg", name)
		}
		out, err := toFloat(args[0])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		for _, arg := range args[1:] {
			x, err := toFloat(arg)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", name, err)
			}
			out = pick(out, x)
		}
		return out, nil
	}
}

var expressionFunctions = map[string]goval.ExpressionFunction{
	"abs":  unaryFunction("abs", math.Abs),
	"sqrt": unaryFunction("sqrt", math.Sqrt),
	"log":  unaryFunction("log", math.Log),
	"min":  reduceFunction("min", math.Min),
	"max":  reduceFunction("max", math.Max),
}

// identifiers returns the names referenced in src, split into plain
// identifiers and function calls. string literals and numbers are skipped
func identifiers(src string) (vars []string, funcs []string) {
	runes := []rune(src)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			quote := r
			i++
			for i < len(runes) && runes[i] != quote {
				if runes[i] == '\\' {
					i++
				}
				i++
			}
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			i++
			for i < len(runes) {
				c := runes[i]
				if unicode.IsDigit(c) || c == '.' || c == 'x' || c == 'X' || unicode.Is(unicode.ASCII_Hex_Digit, c) {
					i++
					continue
				}
				if (c == '+' || c == '-') && (runes[i-1] == 'e' || runes[i-1] == 'E') {
					i++
					continue
				}
				break
			}
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			name := string(runes[start:i])
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && runes[j] == '(' {
				funcs = append(funcs, name)
			} else {
				vars = append(vars, name)
			}
		default:
			i++
		}
	}
	return vars, funcs
}

// ParseExpression checks identifiers against the factor catalogue and
// dry-runs the formula. failures are configuration errors
func ParseExpression(src string) (*Expression, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, domain.NewConfigurationError("empty expression")
	}

	vars, funcs := identifiers(src)
	for _, f := range funcs {
		if _, ok := expressionFunctions[f]; !ok {
			return nil, domain.NewConfigurationError("unknown function %q in expression %q", f, src)
		}
	}

	seen := map[string]bool{}
	inputs := []domain.FactorSpec{}
	for _, v := range vars {
		if goLiterals[v] || seen[v] {
			continue
		}
		seen[v] = true
		spec, err := domain.ParseFactorName(v)
		if err != nil {
			return nil, domain.NewConfigurationError("unknown identifier %q in expression %q", v, src)
		}
		inputs = append(inputs, *spec)
	}
	sort.Slice(inputs, func(i, j int) bool {
		return inputs[i].Name < inputs[j].Name
	})

	e := &Expression{Source: src, Inputs: inputs}

	probe := map[string]*float64{}
	for _, in := range inputs {
		one := 1.0
		probe[in.Name] = &one
	}
	if _, err := e.evaluate(probe); err != nil {
		return nil, domain.NewConfigurationError("invalid expression %q: %s", src, err.Error())
	}

	return e, nil
}

// Evaluate returns nil when an input is unavailable or the result is
// not finite
func (e Expression) Evaluate(values map[string]*float64) (*float64, error) {
	for _, in := range e.Inputs {
		if v, ok := values[in.Name]; !ok || v == nil {
			return nil, nil
		}
	}
	out, err := e.evaluate(values)
	if err != nil {
		return nil, domain.NewDataUnavailableError("failed to evaluate %q: %s", e.Source, err.Error())
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return nil, nil
	}
	return &out, nil
}

func (e Expression) evaluate(values map[string]*float64) (float64, error) {
	variables := map[string]interface{}{}
	for _, in := range e.Inputs {
		variables[in.Name] = *values[in.Name]
	}

	result, err := goval.NewEvaluator().Evaluate(e.Source, variables, expressionFunctions)
	if err != nil {
		return 0, err
	}
	out, err := toFloat(result)
	if err != nil {
		return 0, fmt.Errorf("expression did not produce a number: %w", err)
	}
	return out, nil
}
