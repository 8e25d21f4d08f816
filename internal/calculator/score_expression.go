package calculator

import (
	"fmt"
	"math"

	"signalbacktest/internal/domain"

	"github.com/maja42/goval"
)

// NewScoreExpression compiles a ranking score over the model output.
// available variables are prediction, probUp, probDown and probFlat;
// a variable whose source field is missing is not defined
func NewScoreExpression(expression string) ScoreFunc {
	evaluator := goval.NewEvaluator()
	functions := map[string]goval.ExpressionFunction{
		"abs": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("abs needs 1 arg, got %d", len(args))
			}
			v, err := toFloat(args[0])
			if err != nil {
				return nil, err
			}
			return math.Abs(v), nil
		},
		"max": func(args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("max needs at least 1 arg")
			}
			out := math.Inf(-1)
			for _, a := range args {
				v, err := toFloat(a)
				if err != nil {
					return nil, err
				}
				out = math.Max(out, v)
			}
			return out, nil
		},
	}

	return func(o domain.Observation) (float64, error) {
		variables := map[string]interface{}{}
		if o.Prediction != nil {
			variables["prediction"] = *o.Prediction
		}
		if o.Probabilities != nil {
			variables["probUp"] = o.Probabilities.Up
			variables["probDown"] = o.Probabilities.Down
			variables["probFlat"] = o.Probabilities.Flat
		}

		result, err := evaluator.Evaluate(expression, variables, functions)
		if err != nil {
			return 0, domain.NewInputError("failed to evaluate score expression for %s: %s", o.Asset, err.Error())
		}
		score, err := toFloat(result)
		if err != nil {
			return 0, domain.NewInputError("score expression for %s: %s", o.Asset, err.Error())
		}
		return score, nil
	}
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}
