package searcher

import (
	"fmt"
	"math"
	"sort"
)

// KullbackLeibler is the only supported confidence-bound scheme.
const KullbackLeibler = "kullback-leibler"

// ThresholdVars are the runtime quantities a threshold formula may depend on.
type ThresholdVars struct {
	Horizon int
	Actions int
	Count   int
	Time    int // episode budget
}

// Threshold computes a KL confidence threshold.
type Threshold func(ThresholdVars) float64

// Formula names a threshold from a closed set, scaled by a coefficient.
type Formula struct {
	Name  string  `yaml:"formula" validate:"required,formula"`
	Scale float64 `yaml:"scale" validate:"gte=0"`
}

// UpperBound selects the confidence-bound scheme and its thresholds.
type UpperBound struct {
	Type                string  `yaml:"type" validate:"required"`
	Threshold           Formula `yaml:"threshold"`
	TransitionThreshold Formula `yaml:"transition_threshold"`
}

// DefaultUpperBound uses ln(T) for rewards and 0.1 ln(T) for transitions.
func DefaultUpperBound() UpperBound {
	return UpperBound{
		Type:                KullbackLeibler,
		Threshold:           Formula{Name: "log-time", Scale: 1},
		TransitionThreshold: Formula{Name: "log-time", Scale: 0.1},
	}
}

var formulas = map[string]func(ThresholdVars) float64{
	"zero":     func(ThresholdVars) float64 { return 0 },
	"constant": func(ThresholdVars) float64 { return 1 },
	"log-time": func(v ThresholdVars) float64 { return safeLog(float64(v.Time)) },
	"log-count": func(v ThresholdVars) float64 {
		return safeLog(float64(v.Count))
	},
	"log-horizon-actions-time": func(v ThresholdVars) float64 {
		return safeLog(float64(v.Horizon) * float64(v.Actions) * float64(v.Time))
	},
}

// Formulas lists the recognised formula names.
func Formulas() []string {
	names := make([]string, 0, len(formulas))
	for name := range formulas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile resolves the formula into a threshold function.
func (f Formula) Compile() (Threshold, error) {
	fn, ok := formulas[f.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown threshold formula %q (known: %v)", ErrConfig, f.Name, Formulas())
	}
	if f.Scale < 0 || math.IsNaN(f.Scale) {
		return nil, fmt.Errorf("%w: negative threshold scale %v", ErrConfig, f.Scale)
	}
	scale := f.Scale
	return func(v ThresholdVars) float64 {
		return scale * fn(v)
	}, nil
}

// Logs of values below one clamp to zero so thresholds stay non-negative.
func safeLog(x float64) float64 {
	if x <= 1 {
		return 0
	}
	return math.Log(x)
}
