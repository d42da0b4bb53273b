package searcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func TestConfidenceBound(t *testing.T) {
	t.Run("collapsing to the empirical mean with zero threshold", func(t *testing.T) {
		upper, err := ConfidenceBound(3, 4, 0, false)
		require.NoError(t, err)
		lower, err := ConfidenceBound(3, 4, 0, true)
		require.NoError(t, err)

		require.Equal(t, 0.75, upper, "Upper bound should equal the mean")
		require.Equal(t, 0.75, lower, "Lower bound should equal the mean")
	})

	t.Run("bracketing the empirical mean", func(t *testing.T) {
		for _, count := range []int{1, 2, 5, 10, 100, 1000} {
			sum := 0.3 * float64(count)
			upper, err := ConfidenceBound(sum, count, math.Log(50), false)
			require.NoError(t, err)
			lower, err := ConfidenceBound(sum, count, math.Log(50), true)
			require.NoError(t, err)

			require.LessOrEqual(t, lower, 0.3+1e-12, "Lower bound should not exceed the mean")
			require.GreaterOrEqual(t, upper, 0.3-1e-12, "Upper bound should not be below the mean")
			require.LessOrEqual(t, lower, upper, "Bounds should be ordered")
		}
	})

	t.Run("saturating the divergence budget", func(t *testing.T) {
		threshold := 2.0
		upper, err := ConfidenceBound(5, 10, threshold, false)
		require.NoError(t, err)
		lower, err := ConfidenceBound(5, 10, threshold, true)
		require.NoError(t, err)

		require.InDelta(t, threshold/10, bernoulliKL(0.5, upper), 1e-9, "Upper bound should sit on the KL budget")
		require.InDelta(t, threshold/10, bernoulliKL(0.5, lower), 1e-9, "Lower bound should sit on the KL budget")
		require.InDelta(t, 1-upper, lower, 1e-9, "Bounds should be symmetric around 1/2")
	})

	t.Run("tightening as visits grow", func(t *testing.T) {
		wide, err := ConfidenceBound(5, 10, 1, false)
		require.NoError(t, err)
		narrow, err := ConfidenceBound(50, 100, 1, false)
		require.NoError(t, err)

		require.Greater(t, wide, narrow, "More visits should give a tighter upper bound")
	})

	t.Run("returning the full interval without visits", func(t *testing.T) {
		upper, err := ConfidenceBound(0, 0, 1, false)
		require.NoError(t, err)
		lower, err := ConfidenceBound(0, 0, 1, true)
		require.NoError(t, err)

		require.Equal(t, 1.0, upper)
		require.Equal(t, 0.0, lower)
	})

	t.Run("rejecting invalid inputs", func(t *testing.T) {
		_, err := ConfidenceBound(1, -1, 1, false)
		require.ErrorIs(t, err, ErrInvalidInput)
		_, err = ConfidenceBound(1, 1, -1, false)
		require.ErrorIs(t, err, ErrInvalidInput)
		_, err = ConfidenceBound(math.NaN(), 1, 1, false)
		require.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestConstrainedExpectation(t *testing.T) {
	cases := []struct {
		name      string
		values    []float64
		reference []float64
		threshold float64
	}{
		{"two outcomes", []float64{1, 0}, []float64{0.5, 0.5}, 0.1},
		{"skewed reference", []float64{0.2, 0.9, 0.4}, []float64{0.7, 0.1, 0.2}, 0.05},
		{"negated values", []float64{-0.2, -0.9, -0.4}, []float64{0.7, 0.1, 0.2}, 0.3},
		{"unsupported better outcome", []float64{0.1, 0.5, 2}, []float64{0.5, 0.5, 0}, 0.2},
		{"unsupported worse outcome", []float64{0.1, 0.5, -2}, []float64{0.5, 0.5, 0}, 0.2},
		{"large budget", []float64{3, 1, 2}, []float64{0.2, 0.3, 0.5}, 10},
	}

	for _, tc := range cases {
		t.Run("staying within the divergence budget: "+tc.name, func(t *testing.T) {
			p, err := ConstrainedExpectation(tc.values, tc.reference, tc.threshold)
			require.NoError(t, err)

			require.Len(t, p, len(tc.reference))
			for _, v := range p {
				require.GreaterOrEqual(t, v, 0.0, "Probabilities should be non-negative")
			}
			require.InDelta(t, 1, floats.Sum(p), 1e-9, "Probabilities should sum to one")
			require.LessOrEqual(t, stat.KullbackLeibler(tc.reference, p), tc.threshold+1e-6,
				"Divergence from the reference should respect the threshold")
			require.GreaterOrEqual(t, floats.Dot(p, tc.values), floats.Dot(tc.reference, tc.values)-1e-9,
				"Optimised expectation should not be worse than the reference")
		})
	}

	t.Run("moving mass towards the best outcome", func(t *testing.T) {
		p, err := ConstrainedExpectation([]float64{1, 0}, []float64{0.5, 0.5}, 0.1)
		require.NoError(t, err)

		require.Greater(t, p[0], 0.5, "Best outcome should gain probability")
		require.InDelta(t, 0.1, stat.KullbackLeibler([]float64{0.5, 0.5}, p), 1e-6,
			"Active constraint should be saturated")
	})

	t.Run("placing mass on an unsupported better outcome", func(t *testing.T) {
		p, err := ConstrainedExpectation([]float64{0, 0, 1}, []float64{0.5, 0.5, 0}, 0.2)
		require.NoError(t, err)

		require.InDelta(t, 1-math.Exp(-0.2), p[2], 1e-9, "Unsupported outcome should take 1-exp(-c)")
		require.InDelta(t, p[0], p[1], 1e-12, "Equal supported values should stay balanced")
	})

	t.Run("returning the reference with zero threshold", func(t *testing.T) {
		reference := []float64{0.25, 0.75}
		p, err := ConstrainedExpectation([]float64{1, 0}, reference, 0)
		require.NoError(t, err)

		require.Equal(t, reference, p)
		p[0] = 1
		require.Equal(t, 0.25, reference[0], "Result should not alias the reference")
	})

	t.Run("returning the reference for equal values", func(t *testing.T) {
		p, err := ConstrainedExpectation([]float64{2, 2}, []float64{0.4, 0.6}, 0.5)
		require.NoError(t, err)

		require.InDeltaSlice(t, []float64{0.4, 0.6}, p, 1e-12)
	})

	t.Run("rejecting invalid distributions", func(t *testing.T) {
		_, err := ConstrainedExpectation([]float64{1}, []float64{0.5, 0.5}, 0.1)
		require.ErrorIs(t, err, ErrInvalidInput)
		_, err = ConstrainedExpectation([]float64{1, 0}, []float64{0.7, 0.7}, 0.1)
		require.ErrorIs(t, err, ErrInvalidInput)
		_, err = ConstrainedExpectation([]float64{1, 0}, []float64{1.5, -0.5}, 0.1)
		require.ErrorIs(t, err, ErrInvalidInput)
		_, err = ConstrainedExpectation([]float64{1, 0}, []float64{0.5, 0.5}, -1)
		require.ErrorIs(t, err, ErrInvalidInput)
	})
}
