package searcher

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	boundTolerance  = 1e-12
	maxBisections   = 200
	klEpsilon       = 1e-15
	referenceSumTol = 1e-6
)

// bernoulliKL is KL(Ber(p) || Ber(q)), with q clipped away from {0, 1}.
func bernoulliKL(p, q float64) float64 {
	q = math.Min(math.Max(q, klEpsilon), 1-klEpsilon)
	kl := 0.0
	if p > 0 {
		kl += p * math.Log(p/q)
	}
	if p < 1 {
		kl += (1 - p) * math.Log((1-p)/(1-q))
	}
	return kl
}

// ConfidenceBound returns the KL confidence bound on a [0, 1] mean given the
// observed sum and count: the largest q >= mu (smallest q <= mu when lower)
// such that count * KL(mu, q) <= threshold.
func ConfidenceBound(sum float64, count int, threshold float64, lower bool) (float64, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrInvalidInput, count)
	}
	if threshold < 0 || math.IsNaN(threshold) || math.IsNaN(sum) {
		return 0, fmt.Errorf("%w: sum %v threshold %v", ErrInvalidInput, sum, threshold)
	}
	if count == 0 {
		if lower {
			return 0, nil
		}
		return 1, nil
	}

	mu := math.Min(math.Max(sum/float64(count), 0), 1)
	if threshold == 0 {
		return mu, nil
	}
	maxDiv := threshold / float64(count)

	// KL(mu, q) is monotone on each side of mu, bisect towards the boundary
	inside, outside := mu, 1.0
	if lower {
		outside = 0
	}
	if bernoulliKL(mu, outside) <= maxDiv {
		return outside, nil
	}
	for i := 0; i < maxBisections && math.Abs(outside-inside) > boundTolerance; i++ {
		mid := (inside + outside) / 2
		if bernoulliKL(mu, mid) <= maxDiv {
			inside = mid
		} else {
			outside = mid
		}
	}
	return inside, nil
}

// ConstrainedExpectation solves
//
//	max_p  p . values   s.t.  KL(reference || p) <= threshold
//
// over probability vectors p. Minimisation is done by negating values.
func ConstrainedExpectation(values, reference []float64, threshold float64) ([]float64, error) {
	if err := validateReference(values, reference, threshold); err != nil {
		return nil, err
	}
	p := make([]float64, len(reference))
	if threshold == 0 {
		copy(p, reference)
		return p, nil
	}

	var support, zeros []int
	for i, q := range reference {
		if q > 0 {
			support = append(support, i)
		} else {
			zeros = append(zeros, i)
		}
	}

	qs := make([]float64, len(support))
	fs := make([]float64, len(support))
	for j, i := range support {
		qs[j] = reference[i]
		fs[j] = values[i]
	}
	fMax := floats.Max(fs)

	// All supported values equal: the reference is already optimal unless an
	// unsupported entry does strictly better.
	flat := floats.Min(fs) == fMax

	nu := math.NaN()
	shift := 0.0
	if len(zeros) > 0 {
		best := zeros[0]
		for _, i := range zeros[1:] {
			if values[i] > values[best] {
				best = i
			}
		}
		if fStar := values[best]; fStar > fMax {
			if n := dualObjective(fStar, qs, fs); n < threshold {
				nu = fStar
				shift = 1 - math.Exp(n-threshold)
				var ties []int
				for _, i := range zeros {
					if values[i] == fStar {
						ties = append(ties, i)
					}
				}
				for _, i := range ties {
					p[i] = shift / float64(len(ties))
				}
			}
		}
	}

	if math.IsNaN(nu) {
		if flat {
			copy(p, reference)
			return p, nil
		}
		nu = solveMultiplier(threshold, fMax, qs, fs)
	}

	weights := make([]float64, len(support))
	for j := range support {
		weights[j] = qs[j] / (nu - fs[j])
	}
	floats.Scale((1-shift)/floats.Sum(weights), weights)
	for j, i := range support {
		p[i] = weights[j]
	}
	floats.Scale(1/floats.Sum(p), p)
	return p, nil
}

// dualObjective is KL(q || p_nu) for the tilted distribution
// p_nu(i) ~ q(i) / (nu - f(i)).
func dualObjective(nu float64, qs, fs []float64) float64 {
	logSum, inverse := 0.0, 0.0
	for j := range qs {
		logSum += qs[j] * math.Log(nu-fs[j])
		inverse += qs[j] / (nu - fs[j])
	}
	return logSum + math.Log(inverse)
}

// solveMultiplier finds nu > fMax with dualObjective(nu) = threshold. The
// objective decreases from +inf to 0 on (fMax, inf); the returned nu is on the
// feasible side so the constraint holds after rounding.
func solveMultiplier(threshold, fMax float64, qs, fs []float64) float64 {
	scale := math.Max(1, math.Abs(fMax))
	low, high := fMax, fMax+scale
	for i := 0; i < maxBisections && dualObjective(high, qs, fs) > threshold; i++ {
		low = high
		high = fMax + 2*(high-fMax)
	}
	for i := 0; i < maxBisections && high-low > boundTolerance*scale; i++ {
		mid := (low + high) / 2
		if mid == low || mid == high {
			break
		}
		if dualObjective(mid, qs, fs) > threshold {
			low = mid
		} else {
			high = mid
		}
	}
	return high
}

func validateReference(values, reference []float64, threshold float64) error {
	if len(values) != len(reference) {
		return fmt.Errorf("%w: %d values for %d probabilities", ErrInvalidInput, len(values), len(reference))
	}
	if len(reference) == 0 {
		return fmt.Errorf("%w: empty distribution", ErrInvalidInput)
	}
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return fmt.Errorf("%w: threshold %v", ErrInvalidInput, threshold)
	}
	for i, q := range reference {
		if q < 0 || math.IsNaN(q) {
			return fmt.Errorf("%w: reference[%d] = %v", ErrInvalidInput, i, q)
		}
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return fmt.Errorf("%w: values[%d] = %v", ErrInvalidInput, i, values[i])
		}
	}
	if sum := floats.Sum(reference); math.Abs(sum-1) > referenceSumTol {
		return fmt.Errorf("%w: reference sums to %v", ErrInvalidInput, sum)
	}
	return nil
}
