package utils

import "golang.org/x/exp/rand"

func FindIndex[T comparable](slice []T, item T) int {
	for i, v := range slice {
		if v == item {
			return i
		}
	}
	return -1
}

// RandomArgMax returns the index of a maximum of values, picking uniformly
// among ties. It returns -1 for an empty slice.
func RandomArgMax(values []float64, rng *rand.Rand) int {
	best := -1
	ties := 0
	for i, v := range values {
		switch {
		case best < 0 || v > values[best]:
			best = i
			ties = 1
		case v == values[best]:
			// Reservoir sampling over the tied indices
			ties++
			if rng.Intn(ties) == 0 {
				best = i
			}
		}
	}
	return best
}

// Reversed returns a reversed copy of slice.
func Reversed[T any](slice []T) []T {
	out := make([]T, len(slice))
	for i, v := range slice {
		out[len(slice)-1-i] = v
	}
	return out
}
