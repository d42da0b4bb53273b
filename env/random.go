package env

import "golang.org/x/exp/rand"

// random is a seedable generator whose state is copied by clone, so cloned
// environments replay the same stream until reseeded.
type random struct {
	src *rand.PCGSource
	rng *rand.Rand
}

func newRandom(seed uint64) random {
	src := &rand.PCGSource{}
	src.Seed(seed)
	return random{src: src, rng: rand.New(src)}
}

func (r random) clone() random {
	src := *r.src
	return random{src: &src, rng: rand.New(&src)}
}

func (r random) seed(seed uint64) {
	r.src.Seed(seed)
}

// pick samples an index from a discrete distribution.
func (r random) pick(probabilities []float64) int {
	u := r.rng.Float64()
	cumulative := 0.0
	for i, p := range probabilities {
		cumulative += p
		if u < cumulative {
			return i
		}
	}
	return len(probabilities) - 1 // Fallback in case of rounding errors
}
