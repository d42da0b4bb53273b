package searcher

import (
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// partialValueIteration relaxes the value bounds of the queued nodes and,
// whenever a bound moves by more than accuracy, of their parents. It returns
// the number of node updates performed, at most limit when limit > 0.
func partialValueIteration(queue []*decision, accuracy float64, limit int) (int, error) {
	steps := 0
	for len(queue) > 0 {
		if limit > 0 && steps >= limit {
			log.Warn().Msgf("value propagation stopped after %d updates with %d nodes pending", steps, len(queue))
			break
		}
		node := queue[0]
		queue = queue[1:]
		if !node.expanded() {
			continue
		}
		steps++

		delta := 0.0
		for _, b := range []bound{lower, upper} {
			values, err := node.backup(b)
			if err != nil {
				return steps, err
			}
			value := floats.Max(values)
			delta = math.Max(delta, math.Abs(node.value(b)-value))
			node.setValue(b, value)
		}
		if delta > accuracy {
			queue = append(queue, node.parents...)
		}
	}
	return steps, nil
}
