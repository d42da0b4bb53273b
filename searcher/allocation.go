package searcher

import (
	"fmt"
	"math"
)

// Allocate splits a sample budget into episodes of a fixed horizon, following
// the OLOP allocation: horizon(M) = ceil(log M / (2 log 1/gamma)).
func Allocate(budget int, gamma float64) (episodes, horizon int, err error) {
	if budget < 1 {
		return 0, 0, fmt.Errorf("%w: budget should be >= 1, got %d", ErrConfig, budget)
	}
	if gamma <= 0 || gamma >= 1 {
		return 0, 0, fmt.Errorf("%w: budget allocation needs gamma in (0, 1), got %v", ErrConfig, gamma)
	}
	for m := 1; m < budget; m++ {
		if m*allocationHorizon(m, gamma) > budget {
			episodes = max(m-1, 1)
			return episodes, allocationHorizon(episodes, gamma), nil
		}
	}
	return 0, 0, fmt.Errorf("%w: could not split budget %d with gamma %v", ErrConfig, budget, gamma)
}

func allocationHorizon(episodes int, gamma float64) int {
	h := math.Ceil(math.Log(float64(episodes)) / (2 * math.Log(1/gamma)))
	return max(int(h), 1)
}
