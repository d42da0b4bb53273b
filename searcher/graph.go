package searcher

import (
	"math"

	"gbop/env"
	"gbop/experiments/metrics"

	"golang.org/x/exp/rand"
)

// graph is the planner's node table: one canonical decision node per
// observation key, plus the parameters every node reads during updates.
type graph struct {
	nodes map[string]*decision
	root  *decision

	rng        *rand.Rand
	metrics    metrics.Collector
	bound      string
	reward     Threshold
	transition Threshold
	gamma      float64
	capacity   int

	// Set per plan
	horizon  int
	episodes int
	actions  int
}

func newGraph() *graph {
	return &graph{nodes: make(map[string]*decision)}
}

// node returns the canonical node for obs, creating it on first sight.
func (g *graph) node(obs env.Observation) *decision {
	key := env.Key(obs)
	if node, ok := g.nodes[key]; ok {
		return node
	}
	node := newDecision(g, obs)
	g.nodes[key] = node
	g.metrics.AddExpansion()
	return node
}

func (g *graph) lookup(key string) (*decision, bool) {
	node, ok := g.nodes[key]
	return node, ok
}

func (g *graph) vars(count int) ThresholdVars {
	return ThresholdVars{Horizon: g.horizon, Actions: g.actions, Count: count, Time: g.episodes}
}

// vmax is the largest discounted return over the horizon with rewards in [0, 1].
func (g *graph) vmax() float64 {
	if g.gamma == 1 {
		return float64(g.horizon)
	}
	return (1 - math.Pow(g.gamma, float64(g.horizon))) / (1 - g.gamma)
}
