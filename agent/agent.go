package agent

import (
	"context"

	"gbop/env"
	"gbop/experiments/metrics"
	"gbop/searcher"
)

// Planner is the part of searcher.Planner that agents drive.
type Planner interface {
	Plan(ctx context.Context, e env.Environment, obs env.Observation) (searcher.Plan, error)
	Reset()
}

type Agent interface {
	// Act returns the action to play in e, whose current observation is obs,
	// and the metrics of the search behind it (zero when no search ran)
	Act(ctx context.Context, e env.Environment, obs env.Observation) (env.Action, metrics.SearchMetric, error)
	// Reset forgets everything learned during the current episode
	Reset()
}
