package engine

import (
	"context"

	"gbop/experiments/metrics"
)

const MaxSteps = 10000

type Runner interface {
	// Run plays one episode till the environment is done or a max number of steps is reached
	Run(ctx context.Context) (episodeMetric metrics.EpisodeMetric, stepMetrics []metrics.StepMetric, err error)
}
