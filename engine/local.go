package engine

import (
	"context"
	"fmt"
	"time"

	"gbop/agent"
	"gbop/env"
	"gbop/experiments/metrics"

	"github.com/rs/zerolog/log"
)

// Engine plays an agent against a real environment. The agent plans on
// clones; only the engine steps Env itself.
type Engine struct {
	Env      env.Environment
	Agent    agent.Agent
	MaxSteps int
	Trial    int
}

func LocalEngine(e env.Environment, a agent.Agent, maxSteps int) (*Engine, error) {
	if e == nil || a == nil {
		return nil, fmt.Errorf("engine needs an environment and an agent")
	}
	if maxSteps <= 0 {
		maxSteps = MaxSteps
	}
	return &Engine{Env: e, Agent: a, MaxSteps: maxSteps}, nil
}

// Run executes the episode loop until the environment is done.
func (e *Engine) Run(ctx context.Context) (metrics.EpisodeMetric, []metrics.StepMetric, error) {
	episode := metrics.EpisodeMetric{Trial: e.Trial, StartTime: time.Now()}
	obs, err := env.Current(e.Env)
	if err != nil {
		return episode, nil, err
	}
	e.Agent.Reset()

	log.Info().Msgf("trial %d starting from %s", e.Trial, env.Key(obs))

	var steps []metrics.StepMetric
	for episode.Steps < e.MaxSteps && !episode.Done {
		action, search, err := e.Agent.Act(ctx, e.Env, obs)
		if err != nil {
			return episode, steps, fmt.Errorf("failed to act at step %d: %w", episode.Steps+1, err)
		}
		transition, err := e.Env.Step(action)
		if err != nil {
			return episode, steps, fmt.Errorf("failed to play action %d at step %d: %w", action, episode.Steps+1, err)
		}

		episode.Steps++
		episode.Return += transition.Reward
		episode.Done = transition.Done
		steps = append(steps, metrics.StepMetric{
			Step:         episode.Steps,
			Action:       int(action),
			Reward:       transition.Reward,
			SearchMetric: search,
		})
		log.Debug().Msgf("trial %d step %d: action %d from %s, reward %.3f", e.Trial, episode.Steps, action, env.Key(obs), transition.Reward)
		obs = transition.Observation
	}

	episode.EndTime = time.Now()
	episode.Duration = episode.EndTime.Sub(episode.StartTime)
	if episode.Done {
		log.Info().Msgf("trial %d done after %d steps with return %.3f", e.Trial, episode.Steps, episode.Return)
	} else {
		log.Info().Msgf("trial %d stopped after %d steps with return %.3f", e.Trial, episode.Steps, episode.Return)
	}
	return episode, steps, nil
}
