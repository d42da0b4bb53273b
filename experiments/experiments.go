package experiments

import (
	"context"
	"fmt"
	"path/filepath"

	"gbop/agent"
	"gbop/config"
	"gbop/engine"
	"gbop/env"
	"gbop/experiments/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	NumTrials = 10 // Per trial config
	MaxSteps  = 100
)

// Agent names understood by NewAgent.
const (
	Replanning = "replanning"
	OpenLoop   = "open-loop"
	Sampling   = "sampling"
)

// Experiment compares agents on one environment across planning budgets.
type Experiment struct {
	Name     string
	Env      string
	Agents   []string
	Budgets  []int
	Trials   int
	Parallel int
	MaxSteps int
	Seed     uint64
	Base     *config.Config // Planner settings shared by every trial
}

type Result struct {
	Configs  []metrics.TrialConfig
	Episodes []metrics.EpisodeRecord
	Steps    []metrics.StepRecord
	Returns  []metrics.Series // Mean return per agent, one value per budget
}

func NewAgent(name string, planner agent.Planner, seed uint64) (agent.Agent, error) {
	switch name {
	case Replanning:
		return agent.NewReplanningAgent(planner), nil
	case OpenLoop:
		return agent.NewOpenLoopAgent(planner), nil
	case Sampling:
		return agent.NewSamplingAgent(planner, 1, seed)
	default:
		return nil, fmt.Errorf("unknown agent %q", name)
	}
}

// Run plays Trials episodes for every agent and budget. Trials are
// independent, so up to Parallel of them run at once.
func Run(ctx context.Context, exp Experiment) (Result, error) {
	if exp.Trials <= 0 {
		exp.Trials = NumTrials
	}
	if exp.MaxSteps <= 0 {
		exp.MaxSteps = MaxSteps
	}
	if exp.Parallel <= 0 {
		exp.Parallel = 1
	}
	if exp.Base == nil {
		exp.Base = config.Default()
	}

	var result Result
	for _, name := range exp.Agents {
		for _, budget := range exp.Budgets {
			result.Configs = append(result.Configs, metrics.TrialConfig{
				ID:            len(result.Configs) + 1,
				Env:           exp.Env,
				Agent:         name,
				Budget:        budget,
				MaxNextStates: exp.Base.MaxNextStatesCount,
				Seed:          exp.Seed,
			})
		}
	}

	log.Info().Msgf("starting %s experiment with %d trial configs...", exp.Name, len(result.Configs))

	type outcome struct {
		episode metrics.EpisodeMetric
		steps   []metrics.StepMetric
	}
	outcomes := make([]outcome, len(result.Configs)*exp.Trials)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(exp.Parallel)
	for ci, trialConfig := range result.Configs {
		for trial := 0; trial < exp.Trials; trial++ {
			index := ci*exp.Trials + trial
			g.Go(func() error {
				episode, steps, err := runTrial(ctx, trialConfig, trial, exp)
				if err != nil {
					return fmt.Errorf("config %d trial %d: %w", trialConfig.ID, trial, err)
				}
				outcomes[index] = outcome{episode: episode, steps: steps}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	means := make(map[string][]float64, len(exp.Agents))
	for _, name := range exp.Agents {
		means[name] = make([]float64, len(exp.Budgets))
	}
	for ci, trialConfig := range result.Configs {
		bi := ci % len(exp.Budgets)
		for trial := 0; trial < exp.Trials; trial++ {
			o := outcomes[ci*exp.Trials+trial]
			id := len(result.Episodes) + 1
			result.Episodes = append(result.Episodes, metrics.EpisodeRecord{ID: id, Config: trialConfig.ID, EpisodeMetric: o.episode})
			for _, step := range o.steps {
				result.Steps = append(result.Steps, metrics.StepRecord{Episode: id, StepMetric: step})
			}
			means[trialConfig.Agent][bi] += o.episode.Return / float64(exp.Trials)
		}
	}
	for _, name := range exp.Agents {
		result.Returns = append(result.Returns, metrics.Series{Name: name, Values: means[name]})
	}

	log.Info().Msgf("completed %s experiment", exp.Name)
	return result, nil
}

// runTrial plays one episode with a fresh environment, planner and agent.
func runTrial(ctx context.Context, trialConfig metrics.TrialConfig, trial int, exp Experiment) (metrics.EpisodeMetric, []metrics.StepMetric, error) {
	seed := exp.Seed + uint64(trial)
	e, err := env.Make(exp.Env, seed)
	if err != nil {
		return metrics.EpisodeMetric{}, nil, err
	}

	cfg := *exp.Base
	cfg.Budget = trialConfig.Budget
	cfg.Seed = seed
	planner, err := cfg.NewPlanner(metrics.NewCollector())
	if err != nil {
		return metrics.EpisodeMetric{}, nil, err
	}
	a, err := NewAgent(trialConfig.Agent, planner, seed)
	if err != nil {
		return metrics.EpisodeMetric{}, nil, err
	}

	runner, err := engine.LocalEngine(e, a, exp.MaxSteps)
	if err != nil {
		return metrics.EpisodeMetric{}, nil, err
	}
	runner.Trial = trial
	return runner.Run(ctx)
}

// Write stores the experiment records as CSV files and the returns chart.
func Write(w *metrics.Writer, exp Experiment, result Result) error {
	if err := w.WriteTrialConfigs(result.Configs); err != nil {
		return fmt.Errorf("failed to store trial configs: %w", err)
	}
	log.Info().Msg("stored trial configs")

	if err := w.WriteEpisodeRecords(result.Episodes); err != nil {
		return fmt.Errorf("failed to store episode records: %w", err)
	}
	log.Info().Msg("stored episode records")

	if err := w.WriteStepRecords(result.Steps); err != nil {
		return fmt.Errorf("failed to store step records: %w", err)
	}
	log.Info().Msg("stored step records")

	title := fmt.Sprintf("%s on %s", exp.Name, exp.Env)
	if err := metrics.WriteReturnChart(filepath.Join(w.Dir(), "returns.html"), title, exp.Budgets, result.Returns); err != nil {
		return fmt.Errorf("failed to store returns chart: %w", err)
	}
	log.Info().Msg("stored returns chart")
	return nil
}
