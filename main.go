package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"gbop/config"
	"gbop/engine"
	"gbop/env"
	"gbop/experiments"
	"gbop/experiments/metrics"
	"gbop/searcher"

	"github.com/logrusorgru/aurora"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile       string
	envName       string
	budget        int
	seed          uint64
	maxNextStates int
	noColor       bool

	cfg *config.Config
	au  aurora.Aurora

	shutdownTracing = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "gbop",
	Short: "Graph-based optimistic planning in stochastic environments",
	Long: `gbop plans in simulated environments by growing a graph of states shared
across trajectories, with KL confidence bounds on rewards and transitions.

Commands:
  plan        Plan once from the initial state and print the plan
  run         Play one episode, planning at every step
  experiment  Compare agents across planning budgets`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("budget") {
			loaded.Budget = budget
		}
		if cmd.Flags().Changed("seed") {
			loaded.Seed = seed
		}
		if cmd.Flags().Changed("max-next-states") {
			loaded.MaxNextStatesCount = maxNextStates
		} else if need := env.Outcomes(envName); loaded.MaxNextStatesCount < need {
			loaded.MaxNextStatesCount = need
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		zerolog.SetGlobalLevel(cfg.Level())
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor})
		au = aurora.NewAurora(!noColor)

		shutdown, err := initTracing(cfg.Trace, os.Stderr)
		if err != nil {
			return err
		}
		shutdownTracing = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdownTracing(context.Background())
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan once from the initial state of an environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := env.Make(envName, cfg.Seed)
		if err != nil {
			return err
		}
		obs, err := env.Current(e)
		if err != nil {
			return err
		}
		planner, err := cfg.NewPlanner(collector())
		if err != nil {
			return err
		}

		plan, err := planner.Plan(cmd.Context(), e, obs)
		if err != nil {
			return err
		}
		printPlan(cmd.OutOrStdout(), plan)
		return nil
	},
}

var (
	agentName string
	maxSteps  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play one episode of an environment with a planning agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := env.Make(envName, cfg.Seed)
		if err != nil {
			return err
		}
		planner, err := cfg.NewPlanner(collector())
		if err != nil {
			return err
		}
		a, err := experiments.NewAgent(agentName, planner, cfg.Seed)
		if err != nil {
			return err
		}
		runner, err := engine.LocalEngine(e, a, maxSteps)
		if err != nil {
			return err
		}

		episode, steps, err := runner.Run(cmd.Context())
		if err != nil {
			return err
		}
		printEpisode(cmd.OutOrStdout(), episode, steps)
		return nil
	},
}

var (
	agentNames []string
	budgets    []int
	trials     int
	parallel   int
	outDir     string
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Compare agents across planning budgets and store CSV records and a chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		exp := experiments.Experiment{
			Name:     "budget",
			Env:      envName,
			Agents:   agentNames,
			Budgets:  budgets,
			Trials:   trials,
			Parallel: parallel,
			MaxSteps: maxSteps,
			Seed:     cfg.Seed,
			Base:     cfg,
		}
		result, err := experiments.Run(cmd.Context(), exp)
		if err != nil {
			return err
		}
		w, err := metrics.NewWriter(outDir, exp.Name)
		if err != nil {
			return err
		}
		if err := experiments.Write(w, exp, result); err != nil {
			return err
		}
		for _, series := range result.Returns {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", au.Bold(series.Name), series.Values)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "records stored in %s\n", au.Cyan(w.Dir()))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVarP(&envName, "env", "e", "windy-grid", "Environment: "+strings.Join(env.Names(), ", "))
	rootCmd.PersistentFlags().IntVar(&budget, "budget", searcher.DefaultBudget, "Sample budget per plan")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "Planner and environment seed")
	rootCmd.PersistentFlags().IntVar(&maxNextStates, "max-next-states", searcher.DefaultMaxNextStates, "Outcome slots per state-action pair")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	for _, cmd := range []*cobra.Command{runCmd, experimentCmd} {
		cmd.Flags().IntVar(&maxSteps, "max-steps", experiments.MaxSteps, "Step limit per episode")
	}
	runCmd.Flags().StringVarP(&agentName, "agent", "a", experiments.Replanning, "Agent: replanning, open-loop or sampling")
	experimentCmd.Flags().StringSliceVar(&agentNames, "agents", []string{experiments.Replanning, experiments.OpenLoop}, "Agents to compare")
	experimentCmd.Flags().IntSliceVar(&budgets, "budgets", []int{10, 50, 100, 500}, "Planning budgets")
	experimentCmd.Flags().IntVar(&trials, "trials", experiments.NumTrials, "Episodes per agent and budget")
	experimentCmd.Flags().IntVar(&parallel, "parallel", 4, "Trials run at once")
	experimentCmd.Flags().StringVar(&outDir, "out", "experiments", "Directory for experiment records")

	rootCmd.AddCommand(planCmd, runCmd, experimentCmd)
}

// collector exports search metrics to Prometheus when configured.
func collector() metrics.Collector {
	if !cfg.Metrics.Prometheus {
		return metrics.NewCollector()
	}
	registry := prometheus.NewRegistry()
	c := metrics.NewPrometheusCollector(registry)
	go func() {
		log.Info().Msgf("serving metrics on %s/metrics", cfg.Metrics.Addr)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return c
}

func printPlan(w io.Writer, plan searcher.Plan) {
	fmt.Fprintf(w, "plan %s: %v\n", au.Bold(plan.ID), plan.Actions)
	fmt.Fprint(w, formatValues(au, plan.Values, plan.Actions))
	m := plan.Metric
	fmt.Fprintf(w, "%d episodes of horizon %d, %d nodes, %d propagations in %s\n",
		m.Episodes, m.Horizon, m.Nodes, m.Propagations, m.Duration)
}

// formatValues renders the root action bounds, highlighting the planned action.
func formatValues(au aurora.Aurora, values []searcher.ActionValue, actions []env.Action) string {
	var b strings.Builder
	for _, value := range values {
		line := fmt.Sprintf("  a%d  visits %5d  [%.3f, %.3f]", value.Action, value.Visits, value.Lower, value.Upper)
		if len(actions) > 0 && value.Action == actions[0] {
			fmt.Fprintln(&b, au.Green(line))
		} else {
			fmt.Fprintln(&b, au.Blue(line))
		}
	}
	return b.String()
}

func printEpisode(w io.Writer, episode metrics.EpisodeMetric, steps []metrics.StepMetric) {
	for _, step := range steps {
		reward := au.Blue(fmt.Sprintf("%.3f", step.Reward))
		if step.Reward > 0 {
			reward = au.Green(fmt.Sprintf("%.3f", step.Reward))
		}
		fmt.Fprintf(w, "step %3d  action %d  reward %s\n", step.Step, step.Action, reward)
	}
	status := au.Yellow("stopped")
	if episode.Done {
		status = au.Green("done")
	}
	fmt.Fprintf(w, "%s after %d steps, return %.3f in %s\n", status, episode.Steps, episode.Return, episode.Duration)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
