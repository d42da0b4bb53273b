package experiments

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gbop/config"
	"gbop/experiments/metrics"

	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("running every agent and budget", func(t *testing.T) {
		exp := Experiment{
			Name:     "budget",
			Env:      "bandit",
			Agents:   []string{Replanning, OpenLoop},
			Budgets:  []int{10, 50},
			Trials:   3,
			Parallel: 2,
			MaxSteps: 5,
			Seed:     1,
		}

		result, err := Run(ctx, exp)
		require.NoError(t, err)

		require.Len(t, result.Configs, 4)
		require.Len(t, result.Episodes, 12)
		require.Len(t, result.Steps, 12, "Bandit episodes end after one pull")
		require.Len(t, result.Returns, 2)
		for _, series := range result.Returns {
			require.Len(t, series.Values, 2)
			for _, value := range series.Values {
				require.GreaterOrEqual(t, value, 0.0)
				require.LessOrEqual(t, value, 1.0)
			}
		}
		for _, step := range result.Steps {
			require.NotEmpty(t, step.PlanID, "Trials should collect search metrics")
		}

		w, err := metrics.NewWriter(t.TempDir(), exp.Name)
		require.NoError(t, err)
		require.NoError(t, Write(w, exp, result))
		for _, file := range []string{"trial_configs.csv", "episode_records.csv", "step_records.csv", "returns.html"} {
			_, err := os.Stat(filepath.Join(w.Dir(), file))
			require.NoError(t, err, file)
		}
	})

	t.Run("failing on an unknown agent", func(t *testing.T) {
		_, err := Run(ctx, Experiment{Env: "bandit", Agents: []string{"greedy"}, Budgets: []int{10}, Trials: 1})
		require.Error(t, err)
	})

	t.Run("surfacing planner capacity errors", func(t *testing.T) {
		base := config.Default()
		base.MaxNextStatesCount = 1
		_, err := Run(ctx, Experiment{Env: "coin", Agents: []string{Replanning}, Budgets: []int{50}, Trials: 1, MaxSteps: 3, Base: base})
		require.Error(t, err)
	})
}
