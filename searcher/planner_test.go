package searcher

import (
	"context"
	"errors"
	"testing"

	"gbop/env"
	"gbop/experiments/metrics"

	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("broken simulator")

type brokenEnv struct{}

func (brokenEnv) Clone() env.Environment                  { return brokenEnv{} }
func (brokenEnv) Seed(uint64)                             {}
func (brokenEnv) Step(env.Action) (env.Transition, error) { return env.Transition{}, errBroken }
func (brokenEnv) ActionSpaceSize() int                    { return 2 }

func zeroBound() UpperBound {
	return UpperBound{
		Type:                KullbackLeibler,
		Threshold:           Formula{Name: "zero"},
		TransitionThreshold: Formula{Name: "zero"},
	}
}

func TestNewPlanner(t *testing.T) {
	t.Run("using defaults", func(t *testing.T) {
		p, err := NewPlanner()
		require.NoError(t, err)

		require.Equal(t, DefaultBudget, p.budget)
		require.Equal(t, DefaultGamma, p.gamma)
		require.Equal(t, DefaultMaxNextStates, p.maxNextStates)
		require.Equal(t, DefaultUpperBound(), p.upperBound)
	})

	t.Run("rejecting invalid configurations", func(t *testing.T) {
		unknownFormula := DefaultUpperBound()
		unknownFormula.Threshold.Name = "sqrt-time"

		cases := map[string][]Option{
			"zero gamma":                {WithGamma(0)},
			"gamma above one":           {WithGamma(1.5)},
			"undiscounted budget":       {WithGamma(1)},
			"horizon without episodes":  {WithHorizon(3)},
			"negative accuracy":         {WithAccuracy(-1)},
			"no next state slots":       {WithMaxNextStates(0)},
			"unknown threshold formula": {WithUpperBound(unknownFormula)},
			"unknown upper-bound type":  {WithUpperBound(UpperBound{Type: "hoeffding"})},
		}
		for name, options := range cases {
			_, err := NewPlanner(options...)
			require.ErrorIs(t, err, ErrConfig, name)
		}

		_, err := NewPlanner(WithUpperBound(UpperBound{Type: "hoeffding"}))
		require.ErrorIs(t, err, ErrUnknownBound)
	})
}

func TestPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("collapsing bounds to a deterministic reward", func(t *testing.T) {
		p, err := NewPlanner(WithEpisodes(50), WithHorizon(1), WithGamma(1), WithUpperBound(zeroBound()))
		require.NoError(t, err)
		bandit := env.NewBandit([]float64{0.7}, true)

		plan, err := p.Plan(ctx, bandit, bandit.Observation())
		require.NoError(t, err)

		require.Equal(t, []env.Action{0}, plan.Actions)
		require.Len(t, plan.Values, 1)
		require.Equal(t, 50, plan.Values[0].Visits)
		require.InDelta(t, 0.7, plan.Values[0].Lower, 1e-12)
		require.InDelta(t, 0.7, plan.Values[0].Upper, 1e-12)
	})

	t.Run("selecting the better arm", func(t *testing.T) {
		for name, bound := range map[string]UpperBound{"zero": zeroBound(), "default": DefaultUpperBound()} {
			p, err := NewPlanner(WithEpisodes(50), WithHorizon(1), WithUpperBound(bound), WithSeed(3))
			require.NoError(t, err)
			bandit := env.NewBandit([]float64{1, 0}, true)

			plan, err := p.Plan(ctx, bandit, bandit.Observation())
			require.NoError(t, err)

			require.Equal(t, []env.Action{0}, plan.Actions, name)
			require.Greater(t, plan.Values[0].Visits, plan.Values[1].Visits, name)
			require.Greater(t, plan.Values[0].Lower, plan.Values[1].Lower, name)
		}
	})

	t.Run("failing when outcomes exceed max_next_states_count", func(t *testing.T) {
		coin, err := env.NewCoin([]env.Outcome{
			{Observation: "heads", Probability: 0.5, Reward: 1},
			{Observation: "tails", Probability: 0.5},
		}, true)
		require.NoError(t, err)
		p, err := NewPlanner(WithEpisodes(50), WithHorizon(1), WithMaxNextStates(1))
		require.NoError(t, err)

		_, err = p.Plan(ctx, coin, coin.Observation())
		require.ErrorIs(t, err, ErrCapacity)
		var capacityErr *CapacityError
		require.ErrorAs(t, err, &capacityErr)
		require.Equal(t, "start", capacityErr.State)
		require.Equal(t, 1, capacityErr.Capacity)
	})

	t.Run("breaking ties uniformly across seeds", func(t *testing.T) {
		counts := make([]int, 2)
		for seed := range uint64(400) {
			p, err := NewPlanner(WithEpisodes(1), WithHorizon(1), WithUpperBound(zeroBound()), WithSeed(seed))
			require.NoError(t, err)
			bandit := env.NewBandit([]float64{0.5, 0.5}, true)

			plan, err := p.Plan(ctx, bandit, bandit.Observation())
			require.NoError(t, err)
			counts[plan.Actions[0]]++
		}

		require.InDelta(t, 200, counts[0], 60, "Tied actions should be sampled about equally")
		require.InDelta(t, 200, counts[1], 60, "Tied actions should be sampled about equally")
	})

	t.Run("keeping bounds ordered in a stochastic gridworld", func(t *testing.T) {
		p, err := NewPlanner(WithBudget(200), WithGamma(0.9), WithMaxNextStates(3), WithSeed(7))
		require.NoError(t, err)
		grid := env.NewWindyGrid()
		grid.Seed(7)

		plan, err := p.Plan(ctx, grid, grid.Observation())
		require.NoError(t, err)

		_, horizon, err := Allocate(200, 0.9)
		require.NoError(t, err)
		require.NotEmpty(t, plan.Actions)
		require.LessOrEqual(t, len(plan.Actions), horizon)
		for _, node := range p.graph.nodes {
			require.LessOrEqual(t, node.valueLower, node.valueUpper+1e-9, node.key)
			for _, c := range node.children {
				require.LessOrEqual(t, c.valueLower, c.valueUpper+1e-9, node.key)
				total := 0
				for i, slot := range c.slots {
					require.LessOrEqual(t, slot.muLCB, slot.muUCB, node.key)
					if !c.used[i] {
						require.Zero(t, slot.visits)
					}
					total += slot.visits
				}
				require.Equal(t, c.visits, total, "Outcome visits should add up to the action visits")
			}
		}
	})

	t.Run("capping propagation on an undiscounted loop", func(t *testing.T) {
		p, err := NewPlanner(WithEpisodes(5), WithHorizon(3), WithGamma(1),
			WithUpperBound(zeroBound()), WithMaxPropagations(50))
		require.NoError(t, err)
		bandit := env.NewBandit([]float64{1}, false)

		plan, err := p.Plan(ctx, bandit, bandit.Observation())
		require.NoError(t, err)
		require.Len(t, plan.Actions, 3, "Non-terminal plan should span the horizon")
	})

	t.Run("reporting search metrics", func(t *testing.T) {
		collector := metrics.NewCollector()
		p, err := NewPlanner(WithBudget(100), WithMetrics(collector))
		require.NoError(t, err)
		bandit := env.NewBandit([]float64{0.2, 0.8}, true)

		plan, err := p.Plan(ctx, bandit, bandit.Observation())
		require.NoError(t, err)

		require.NotEmpty(t, plan.ID)
		require.Equal(t, plan.ID, plan.Metric.PlanID)
		require.Equal(t, 9, plan.Metric.Episodes)
		require.Equal(t, 11, plan.Metric.Horizon)
		require.Equal(t, 1, plan.Metric.Nodes)
		require.Equal(t, 1, plan.Metric.Expansions)
		require.Positive(t, plan.Metric.Propagations)
		require.True(t, plan.Metric.IsGraphReset)
	})

	t.Run("reusing the graph between plans", func(t *testing.T) {
		collector := metrics.NewCollector()
		p, err := NewPlanner(WithEpisodes(10), WithHorizon(2), WithGraphReuse(true), WithMetrics(collector))
		require.NoError(t, err)
		bandit := env.NewBandit([]float64{0.2, 0.8}, true)

		first, err := p.Plan(ctx, bandit, bandit.Observation())
		require.NoError(t, err)
		second, err := p.Plan(ctx, bandit, bandit.Observation())
		require.NoError(t, err)

		require.True(t, first.Metric.IsGraphReset)
		require.False(t, second.Metric.IsGraphReset, "Known root should continue from its statistics")
		require.Equal(t, 20, second.Values[0].Visits+second.Values[1].Visits)
	})

	t.Run("starting over without graph reuse", func(t *testing.T) {
		collector := metrics.NewCollector()
		p, err := NewPlanner(WithEpisodes(10), WithHorizon(1), WithMetrics(collector))
		require.NoError(t, err)
		bandit := env.NewBandit([]float64{0.2, 0.8}, true)

		_, err = p.Plan(ctx, bandit, bandit.Observation())
		require.NoError(t, err)
		second, err := p.Plan(ctx, bandit, bandit.Observation())
		require.NoError(t, err)

		require.True(t, second.Metric.IsGraphReset)
		require.Equal(t, 10, second.Values[0].Visits+second.Values[1].Visits)
	})

	t.Run("stopping on a cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		p, err := NewPlanner(WithEpisodes(10), WithHorizon(1))
		require.NoError(t, err)
		bandit := env.NewBandit([]float64{1}, true)

		_, err = p.Plan(cancelled, bandit, bandit.Observation())
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("surfacing environment failures", func(t *testing.T) {
		p, err := NewPlanner(WithEpisodes(10), WithHorizon(1))
		require.NoError(t, err)

		_, err = p.Plan(ctx, brokenEnv{}, "s")
		require.ErrorIs(t, err, errBroken)
	})
}
