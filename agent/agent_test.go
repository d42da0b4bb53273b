package agent

import (
	"context"
	"errors"
	"testing"

	"gbop/env"
	"gbop/searcher"

	"github.com/stretchr/testify/require"
)

type mockPlanner struct {
	plan   searcher.Plan
	err    error
	calls  int
	resets int
}

func (p *mockPlanner) Plan(context.Context, env.Environment, env.Observation) (searcher.Plan, error) {
	p.calls++
	return p.plan, p.err
}

func (p *mockPlanner) Reset() {
	p.resets++
}

func TestReplanningAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("playing the first planned action every step", func(t *testing.T) {
		planner := &mockPlanner{plan: searcher.Plan{Actions: []env.Action{2, 0, 1}}}
		a := NewReplanningAgent(planner)

		for range 3 {
			action, _, err := a.Act(ctx, nil, "s")
			require.NoError(t, err)
			require.Equal(t, env.Action(2), action)
		}
		require.Equal(t, 3, planner.calls, "Agent should plan at every step")

		a.Reset()
		require.Equal(t, 1, planner.resets)
	})

	t.Run("failing on an empty plan", func(t *testing.T) {
		_, _, err := NewReplanningAgent(&mockPlanner{}).Act(ctx, nil, "s")
		require.Error(t, err)
	})

	t.Run("surfacing planner errors", func(t *testing.T) {
		broken := errors.New("broken")
		_, _, err := NewReplanningAgent(&mockPlanner{err: broken}).Act(ctx, nil, "s")
		require.ErrorIs(t, err, broken)
	})
}

func TestOpenLoopAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("playing the whole plan before planning again", func(t *testing.T) {
		planner := &mockPlanner{plan: searcher.Plan{Actions: []env.Action{2, 0, 1}}}
		a := NewOpenLoopAgent(planner)

		var played []env.Action
		for range 4 {
			action, _, err := a.Act(ctx, nil, "s")
			require.NoError(t, err)
			played = append(played, action)
		}

		require.Equal(t, []env.Action{2, 0, 1, 2}, played)
		require.Equal(t, 2, planner.calls)
	})

	t.Run("dropping the pending plan on reset", func(t *testing.T) {
		planner := &mockPlanner{plan: searcher.Plan{Actions: []env.Action{2, 0}}}
		a := NewOpenLoopAgent(planner)
		_, _, err := a.Act(ctx, nil, "s")
		require.NoError(t, err)

		a.Reset()
		action, _, err := a.Act(ctx, nil, "s")
		require.NoError(t, err)

		require.Equal(t, env.Action(2), action, "Agent should start a new plan")
		require.Equal(t, 2, planner.calls)
	})
}

func TestSamplingAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("rejecting non-positive temperatures", func(t *testing.T) {
		_, err := NewSamplingAgent(&mockPlanner{}, 0, 1)
		require.Error(t, err)
	})

	t.Run("never sampling unvisited actions", func(t *testing.T) {
		planner := &mockPlanner{plan: searcher.Plan{Values: []searcher.ActionValue{
			{Action: 0, Visits: 0},
			{Action: 1, Visits: 10},
			{Action: 2, Visits: 30},
		}}}
		a, err := NewSamplingAgent(planner, 1, 5)
		require.NoError(t, err)

		counts := map[env.Action]int{}
		for range 400 {
			action, _, err := a.Act(ctx, nil, "s")
			require.NoError(t, err)
			counts[action]++
		}

		require.Zero(t, counts[0])
		require.InDelta(t, 100, counts[1], 40)
		require.InDelta(t, 300, counts[2], 40)
	})

	t.Run("sharpening the policy with a low temperature", func(t *testing.T) {
		policy := adjustTemperature([]searcher.ActionValue{{Visits: 1}, {Visits: 3}}, 0.5)
		require.InDelta(t, 0.1, policy[0], 1e-12)
		require.InDelta(t, 0.9, policy[1], 1e-12)
	})

	t.Run("spreading uniformly without visits", func(t *testing.T) {
		policy := adjustTemperature([]searcher.ActionValue{{}, {}}, 1)
		require.Equal(t, []float64{0.5, 0.5}, policy)
	})
}
