package searcher

import (
	"context"
	"fmt"
	"strings"

	"gbop/env"
	"gbop/experiments/metrics"
	"gbop/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/rand"
)

const (
	DefaultBudget          = 100
	DefaultGamma           = 0.9
	DefaultAccuracy        = 1e-2
	DefaultMaxNextStates   = 1
	DefaultMaxPropagations = 100_000
)

var tracer = otel.Tracer("gbop/searcher")

type Option func(p *Planner)

// ActionValue reports the search statistics of one root action.
type ActionValue struct {
	Action env.Action
	Visits int
	Lower  float64
	Upper  float64
}

type Plan struct {
	ID      string
	Actions []env.Action
	Values  []ActionValue
	Metric  metrics.SearchMetric
}

// Planner builds a graph of states shared across trajectories and plans with
// KL confidence bounds on rewards and transition probabilities.
type Planner struct {
	episodes        int
	horizon         int
	budget          int
	gamma           float64
	accuracy        float64
	maxNextStates   int
	maxPropagations int
	upperBound      UpperBound
	seed            uint64
	reuse           bool

	reward     Threshold
	transition Threshold
	rng        *rand.Rand
	graph      *graph
	metrics    metrics.Collector
}

func WithEpisodes(episodes int) Option {
	return func(p *Planner) {
		if episodes > 0 {
			p.episodes = episodes
		}
	}
}

// WithHorizon fixes the rollout length. Without it, episodes and horizon are
// derived from the budget.
func WithHorizon(horizon int) Option {
	return func(p *Planner) {
		if horizon > 0 {
			p.horizon = horizon
		}
	}
}

func WithBudget(budget int) Option {
	return func(p *Planner) {
		if budget > 0 {
			p.budget = budget
		}
	}
}

func WithGamma(gamma float64) Option {
	return func(p *Planner) {
		p.gamma = gamma
	}
}

func WithAccuracy(accuracy float64) Option {
	return func(p *Planner) {
		p.accuracy = accuracy
	}
}

func WithMaxNextStates(count int) Option {
	return func(p *Planner) {
		p.maxNextStates = count
	}
}

// WithMaxPropagations caps node updates per backup, 0 removes the cap.
func WithMaxPropagations(count int) Option {
	return func(p *Planner) {
		if count >= 0 {
			p.maxPropagations = count
		}
	}
}

func WithUpperBound(upperBound UpperBound) Option {
	return func(p *Planner) {
		p.upperBound = upperBound
	}
}

func WithSeed(seed uint64) Option {
	return func(p *Planner) {
		p.seed = seed
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(p *Planner) {
		if collector != nil {
			p.metrics = collector
		}
	}
}

// WithGraphReuse keeps the graph between Plan calls.
func WithGraphReuse(reuse bool) Option {
	return func(p *Planner) {
		p.reuse = reuse
	}
}

func NewPlanner(options ...Option) (*Planner, error) {
	p := &Planner{ // Default values
		budget:          DefaultBudget,
		gamma:           DefaultGamma,
		accuracy:        DefaultAccuracy,
		maxNextStates:   DefaultMaxNextStates,
		maxPropagations: DefaultMaxPropagations,
		upperBound:      DefaultUpperBound(),
		metrics:         metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(p)
	}

	if p.gamma <= 0 || p.gamma > 1 {
		return nil, fmt.Errorf("%w: gamma %v outside (0, 1]", ErrConfig, p.gamma)
	}
	if p.accuracy < 0 {
		return nil, fmt.Errorf("%w: negative accuracy %v", ErrConfig, p.accuracy)
	}
	if p.maxNextStates < 1 {
		return nil, fmt.Errorf("%w: max_next_states_count must be positive, got %d", ErrConfig, p.maxNextStates)
	}
	if p.horizon > 0 && p.episodes <= 0 {
		return nil, fmt.Errorf("%w: a fixed horizon needs a number of episodes", ErrConfig)
	}
	if p.horizon == 0 && p.gamma == 1 {
		return nil, fmt.Errorf("%w: deriving the horizon from the budget needs gamma < 1", ErrConfig)
	}
	if p.upperBound.Type != KullbackLeibler {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBound, p.upperBound.Type)
	}

	var err error
	if p.reward, err = p.upperBound.Threshold.Compile(); err != nil {
		return nil, fmt.Errorf("failed to compile reward threshold: %w", err)
	}
	if p.transition, err = p.upperBound.TransitionThreshold.Compile(); err != nil {
		return nil, fmt.Errorf("failed to compile transition threshold: %w", err)
	}
	p.rng = rand.New(rand.NewSource(p.seed))
	return p, nil
}

// Reset drops the graph so the next Plan starts from scratch.
func (p *Planner) Reset() {
	p.graph = nil
}

// Plan runs the episode budget from obs, the current observation of e, and
// returns the conservative action sequence. e is cloned for every episode and
// never stepped itself.
func (p *Planner) Plan(ctx context.Context, e env.Environment, obs env.Observation) (Plan, error) {
	id := uuid.NewString()
	ctx, span := tracer.Start(ctx, "searcher.Plan", trace.WithAttributes(
		attribute.String("plan.id", id),
		attribute.String("plan.observation", env.Key(obs)),
	))
	defer span.End()

	plan, err := p.plan(ctx, id, e, obs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Plan{}, err
	}
	span.SetAttributes(
		attribute.Int("plan.episodes", plan.Metric.Episodes),
		attribute.Int("plan.horizon", plan.Metric.Horizon),
		attribute.Int("plan.nodes", plan.Metric.Nodes),
	)
	return plan, nil
}

func (p *Planner) plan(ctx context.Context, id string, e env.Environment, obs env.Observation) (Plan, error) {
	actions, err := env.ActionCount(e)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to count actions: %w", err)
	}
	episodes, horizon := p.episodes, p.horizon
	if horizon == 0 {
		episodes, horizon, err = Allocate(max(actions, p.budget), p.gamma)
		if err != nil {
			return Plan{}, fmt.Errorf("failed to allocate budget: %w", err)
		}
	}

	reset := !p.reuse || p.graph == nil
	if reset {
		p.graph = newGraph()
	}
	g := p.graph
	g.rng = p.rng
	g.metrics = p.metrics
	g.bound = p.upperBound.Type
	g.reward = p.reward
	g.transition = p.transition
	g.gamma = p.gamma
	g.capacity = p.maxNextStates
	g.horizon = horizon
	g.episodes = episodes
	g.actions = actions

	_, known := g.lookup(env.Key(obs))
	p.metrics.Start(id, episodes, horizon)
	p.metrics.SetGraphReset(reset || !known)
	g.root = g.node(obs)

	for i := 0; i < episodes; i++ {
		if err := ctx.Err(); err != nil {
			return Plan{}, fmt.Errorf("planning interrupted after %d episodes: %w", i, err)
		}
		if event := log.Debug(); event.Enabled() && g.root.expanded() {
			event.Str("plan", id).Msg(summarize(g.root))
		}
		if err := p.run(e, obs); err != nil {
			return Plan{}, fmt.Errorf("episode %d failed: %w", i, err)
		}
		p.metrics.AddEpisode()
	}

	plan := Plan{ID: id}
	if plan.Actions, err = p.extract(g.root); err != nil {
		return Plan{}, fmt.Errorf("failed to extract plan: %w", err)
	}
	if plan.Values, err = rootValues(g.root); err != nil {
		return Plan{}, err
	}
	plan.Metric = p.metrics.Complete(len(g.nodes))
	return plan, nil
}

// run simulates one episode: follow the optimistic sampling rule from obs,
// record the transitions, then propagate the new bounds backwards.
func (p *Planner) run(e env.Environment, obs env.Observation) error {
	g := p.graph
	state := e.Clone()
	state.Seed(p.rng.Uint64())

	var queue []*decision
	observation := obs
	for h := 0; h < g.horizon; h++ {
		node := g.node(observation)
		i, err := node.sampleAction(state)
		if err != nil {
			return err
		}
		ch := node.children[i]

		transition, err := state.Step(ch.action)
		if err != nil {
			return fmt.Errorf("failed to step action %d from %q: %w", ch.action, node.key, err)
		}
		outcome, err := ch.child(transition.Observation)
		if err != nil {
			return err
		}

		if err := node.update(nil); err != nil {
			return err
		}
		ch.update()
		if transition.Done {
			outcome.terminals++
		}
		reward := transition.Reward
		if err := outcome.update(&reward); err != nil {
			return err
		}

		if utils.FindIndex(queue, node) < 0 {
			queue = append(queue, node)
		}
		if transition.Done {
			break
		}
		observation = transition.Observation
	}

	steps, err := partialValueIteration(utils.Reversed(queue), p.accuracy, p.maxPropagations)
	p.metrics.AddPropagations(steps)
	if err != nil {
		return fmt.Errorf("failed to propagate values: %w", err)
	}
	return nil
}

// extract follows the conservative selection rule along the most visited
// outcomes until the horizon, an unexplored state or the end of the episode.
func (p *Planner) extract(root *decision) ([]env.Action, error) {
	var actions []env.Action
	node := root
	for len(actions) < p.graph.horizon && node.expanded() {
		i, err := node.selectAction()
		if err != nil {
			return nil, err
		}
		ch := node.children[i]
		actions = append(actions, ch.action)

		outcome := ch.mostVisited()
		if outcome == nil || outcome.terminals == outcome.visits {
			break
		}
		next, ok := p.graph.lookup(outcome.key)
		if !ok {
			break
		}
		node = next
	}
	return actions, nil
}

func rootValues(root *decision) ([]ActionValue, error) {
	values := make([]ActionValue, len(root.children))
	for i, ch := range root.children {
		lo, err := ch.backup(lower)
		if err != nil {
			return nil, err
		}
		hi, err := ch.backup(upper)
		if err != nil {
			return nil, err
		}
		values[i] = ActionValue{Action: ch.action, Visits: ch.visits, Lower: lo, Upper: hi}
	}
	return values, nil
}

func summarize(root *decision) string {
	parts := make([]string, len(root.children))
	for i, ch := range root.children {
		parts[i] = fmt.Sprintf("a%d (%d): [%.3f, %.3f]", ch.action, ch.visits, ch.valueLower, ch.valueUpper)
	}
	return strings.Join(parts, " / ")
}
