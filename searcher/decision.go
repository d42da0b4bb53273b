package searcher

import (
	"fmt"

	"gbop/env"
	"gbop/utils"
)

type bound int

const (
	lower bound = iota
	upper
)

func (b bound) String() string {
	if b == upper {
		return "value_upper"
	}
	return "value_lower"
}

// decision is a state node. Canonical nodes in the graph table hold N(s) and
// V(s); outcome nodes held by a chance node hold N(s,a,s') and the reward
// statistics of that transition, and read V(s') through the table.
type decision struct {
	graph       *graph
	key         string
	observation env.Observation
	placeholder bool

	visits    int
	rewards   float64
	terminals int // Visits whose transition ended the episode
	muUCB     float64
	muLCB     float64

	valueUpper float64
	valueLower float64

	actions  []env.Action
	children []*chance

	parents   []*decision
	parentSet map[*decision]struct{}
}

func newDecision(g *graph, obs env.Observation) *decision {
	return &decision{
		graph:       g,
		key:         env.Key(obs),
		observation: obs,
		muUCB:       1,
		muLCB:       0,
		valueUpper:  g.vmax(),
		valueLower:  0,
		parentSet:   make(map[*decision]struct{}),
	}
}

func newPlaceholder(g *graph) *decision {
	d := newDecision(g, nil)
	d.key = ""
	d.placeholder = true
	return d
}

func (d *decision) bind(obs env.Observation) {
	d.observation = obs
	d.key = env.Key(obs)
	d.placeholder = false
}

func (d *decision) expand(e env.Environment) error {
	actions, err := env.Actions(e)
	if err != nil {
		return fmt.Errorf("failed to expand %q: %w", d.key, err)
	}
	if len(actions) == 0 {
		return fmt.Errorf("%w: state %q has no legal actions", ErrPrecondition, d.key)
	}
	d.actions = actions
	d.children = make([]*chance, len(actions))
	for i, action := range actions {
		d.children[i] = newChance(d, action)
	}
	return nil
}

func (d *decision) expanded() bool {
	return len(d.children) > 0
}

// sampleAction is the optimistic sampling rule: the action index with the
// highest upper Q bound, expanding the node on first use.
func (d *decision) sampleAction(e env.Environment) (int, error) {
	if !d.expanded() {
		if err := d.expand(e); err != nil {
			return -1, err
		}
	}
	values, err := d.backup(upper)
	if err != nil {
		return -1, err
	}
	return utils.RandomArgMax(values, d.graph.rng), nil
}

// selectAction is the conservative selection rule used to extract a plan.
func (d *decision) selectAction() (int, error) {
	if !d.expanded() {
		return -1, fmt.Errorf("%w: cannot select an action in unexpanded state %q", ErrPrecondition, d.key)
	}
	values, err := d.backup(lower)
	if err != nil {
		return -1, err
	}
	return utils.RandomArgMax(values, d.graph.rng), nil
}

// update counts a visit and, when a reward is given, refreshes the reward
// confidence interval.
func (d *decision) update(reward *float64) error {
	d.visits++
	if reward == nil {
		return nil
	}
	d.rewards += *reward
	return d.updateRewardBounds()
}

func (d *decision) updateRewardBounds() error {
	if d.graph.bound != KullbackLeibler {
		return fmt.Errorf("%w: %q", ErrUnknownBound, d.graph.bound)
	}
	threshold := d.graph.reward(d.graph.vars(d.visits))
	if threshold == 0 {
		mean := d.rewards / float64(d.visits)
		d.muUCB, d.muLCB = mean, mean
		return nil
	}
	ucb, err := ConfidenceBound(d.rewards, d.visits, threshold, false)
	if err != nil {
		return fmt.Errorf("failed to compute reward upper bound of %q: %w", d.key, err)
	}
	lcb, err := ConfidenceBound(d.rewards, d.visits, threshold, true)
	if err != nil {
		return fmt.Errorf("failed to compute reward lower bound of %q: %w", d.key, err)
	}
	d.muUCB, d.muLCB = ucb, lcb
	return nil
}

func (d *decision) value(b bound) float64 {
	if b == upper {
		return d.valueUpper
	}
	return d.valueLower
}

func (d *decision) setValue(b bound, value float64) {
	if b == upper {
		d.valueUpper = value
	} else {
		d.valueLower = value
	}
}

// estimate is the value of the state this node leads to. Outcome nodes read
// it from the canonical node of their observation. The share of visits that
// ended the episode contributes no future value.
func (d *decision) estimate(b bound) float64 {
	node := d
	if !d.placeholder {
		if canonical, ok := d.graph.lookup(d.key); ok {
			node = canonical
		}
	}
	value := node.value(b)
	if d.terminals > 0 && d.visits > 0 {
		value *= 1 - float64(d.terminals)/float64(d.visits)
	}
	return value
}

// backup returns Q(s, a) for every action, in action order.
func (d *decision) backup(b bound) ([]float64, error) {
	values := make([]float64, len(d.children))
	for i, child := range d.children {
		value, err := child.backup(b)
		if err != nil {
			return nil, err
		}
		values[i] = value
	}
	return values, nil
}

func (d *decision) addParent(parent *decision) {
	if _, ok := d.parentSet[parent]; ok {
		return
	}
	d.parentSet[parent] = struct{}{}
	d.parents = append(d.parents, parent)
}

func (d *decision) String() string {
	return fmt.Sprintf("%s (L:%.2f, U:%.2f)", d.key, d.valueLower, d.valueUpper)
}
