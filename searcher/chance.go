package searcher

import (
	"fmt"

	"gbop/env"

	"gonum.org/v1/gonum/floats"
)

// chance is a state-action node. Its outcomes live in a fixed pool of
// max_next_states_count slots, bound to observations in arrival order.
type chance struct {
	parent *decision
	action env.Action
	visits int

	slots []*decision
	used  []bool
	index map[string]int // Observation key to slot

	pHat   []float64
	pPlus  []float64
	pMinus []float64

	valueUpper float64
	valueLower float64
}

func newChance(parent *decision, action env.Action) *chance {
	g := parent.graph
	slots := make([]*decision, g.capacity)
	for i := range slots {
		slots[i] = newPlaceholder(g)
	}
	return &chance{
		parent:     parent,
		action:     action,
		slots:      slots,
		used:       make([]bool, g.capacity),
		index:      make(map[string]int),
		valueUpper: g.vmax(),
		valueLower: 0,
	}
}

func (c *chance) update() {
	c.visits++
}

// child returns the outcome node for obs, binding the first free slot on a
// new observation and linking the canonical node of obs back to this state.
func (c *chance) child(obs env.Observation) (*decision, error) {
	key := env.Key(obs)
	if i, ok := c.index[key]; ok {
		return c.slots[i], nil
	}
	for i, used := range c.used {
		if used {
			continue
		}
		c.used[i] = true
		c.index[key] = i
		c.slots[i].bind(obs)
		c.parent.graph.node(obs).addParent(c.parent)
		return c.slots[i], nil
	}
	return nil, &CapacityError{
		State:       c.parent.key,
		Action:      c.action,
		Observation: key,
		Capacity:    len(c.slots),
	}
}

// mostVisited returns the realised outcome with the most visits, or nil.
func (c *chance) mostVisited() *decision {
	var best *decision
	for i, slot := range c.slots {
		if c.used[i] && (best == nil || slot.visits > best.visits) {
			best = slot
		}
	}
	return best
}

func (c *chance) value(b bound) float64 {
	if b == upper {
		return c.valueUpper
	}
	return c.valueLower
}

// backup is the Bellman operator Q(s,a) = E_p[r(s,a,s') + gamma V(s')] under
// the most optimistic (or pessimistic) p within the KL ball around p_hat.
func (c *chance) backup(b bound) (float64, error) {
	if c.visits == 0 {
		return c.value(b), nil
	}
	g := c.parent.graph

	c.pHat = make([]float64, len(c.slots))
	for i, slot := range c.slots {
		c.pHat[i] = float64(slot.visits) / float64(c.visits)
	}
	threshold := g.transition(g.vars(c.visits)) / float64(c.visits)

	next := make([]float64, len(c.slots))
	for i, slot := range c.slots {
		if b == upper {
			next[i] = slot.muUCB + g.gamma*slot.estimate(upper)
		} else {
			next[i] = slot.muLCB + g.gamma*slot.estimate(lower)
		}
	}

	if b == upper {
		p, err := ConstrainedExpectation(next, c.pHat, threshold)
		if err != nil {
			return 0, fmt.Errorf("failed to back up %v of %q action %d: %w", b, c.parent.key, c.action, err)
		}
		c.pPlus = p
		c.valueUpper = floats.Dot(p, next)
		return c.valueUpper, nil
	}

	negated := make([]float64, len(next))
	floats.ScaleTo(negated, -1, next)
	p, err := ConstrainedExpectation(negated, c.pHat, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to back up %v of %q action %d: %w", b, c.parent.key, c.action, err)
	}
	c.pMinus = p
	c.valueLower = floats.Dot(p, next)
	return c.valueLower, nil
}
