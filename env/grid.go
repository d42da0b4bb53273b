package env

import (
	"errors"
	"fmt"
)

// Moves of the WindyGrid action space.
const (
	Up Action = iota
	Down
	Left
	Right
)

// Cell is a WindyGrid position and its observation.
type Cell struct {
	Row, Col int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// WindyGrid is a gridworld where a column's wind pushes the agent upwards
// after each move: not at all, by the base strength, or one more than that,
// with probabilities Gusts[0..2]. Reaching Goal pays 1 and ends the episode.
type WindyGrid struct {
	Rows, Cols int
	Wind       []int
	Gusts      [3]float64
	Start      Cell
	Goal       Cell
	MaxSteps   int

	random random
	agent  Cell
	steps  int
}

// NewWindyGrid builds the textbook 7x10 windy gridworld with stochastic gusts.
func NewWindyGrid() *WindyGrid {
	g := &WindyGrid{
		Rows:     7,
		Cols:     10,
		Wind:     []int{0, 0, 0, 1, 1, 1, 2, 2, 1, 0},
		Gusts:    [3]float64{0.2, 0.6, 0.2},
		Start:    Cell{Row: 3, Col: 0},
		Goal:     Cell{Row: 3, Col: 7},
		MaxSteps: 50,
	}
	g.random = newRandom(0)
	g.agent = g.Start
	return g
}

// Validate checks the grid geometry and gust distribution.
func (g *WindyGrid) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return errors.New("grid must have positive dimensions")
	}
	if len(g.Wind) != g.Cols {
		return fmt.Errorf("wind has %d columns, grid has %d", len(g.Wind), g.Cols)
	}
	if !g.inside(g.Start) || !g.inside(g.Goal) {
		return errors.New("start and goal must be on the grid")
	}
	total := g.Gusts[0] + g.Gusts[1] + g.Gusts[2]
	if total < 1-1e-9 || total > 1+1e-9 {
		return fmt.Errorf("gust probabilities sum to %v", total)
	}
	return nil
}

func (g *WindyGrid) Clone() Environment {
	wind := make([]int, len(g.Wind))
	copy(wind, g.Wind)
	clone := *g
	clone.Wind = wind
	clone.random = g.random.clone()
	return &clone
}

func (g *WindyGrid) Seed(seed uint64) {
	g.random.seed(seed)
}

func (g *WindyGrid) ActionSpaceSize() int {
	return 4
}

func (g *WindyGrid) Observation() Observation {
	return g.agent
}

func (g *WindyGrid) Step(action Action) (Transition, error) {
	next := g.agent
	switch action {
	case Up:
		next.Row--
	case Down:
		next.Row++
	case Left:
		next.Col--
	case Right:
		next.Col++
	default:
		return Transition{}, fmt.Errorf("grid has no action %d", action)
	}
	next = g.clip(next)

	// Wind of the column the agent lands in
	gust := g.random.pick(g.Gusts[:])
	if gust > 0 {
		next.Row -= g.Wind[next.Col] + gust - 1
	}
	next = g.clip(next)

	g.agent = next
	g.steps++
	reward := 0.0
	if next == g.Goal {
		reward = 1
	}
	return Transition{
		Observation: next,
		Reward:      reward,
		Done:        next == g.Goal || (g.MaxSteps > 0 && g.steps >= g.MaxSteps),
		Info:        map[string]any{"steps": g.steps},
	}, nil
}

func (g *WindyGrid) inside(c Cell) bool {
	return c.Row >= 0 && c.Row < g.Rows && c.Col >= 0 && c.Col < g.Cols
}

func (g *WindyGrid) clip(c Cell) Cell {
	c.Row = min(max(c.Row, 0), g.Rows-1)
	c.Col = min(max(c.Col, 0), g.Cols-1)
	return c
}
