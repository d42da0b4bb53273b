package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	PlanID       string
	Duration     time.Duration
	Episodes     int
	Horizon      int
	Expansions   int // Decision nodes created
	Propagations int // Node updates during partial value iteration
	Nodes        int // Size of the node table when the plan completed
	IsGraphReset bool
}

type StepMetric struct {
	Step   int
	Action int
	Reward float64
	SearchMetric
}

type EpisodeMetric struct {
	Trial     int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Steps     int
	Return    float64
	Done      bool
}

type Collector interface {
	Start(planID string, episodes, horizon int)
	SetGraphReset(value bool)
	AddEpisode()
	AddExpansion()
	AddPropagations(count int)
	Complete(nodes int) SearchMetric
}

type collector struct {
	planID       string
	horizon      int
	startTime    time.Time
	completed    atomic.Int32
	expansions   atomic.Int32
	propagations atomic.Int64
	isGraphReset atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) SetGraphReset(value bool) {
	m.isGraphReset.Store(value)
}

func (m *collector) Start(planID string, episodes, horizon int) {
	m.startTime = time.Now()
	m.planID = planID
	m.horizon = horizon
	m.completed.Store(0)
	m.expansions.Store(0)
	m.propagations.Store(0)
}

func (m *collector) AddEpisode() {
	m.completed.Add(1)
}

func (m *collector) AddExpansion() {
	m.expansions.Add(1)
}

func (m *collector) AddPropagations(count int) {
	m.propagations.Add(int64(count))
}

func (m *collector) Complete(nodes int) SearchMetric {
	return SearchMetric{
		PlanID:       m.planID,
		Duration:     time.Since(m.startTime),
		Episodes:     int(m.completed.Load()),
		Horizon:      m.horizon,
		Expansions:   int(m.expansions.Load()),
		Propagations: int(m.propagations.Load()),
		Nodes:        nodes,
		IsGraphReset: m.isGraphReset.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(planID string, episodes, horizon int) {}
func (m *dummyCollector) SetGraphReset(value bool)                  {}
func (m *dummyCollector) AddEpisode()                               {}
func (m *dummyCollector) AddExpansion()                             {}
func (m *dummyCollector) AddPropagations(count int)                 {}
func (m *dummyCollector) Complete(nodes int) SearchMetric           { return SearchMetric{} }
