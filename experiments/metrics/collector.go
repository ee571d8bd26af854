package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	Goroutines     int
	Duration       time.Duration
	Iterations     int
	Cutoff         int
	FullPlayouts   int
	PlayoutActions int
	IsTreeReset    bool
}

type MoveMetric struct {
	Step   int
	Player int
	Move   string
	SearchMetric
}

type GameMetric struct {
	StartingPlayer int
	Winner         int // -1 on a draw
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalMoves     int
}

// Collector gathers statistics of a single search. Start resets the counters,
// the Add methods are safe to call from any worker goroutine.
type Collector interface {
	Start(goroutines, cutoff int)
	SetTreeReset(value bool)
	AddFullPlayout()
	AddIteration()
	AddPlayoutActions(n int)
	Complete() SearchMetric
}

type collector struct {
	goroutines     int
	cutoff         int
	startTime      time.Time
	iterations     atomic.Int64
	fullPlayouts   atomic.Int64
	playoutActions atomic.Int64
	isTreeReset    atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) SetTreeReset(value bool) {
	m.isTreeReset.Store(value)
}

func (m *collector) Start(goroutines, cutoff int) {
	m.startTime = time.Now()
	m.goroutines = goroutines
	m.cutoff = cutoff
	m.iterations.Store(0)
	m.fullPlayouts.Store(0)
	m.playoutActions.Store(0)
}

func (m *collector) AddFullPlayout() {
	m.fullPlayouts.Add(1)
}

func (m *collector) AddIteration() {
	m.iterations.Add(1)
}

func (m *collector) AddPlayoutActions(n int) {
	m.playoutActions.Add(int64(n))
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Goroutines:     m.goroutines,
		Duration:       time.Since(m.startTime),
		Iterations:     int(m.iterations.Load()),
		FullPlayouts:   int(m.fullPlayouts.Load()),
		PlayoutActions: int(m.playoutActions.Load()),
		Cutoff:         m.cutoff,
		IsTreeReset:    m.isTreeReset.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(goroutines, cutoff int) {}
func (m *dummyCollector) SetTreeReset(value bool)      {}
func (m *dummyCollector) AddFullPlayout()              {}
func (m *dummyCollector) AddIteration()                {}
func (m *dummyCollector) AddPlayoutActions(n int)      {}
func (m *dummyCollector) Complete() SearchMetric       { return SearchMetric{} }
