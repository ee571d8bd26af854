package searcher

import (
	"math"

	"treesearch/game"

	"golang.org/x/exp/rand"
)

const (
	DefaultExploration      = math.Sqrt2
	DefaultHistoryInfluence = 10.0
)

// Edge is a snapshot of one selectable child. Unvisited children carry the
// node's unvisited value estimate in Value.
type Edge struct {
	Index   int
	Move    game.Move
	Visits  int
	Virtual int
	Value   float64
	Prior   float64
}

// Choice describes a selection step at a node for the agent to move.
type Choice struct {
	Mover   int
	Depth   int
	Visits  int // node visits including virtual visits
	Edges   []Edge
	History *History
}

// Selection picks the position in c.Edges to descend to. Implementations
// must break ties uniformly at random using rng.
type Selection interface {
	Select(c *Choice, rng *rand.Rand) int
}

// historyUser is implemented by strategies that read the global action
// statistics, backup maintains the table only when one is configured.
type historyUser interface {
	UsesHistory() bool
}

// argmax returns the index of the highest score, breaking ties by reservoir sampling.
func argmax(n int, score func(i int) float64, rng *rand.Rand) int {
	best := -1
	bestScore := math.Inf(-1)
	ties := 0
	for i := 0; i < n; i++ {
		s := score(i)
		switch {
		case s > bestScore:
			best, bestScore, ties = i, s, 1
		case s == bestScore:
			ties++
			if rng.Intn(ties) == 0 {
				best = i
			}
		}
	}
	if best < 0 { // all scores NaN
		return rng.Intn(n)
	}
	return best
}

func parentLog(visits int) float64 {
	return math.Log(math.Max(1, float64(visits)))
}

func explore(c, log float64, visits int) float64 {
	if visits == 0 {
		return c * math.Sqrt(log)
	}
	return c * math.Sqrt(log/float64(visits))
}

type UCB1 struct {
	Exploration float64
}

func NewUCB1() UCB1 {
	return UCB1{Exploration: DefaultExploration}
}

func (u UCB1) Select(c *Choice, rng *rand.Rand) int {
	log := parentLog(c.Visits)
	return argmax(len(c.Edges), func(i int) float64 {
		e := c.Edges[i]
		return e.Value + explore(u.Exploration, log, e.Visits+e.Virtual)
	}, rng)
}

// PUCT is the prior-guided rule of AlphaZero. Nodes without a prior are
// treated as if every move had equal probability.
type PUCT struct {
	Exploration float64
}

func NewPUCT() PUCT {
	return PUCT{Exploration: 2.5}
}

func (p PUCT) Select(c *Choice, rng *rand.Rand) int {
	sqrtN := math.Sqrt(float64(c.Visits))
	return argmax(len(c.Edges), func(i int) float64 {
		e := c.Edges[i]
		return e.Value + p.Exploration*e.Prior*sqrtN/float64(1+e.Visits+e.Virtual)
	}, rng)
}

// ProgressiveHistory adds to UCB1 a bias towards moves that scored well
// anywhere in the search, fading as the child collects visits of its own.
type ProgressiveHistory struct {
	Exploration float64
	Influence   float64
}

func NewProgressiveHistory() ProgressiveHistory {
	return ProgressiveHistory{Exploration: DefaultExploration, Influence: DefaultHistoryInfluence}
}

func (p ProgressiveHistory) UsesHistory() bool { return true }

func (p ProgressiveHistory) Select(c *Choice, rng *rand.Rand) int {
	log := parentLog(c.Visits)
	return argmax(len(c.Edges), func(i int) float64 {
		e := c.Edges[i]
		n := e.Visits + e.Virtual
		score := e.Value + explore(p.Exploration, log, n)
		if c.History == nil {
			return score
		}
		if avg, ok := c.History.Average(c.Mover, e.Move, c.Depth); ok {
			exploit := math.Min(e.Value, 1)
			score += p.Influence * avg / (float64(n)*(1-exploit) + 1)
		}
		return score
	}, rng)
}
