package searcher

import (
	"math"

	"treesearch/game"

	"golang.org/x/exp/rand"
)

// FinalSelection picks the move to play from the root's children. It never
// modifies the tree. Unexpanded moves count as children without visits.
type FinalSelection interface {
	SelectMove(root *Node, rng *rand.Rand) game.Move
}

type childSummary struct {
	move   game.Move
	visits int
	value  float64
}

func summarize(root *Node) []childSummary {
	root.RLock()
	mover := root.mover
	moves := root.moves
	children := make([]*Node, len(root.children))
	copy(children, root.children)
	root.RUnlock()

	summary := make([]childSummary, len(moves))
	for i, move := range moves {
		summary[i].move = move
		if child := children[i]; child != nil {
			summary[i].visits, _, summary[i].value = child.stats(mover)
		}
	}
	return summary
}

// RobustChild picks the most visited child, then the best value.
type RobustChild struct{}

func (RobustChild) SelectMove(root *Node, rng *rand.Rand) game.Move {
	summary := summarize(root)
	best := argmax(len(summary), func(i int) float64 {
		return float64(summary[i].visits)
	}, rng)

	// Break visit ties by value before falling back to chance
	return summary[argmax(len(summary), func(i int) float64 {
		if summary[i].visits != summary[best].visits {
			return math.Inf(-1)
		}
		return summary[i].value
	}, rng)].move
}

// MaxAverage picks the child with the best value, whatever its visit count.
// Unvisited children are only picked when no child was visited.
type MaxAverage struct{}

func (MaxAverage) SelectMove(root *Node, rng *rand.Rand) game.Move {
	summary := summarize(root)
	return summary[argmax(len(summary), func(i int) float64 {
		if summary[i].visits == 0 {
			return math.Inf(-1)
		}
		return summary[i].value
	}, rng)].move
}

// Proportional samples a child with probability proportional to
// visits^(1/Temperature).
type Proportional struct {
	Temperature float64
}

func (p Proportional) SelectMove(root *Node, rng *rand.Rand) game.Move {
	summary := summarize(root)
	temperature := p.Temperature
	if temperature <= 0 {
		temperature = 1
	}

	weights := make([]float64, len(summary))
	total := 0.0
	for i, child := range summary {
		weights[i] = math.Pow(float64(child.visits), 1/temperature)
		total += weights[i]
	}
	if total == 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return RobustChild{}.SelectMove(root, rng)
	}
	for i := range weights {
		weights[i] /= total
	}
	return summary[sampleIndex(weights, rng)].move
}
