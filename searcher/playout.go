package searcher

import (
	"math"

	"treesearch/game"

	"golang.org/x/exp/rand"
)

// Playout simulates from state until a terminal state, a state without legal
// moves, or cutoff actions (no limit if cutoff <= 0). It returns the end
// state and the number of actions executed.
type Playout interface {
	Playout(state game.State, cutoff int, rng *rand.Rand) (game.State, int)
}

func cutoffReached(depth, cutoff int) bool {
	return cutoff > 0 && depth >= cutoff
}

type RandomPlayout struct{}

func (RandomPlayout) Playout(state game.State, cutoff int, rng *rand.Rand) (game.State, int) {
	depth := 0
	for !state.IsTerminal() && !cutoffReached(depth, cutoff) {
		moves := state.LegalMoves()
		if len(moves) == 0 {
			break
		}
		state = state.Play(moves[rng.Intn(len(moves))], rng)
		depth++
	}
	return state, depth
}

// HeuristicPlayout plays the best of a random sample of legal moves,
// scored by Evaluate for the agent to move. Fraction sets the sample size
// relative to the legal moves. With Continuation, a move after which the
// same agent moves again is scored by the best follow-up it allows.
type HeuristicPlayout struct {
	Evaluate     game.Evaluate
	Fraction     float64
	Continuation bool
}

const maxContinuation = 4

func (h HeuristicPlayout) Playout(state game.State, cutoff int, rng *rand.Rand) (game.State, int) {
	depth := 0
	for !state.IsTerminal() && !cutoffReached(depth, cutoff) {
		moves := state.LegalMoves()
		if len(moves) == 0 {
			break
		}
		state, _ = h.best(state, moves, 0, rng)
		depth++
	}
	return state, depth
}

func (h HeuristicPlayout) best(state game.State, moves []game.Move, level int, rng *rand.Rand) (game.State, float64) {
	mover := state.Player()
	sample := sampleMoves(moves, h.Fraction, rng)

	var bestState game.State
	bestScore := math.Inf(-1)
	ties := 0
	for _, move := range sample {
		next := state.Play(move, rng)
		score := h.score(next, mover, level, rng)
		switch {
		case score > bestScore:
			bestState, bestScore, ties = next, score, 1
		case score == bestScore:
			ties++
			if rng.Intn(ties) == 0 {
				bestState = next
			}
		}
	}
	return bestState, bestScore
}

func (h HeuristicPlayout) score(state game.State, mover, level int, rng *rand.Rand) float64 {
	if state.IsTerminal() {
		return state.Utilities()[mover]
	}
	if h.Continuation && level < maxContinuation && state.Player() == mover {
		if moves := state.LegalMoves(); len(moves) > 0 {
			_, score := h.best(state, moves, level+1, rng)
			return score
		}
	}
	return h.Evaluate(state, mover)
}

// sampleMoves draws ceil(fraction*len(moves)) distinct moves, at least one.
func sampleMoves(moves []game.Move, fraction float64, rng *rand.Rand) []game.Move {
	k := int(math.Ceil(fraction * float64(len(moves))))
	if k < 1 {
		k = 1
	}
	if k >= len(moves) {
		return moves
	}
	sample := make([]game.Move, len(moves))
	copy(sample, moves)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(sample)-i)
		sample[i], sample[j] = sample[j], sample[i]
	}
	return sample[:k]
}

// PriorPlayout samples moves from a softmax over the prior's outputs, read
// as logits. With probability Epsilon a uniformly random move is played instead.
type PriorPlayout struct {
	Prior       game.Prior
	Epsilon     float64
	Temperature float64
}

func (p PriorPlayout) Playout(state game.State, cutoff int, rng *rand.Rand) (game.State, int) {
	depth := 0
	for !state.IsTerminal() && !cutoffReached(depth, cutoff) {
		moves := state.LegalMoves()
		if len(moves) == 0 {
			break
		}

		var move game.Move
		if rng.Float64() < p.Epsilon {
			move = moves[rng.Intn(len(moves))]
		} else {
			dist := p.Prior(state)
			logits := make([]float64, len(moves))
			for i, m := range moves {
				logits[i] = dist[m]
			}
			move = moves[sampleIndex(softmax(logits, p.Temperature), rng)]
		}
		state = state.Play(move, rng)
		depth++
	}
	return state, depth
}

func sampleIndex(probs []float64, rng *rand.Rand) int {
	r := rng.Float64()
	for i, p := range probs {
		r -= p
		if r < 0 {
			return i
		}
	}
	return len(probs) - 1
}

// endUtilities scores the end of a playout: terminal states by their
// utilities, cut off states by the heuristic or as a draw.
func endUtilities(state game.State, evaluate game.Evaluate) []float64 {
	if state.IsTerminal() {
		return state.Utilities()
	}
	if evaluate != nil {
		return heuristicVector(state, evaluate)
	}
	return make([]float64, state.NumPlayers())
}
