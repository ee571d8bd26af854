package game

import "golang.org/x/exp/rand"

// Move is an action in the environment. Moves must be comparable: the searcher
// uses them as map keys and matches played moves against tree edges with ==.
type Move any

// State should be immutable - operations on State always return a new copy
type State interface {
	// Player returns the index of the agent to act, in [0, NumPlayers())
	Player() int
	NumPlayers() int
	LegalMoves() []Move
	// Play applies a move. Stochastic transitions must draw only from rng so
	// they can be reproduced from a seeded source.
	Play(move Move, rng *rand.Rand) State
	IsTerminal() bool
	// Utilities returns the terminal utility of each agent, indexed by agent.
	Utilities() []float64
	// IsStochastic reports whether the environment has chance events.
	IsStochastic() bool
}

// Evaluates the game state to a score between -1 and 1 indicating how
// favorable the position is to the given player.
type Evaluate func(state State, player int) float64

// Prior returns a learned action distribution for the player to act. Values
// are treated as logits by the consumers that need a softmax.
type Prior func(state State) map[Move]float64

// Canonical moves are merged with their functionally symmetric counterparts
// when collecting global action statistics.
type Canonical interface {
	Canonical() Move
}

// DepthSensitive moves (pass, swap) are told apart by the depth they are
// played at when collecting global action statistics.
type DepthSensitive interface {
	DepthSensitive() bool
}

// WinnerUtilities returns a zero-sum utility vector where winner gets +1 and every
// other agent -1. A negative winner is a draw.
func WinnerUtilities(numPlayers, winner int) []float64 {
	utilities := make([]float64, numPlayers)
	if winner < 0 {
		return utilities
	}
	for i := range utilities {
		if i == winner {
			utilities[i] = 1
		} else {
			utilities[i] = -1
		}
	}
	return utilities
}
