package searcher

import (
	"time"

	"treesearch/game"

	"golang.org/x/exp/rand"
)

type mockMove string

// mockState is a one-shot game: player 0 picks a move and the game ends
// with the utilities configured for that move.
type mockState struct {
	moves    []game.Move
	outcomes map[game.Move][]float64
	played   []game.Move
}

func newDominanceState() mockState {
	return mockState{
		moves: []game.Move{mockMove("A"), mockMove("B")},
		outcomes: map[game.Move][]float64{
			mockMove("A"): {1, -1},
			mockMove("B"): {-1, 1},
		},
	}
}

func (m mockState) Player() int {
	return len(m.played) % 2
}

func (m mockState) NumPlayers() int {
	return 2
}

func (m mockState) LegalMoves() []game.Move {
	if m.IsTerminal() {
		return nil
	}
	return m.moves
}

func (m mockState) Play(move game.Move, _ *rand.Rand) game.State {
	played := make([]game.Move, len(m.played), len(m.played)+1)
	copy(played, m.played)
	return mockState{moves: m.moves, outcomes: m.outcomes, played: append(played, move)}
}

func (m mockState) IsTerminal() bool {
	return len(m.played) > 0
}

func (m mockState) Utilities() []float64 {
	if !m.IsTerminal() {
		return []float64{0, 0}
	}
	return m.outcomes[m.played[0]]
}

func (m mockState) IsStochastic() bool {
	return false
}

// coinState is a stochastic game: player 0 either stops or flips a coin.
// Heads lets player 0 move again, tails hands the move to player 1, who may
// only stop. Stopping ends the game in favor of the agent who flipped last.
type coinState struct {
	player int
	flips  int
	done   bool
}

const (
	flip mockMove = "flip"
	stop mockMove = "stop"
)

func (c coinState) Player() int     { return c.player }
func (c coinState) NumPlayers() int { return 2 }
func (c coinState) IsStochastic() bool {
	return true
}

func (c coinState) LegalMoves() []game.Move {
	switch {
	case c.done:
		return nil
	case c.player == 0 && c.flips < 3:
		return []game.Move{flip, stop}
	default:
		return []game.Move{stop}
	}
}

func (c coinState) Play(move game.Move, rng *rand.Rand) game.State {
	next := c
	if move == stop {
		next.done = true
		return next
	}
	next.flips++
	if rng.Intn(2) == 1 {
		next.player = 1
	}
	return next
}

func (c coinState) IsTerminal() bool { return c.done }

func (c coinState) Utilities() []float64 {
	return game.WinnerUtilities(2, c.flips%2)
}

type slowPlayout struct {
	delay time.Duration
}

func (s slowPlayout) Playout(state game.State, _ int, _ *rand.Rand) (game.State, int) {
	time.Sleep(s.delay)
	return state, 0
}

type mirrorMove int

func (m mirrorMove) Canonical() game.Move {
	if m < 0 {
		return -m
	}
	return m
}

type passMove struct{}

func (passMove) DepthSensitive() bool { return true }

func testOptions() *treeOptions {
	return &treeOptions{kind: stateful, qinit: QInitInf, average: true}
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// walk visits every node of the tree below root, root included.
func walk(root *Node, visit func(node *Node)) {
	visit(root)
	for i := 0; i < root.NumLegalMoves(); i++ {
		if child := root.ChildForIndex(i); child != nil {
			walk(child, visit)
		}
	}
}
