package searcher

import (
	"testing"

	"treesearch/game"
	"treesearch/game/tictactoe"

	"github.com/stretchr/testify/require"
)

func TestRandomPlayout(t *testing.T) {
	t.Run("plays to a terminal state", func(t *testing.T) {
		end, actions := RandomPlayout{}.Playout(tictactoe.New(), 0, newRNG(3))

		require.True(t, end.IsTerminal())
		require.GreaterOrEqual(t, actions, 5, "Tic-tac-toe needs five moves to end")
		require.LessOrEqual(t, actions, 9)
	})

	t.Run("stops at cutoff", func(t *testing.T) {
		end, actions := RandomPlayout{}.Playout(tictactoe.New(), 2, newRNG(3))

		require.Equal(t, 2, actions)
		require.Len(t, end.LegalMoves(), 7)
	})

	t.Run("terminal state unchanged", func(t *testing.T) {
		state := newDominanceState().Play(mockMove("A"), nil)
		end, actions := RandomPlayout{}.Playout(state, 0, newRNG(3))

		require.Equal(t, state, end)
		require.Zero(t, actions)
	})
}

func TestHeuristicPlayout(t *testing.T) {
	// X to move with a winning square at 2
	state := tictactoe.New()
	for _, sq := range []tictactoe.Square{0, 3, 1, 4} {
		state = state.Play(sq, nil).(*tictactoe.State)
	}

	t.Run("full sample finds the win", func(t *testing.T) {
		playout := HeuristicPlayout{Evaluate: tictactoe.Evaluate, Fraction: 1}
		end, actions := playout.Playout(state, 1, newRNG(5))

		require.Equal(t, 1, actions)
		require.True(t, end.IsTerminal())
		require.Equal(t, 0, end.(*tictactoe.State).Winner())
	})

	t.Run("sample size", func(t *testing.T) {
		moves := state.LegalMoves()

		require.Len(t, sampleMoves(moves, 0.5, newRNG(1)), 3)
		require.Len(t, sampleMoves(moves, 0, newRNG(1)), 1)
		require.Len(t, sampleMoves(moves, 2, newRNG(1)), len(moves))
	})

	t.Run("continuation scores same-agent follow ups", func(t *testing.T) {
		playout := HeuristicPlayout{
			Evaluate:     func(state game.State, player int) float64 { return 0 },
			Fraction:     1,
			Continuation: true,
		}
		end, actions := playout.Playout(coinState{}, 1, newRNG(2))

		require.Equal(t, 1, actions)
		require.NotNil(t, end)
	})
}

func TestPriorPlayout(t *testing.T) {
	prior := func(game.State) map[game.Move]float64 {
		return map[game.Move]float64{mockMove("A"): 50, mockMove("B"): 0}
	}

	t.Run("follows the prior", func(t *testing.T) {
		playout := PriorPlayout{Prior: prior, Temperature: 1}
		for seed := uint64(0); seed < 20; seed++ {
			end, _ := playout.Playout(newDominanceState(), 0, newRNG(seed))

			require.Equal(t, []float64{1, -1}, end.Utilities())
		}
	})

	t.Run("epsilon plays uniformly", func(t *testing.T) {
		playout := PriorPlayout{Prior: prior, Epsilon: 1, Temperature: 1}
		outcomes := make(map[float64]bool)
		rng := newRNG(11)
		for i := 0; i < 50; i++ {
			end, _ := playout.Playout(newDominanceState(), 0, rng)
			outcomes[end.Utilities()[0]] = true
		}

		require.Len(t, outcomes, 2)
	})
}

func TestEndUtilities(t *testing.T) {
	t.Run("cut off without heuristic is a draw", func(t *testing.T) {
		require.Equal(t, []float64{0, 0}, endUtilities(tictactoe.New(), nil))
	})

	t.Run("cut off with heuristic", func(t *testing.T) {
		state := tictactoe.New().Play(tictactoe.Square(4), nil)
		got := endUtilities(state, tictactoe.Evaluate)

		require.Equal(t, tictactoe.Evaluate(state, 0), got[0])
		require.Equal(t, tictactoe.Evaluate(state, 1), got[1])
	})
}
