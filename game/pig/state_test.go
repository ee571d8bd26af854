package pig

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestPlay(t *testing.T) {
	t.Run("only roll at turn start", func(t *testing.T) {
		s := New(DefaultTarget)

		require.Equal(t, []any{Roll}, toAny(s.LegalMoves()))
	})

	t.Run("same seed same outcome", func(t *testing.T) {
		s := New(DefaultTarget)
		a := s.Play(Roll, rand.New(rand.NewSource(7))).(*State)
		b := s.Play(Roll, rand.New(rand.NewSource(7))).(*State)

		require.Equal(t, a, b)
	})

	t.Run("roll of one passes the turn", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		s := New(DefaultTarget)
		for i := 0; i < 1000; i++ {
			next := s.Play(Roll, rng).(*State)
			if next.LastRoll() == 1 {
				require.Equal(t, 1, next.Player())
				require.Zero(t, next.TurnTotal())
				return
			}
			require.Equal(t, 0, next.Player())
			require.Equal(t, next.LastRoll(), next.TurnTotal())
		}
		t.Fatal("no roll of one in 1000 draws")
	})

	t.Run("hold banks turn total", func(t *testing.T) {
		s := &State{target: DefaultTarget, turnTotal: 9}
		next := s.Play(Hold, nil).(*State)

		require.Equal(t, 9, next.Score(0))
		require.Zero(t, next.TurnTotal())
		require.Equal(t, 1, next.Player())
		require.Zero(t, s.Score(0), "Play should not mutate receiver")
	})

	t.Run("reaching target ends the game", func(t *testing.T) {
		s := &State{target: DefaultTarget, scores: [2]int{19, 0}, turnTotal: 1}
		next := s.Play(Hold, nil).(*State)

		require.True(t, next.IsTerminal())
		require.Equal(t, 0, next.Winner())
		require.Equal(t, []float64{1, -1}, next.Utilities())
		require.Empty(t, next.LegalMoves())
	})
}

func TestEvaluate(t *testing.T) {
	s := &State{target: DefaultTarget, scores: [2]int{10, 4}}

	require.InDelta(t, 0.3, Evaluate(s, 0), 1e-9)
	require.InDelta(t, -0.3, Evaluate(s, 1), 1e-9)
}

func toAny[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
