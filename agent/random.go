package agent

import (
	"context"

	"treesearch/experiments/metrics"
	"treesearch/game"

	"golang.org/x/exp/rand"
)

type randomAgent struct {
	rng *rand.Rand
}

// NewRandomAgent returns a baseline agent that plays uniformly random legal moves.
func NewRandomAgent(seed uint64) Agent {
	return &randomAgent{rng: rand.New(rand.NewSource(seed))}
}

func (a *randomAgent) InitEpisode() error { return nil }
func (a *randomAgent) CloseEpisode()      {}

func (a *randomAgent) FindMove(_ context.Context, state game.State, _ []game.Move) (game.Move, metrics.SearchMetric, error) {
	moves := state.LegalMoves()
	if len(moves) == 0 {
		panic("no legal moves")
	}
	return moves[a.rng.Intn(len(moves))], metrics.SearchMetric{}, nil
}
