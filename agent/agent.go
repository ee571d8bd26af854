package agent

import (
	"context"

	"treesearch/experiments/metrics"
	"treesearch/game"
)

type Agent interface {
	// InitEpisode prepares the agent for a new game
	InitEpisode() error
	// FindMove returns a move and search metrics (if collected). history lists every move played in the game so far
	FindMove(ctx context.Context, state game.State, history []game.Move) (game.Move, metrics.SearchMetric, error)
	// CloseEpisode releases resources held for the game
	CloseEpisode()
}
