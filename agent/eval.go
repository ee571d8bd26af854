package agent

import (
	"context"
	"fmt"

	"treesearch/experiments/metrics"
	"treesearch/game"
	"treesearch/searcher"
)

type evaluationAgent struct {
	mcts   *searcher.MCTS
	budget searcher.Budget
}

// NewEvaluationAgent returns an agent that plays the move chosen by a search within budget.
func NewEvaluationAgent(mcts *searcher.MCTS, budget searcher.Budget) Agent {
	return &evaluationAgent{mcts: mcts, budget: budget}
}

func (a *evaluationAgent) InitEpisode() error {
	return a.mcts.InitEpisode()
}

func (a *evaluationAgent) FindMove(ctx context.Context, state game.State, history []game.Move) (game.Move, metrics.SearchMetric, error) {
	move, err := a.mcts.SelectAction(ctx, state, history, a.budget)
	if err != nil {
		return nil, metrics.SearchMetric{}, fmt.Errorf("failed to search: %w", err)
	}
	return move, a.mcts.LastMetric(), nil
}

func (a *evaluationAgent) CloseEpisode() {
	a.mcts.CloseEpisode()
}
