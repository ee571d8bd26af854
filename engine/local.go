package engine

import (
	"context"
	"fmt"
	"time"

	"treesearch/agent"
	"treesearch/experiments/metrics"
	"treesearch/game"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

// LocalEngine runs a game between agents in the current process. Agent i
// plays for player i.
type LocalEngine struct {
	State    game.State
	Agents   []agent.Agent
	History  []game.Move
	maxMoves int
	rng      *rand.Rand
}

func NewLocalEngine(agents []agent.Agent, state game.State, seed uint64) *LocalEngine {
	if len(agents) != state.NumPlayers() {
		panic("number of agents does not match number of players")
	}
	if len(agents) < 2 {
		panic("need at least two agents")
	}

	return &LocalEngine{
		State:    state,
		Agents:   agents,
		maxMoves: MaxMoves,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (e *LocalEngine) WithMaxMoves(maxMoves int) *LocalEngine {
	if maxMoves > 0 {
		e.maxMoves = maxMoves
	}
	return e
}

// Run executes the game loop until the game is over. Every agent sees the
// full move history so it can reuse its search tree.
func (e *LocalEngine) Run(ctx context.Context) (metrics.GameMetric, []metrics.MoveMetric, error) {
	for i, a := range e.Agents {
		if err := a.InitEpisode(); err != nil {
			return metrics.GameMetric{}, nil, fmt.Errorf("failed to initialize agent %d: %w", i, err)
		}
		defer a.CloseEpisode()
	}

	gameMetric := metrics.GameMetric{
		StartingPlayer: e.State.Player(),
		Winner:         -1,
		StartTime:      time.Now(),
	}
	log.Info().Msgf("player %d is starting", gameMetric.StartingPlayer)

	var moveMetrics []metrics.MoveMetric
	for step := 1; !e.State.IsTerminal() && step <= e.maxMoves; step++ {
		if err := ctx.Err(); err != nil {
			return gameMetric, moveMetrics, err
		}

		player := e.State.Player()
		move, searchMetric, err := e.Agents[player].FindMove(ctx, e.State, e.History)
		if err != nil {
			return gameMetric, moveMetrics, fmt.Errorf("agent %d failed at step %d: %w", player, step, err)
		}
		moveMetrics = append(moveMetrics, metrics.MoveMetric{
			Step:         step,
			Player:       player,
			Move:         fmt.Sprint(move),
			SearchMetric: searchMetric,
		})

		e.State = e.State.Play(move, e.rng)
		e.History = append(e.History, move)
	}

	gameMetric.EndTime = time.Now()
	gameMetric.Duration = gameMetric.EndTime.Sub(gameMetric.StartTime)
	gameMetric.TotalMoves = len(e.History)
	if e.State.IsTerminal() {
		gameMetric.Winner = winner(e.State.Utilities())
	} else {
		log.Warn().Msgf("stopped after %d moves without a result", e.maxMoves)
	}
	return gameMetric, moveMetrics, nil
}

// winner returns the single agent with the highest utility, -1 on a tie.
func winner(utilities []float64) int {
	best := 0
	for i, u := range utilities {
		if u > utilities[best] {
			best = i
		}
	}
	for i, u := range utilities {
		if i != best && u == utilities[best] {
			return -1
		}
	}
	return best
}
