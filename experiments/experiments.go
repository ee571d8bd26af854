package experiments

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"treesearch/agent"
	"treesearch/engine"
	"treesearch/experiments/metrics"
	"treesearch/game"
	"treesearch/game/pig"
	"treesearch/game/tictactoe"
	"treesearch/searcher"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Result struct {
	GameRecords []metrics.GameRecord
	MoveRecords []metrics.MoveRecord
}

// Wins counts the games won by every agent ID.
func (r Result) Wins() map[int]int {
	wins := make(map[int]int)
	for _, record := range r.GameRecords {
		switch record.Winner {
		case 0:
			wins[record.Agent1]++
		case 1:
			wins[record.Agent2]++
		}
	}
	return wins
}

type Runner struct {
	config   Config
	registry *metrics.Registry
}

// NewRunner returns a runner for config. A non-nil registry publishes the
// search metrics of every agent to Prometheus.
func NewRunner(config Config, registry *metrics.Registry) *Runner {
	return &Runner{config: config, registry: registry}
}

type job struct {
	id     int
	agent1 metrics.AgentConfig
	agent2 metrics.AgentConfig
}

// Run plays every game of every match up, Parallel games at a time.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var jobs []job
	for mi, matchup := range r.config.MatchUps {
		config1, config2 := r.config.agent(matchup[0]), r.config.agent(matchup[1])
		log.Info().Msgf("scheduling matchup %d of %d between agent1=%d and agent2=%d", mi+1, len(r.config.MatchUps), config1.ID, config2.ID)

		for i := 0; i < r.config.Games; i++ {
			j := job{id: len(jobs) + 1, agent1: config1, agent2: config2}
			if r.config.Alternate && i%2 == 1 {
				j.agent1, j.agent2 = config2, config1
			}
			jobs = append(jobs, j)
		}
	}

	log.Info().Msgf("starting %s experiment with %d games...", r.config.Name, len(jobs))

	var (
		mu     sync.Mutex
		result Result
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Parallel)
	for _, j := range jobs {
		g.Go(func() error {
			gameMetric, moveMetrics, err := r.runGame(ctx, j)
			if err != nil {
				return fmt.Errorf("game %d: %w", j.id, err)
			}

			mu.Lock()
			defer mu.Unlock()
			result.GameRecords = append(result.GameRecords, metrics.GameRecord{
				ID:         j.id,
				Agent1:     j.agent1.ID,
				Agent2:     j.agent2.ID,
				GameMetric: gameMetric,
			})
			for _, mm := range moveMetrics {
				result.MoveRecords = append(result.MoveRecords, metrics.MoveRecord{
					Game:       j.id,
					MoveMetric: mm,
				})
			}
			log.Info().Msgf("completed game %d of %d with winner: %d", j.id, len(jobs), gameMetric.Winner)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	log.Info().Msgf("completed %s experiment", r.config.Name)
	return result, nil
}

// runGame executes a single game between two agents
func (r *Runner) runGame(ctx context.Context, j job) (metrics.GameMetric, []metrics.MoveMetric, error) {
	seed := r.config.Seed + uint64(j.id)*7919
	agents := []agent.Agent{
		r.createAgent(j.agent1, seed+1),
		r.createAgent(j.agent2, seed+2),
	}
	e := engine.NewLocalEngine(agents, r.newState(), seed)
	return e.Run(ctx)
}

func (r *Runner) newState() game.State {
	if r.config.Game == "pig" {
		return pig.New(r.config.Target)
	}
	return tictactoe.New()
}

func (r *Runner) evaluate() game.Evaluate {
	if r.config.Game == "pig" {
		return pig.Evaluate
	}
	return tictactoe.Evaluate
}

func (r *Runner) createAgent(config metrics.AgentConfig, seed uint64) agent.Agent {
	if config.Seed != 0 {
		seed = config.Seed
	}
	if config.Kind == "random" {
		return agent.NewRandomAgent(seed)
	}
	budget := searcher.Budget{Duration: config.Duration, Iterations: config.Iterations, Depth: config.Cutoff}
	return agent.NewEvaluationAgent(r.createMCTS(config, seed), budget)
}

func (r *Runner) createMCTS(config metrics.AgentConfig, seed uint64) *searcher.MCTS {
	options := []searcher.Option{searcher.WithSeed(seed)}

	switch config.Selection {
	case "puct":
		p := searcher.NewPUCT()
		if config.Exploration > 0 {
			p.Exploration = config.Exploration
		}
		options = append(options, searcher.WithSelection(p))
	case "progressive_history":
		p := searcher.NewProgressiveHistory()
		if config.Exploration > 0 {
			p.Exploration = config.Exploration
		}
		options = append(options, searcher.WithSelection(p))
	default:
		u := searcher.NewUCB1()
		if config.Exploration > 0 {
			u.Exploration = config.Exploration
		}
		options = append(options, searcher.WithSelection(u))
	}

	if config.Playout == "heuristic" {
		options = append(options, searcher.WithPlayout(searcher.HeuristicPlayout{
			Evaluate:     r.evaluate(),
			Fraction:     0.5,
			Continuation: true,
		}))
	}
	if config.Heuristic {
		options = append(options, searcher.WithHeuristic(r.evaluate()))
	}
	if config.PlayoutWeight != nil {
		options = append(options, searcher.WithPlayoutWeight(*config.PlayoutWeight))
	}

	switch config.Final {
	case "max_average":
		options = append(options, searcher.WithFinalSelection(searcher.MaxAverage{}))
	case "proportional":
		options = append(options, searcher.WithFinalSelection(searcher.Proportional{Temperature: config.Temperature}))
	}

	qinits := map[string]searcher.QInit{
		"inf": searcher.QInitInf, "loss": searcher.QInitLoss, "draw": searcher.QInitDraw,
		"win": searcher.QInitWin, "parent": searcher.QInitParent,
	}
	options = append(options, searcher.WithQInit(qinits[config.QInit]))
	options = append(options, searcher.WithBackup(config.Backup != "minmax", config.Backup != "average"))
	if config.TreeReuse {
		options = append(options, searcher.WithTreeReuse())
	}
	if config.HistoryDecay != nil {
		options = append(options, searcher.WithHistoryDecay(*config.HistoryDecay))
	}

	if r.registry != nil {
		options = append(options, searcher.WithCollector(metrics.NewPrometheusCollector(r.registry, strconv.Itoa(config.ID))))
	} else {
		options = append(options, searcher.WithMetrics())
	}
	return searcher.NewMCTS(config.Goroutines, options...)
}

// Write stores the agent configs and the records of result in a new run
// directory and returns its path.
func Write(config Config, result Result) (string, error) {
	writer, err := metrics.NewWriter(config.OutputDir, config.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}

	err = writer.WriteAgentConfigs(config.Agents)
	if err != nil {
		return "", fmt.Errorf("failed to store agent configs: %w", err)
	}
	log.Info().Msg("stored agent configs")

	err = writer.WriteGameRecords(result.GameRecords)
	if err != nil {
		return "", fmt.Errorf("failed to write game records: %w", err)
	}
	log.Info().Msg("stored game records")

	err = writer.WriteMoveRecords(result.MoveRecords)
	if err != nil {
		return "", fmt.Errorf("failed to write move records: %w", err)
	}
	log.Info().Msg("stored move records")
	return writer.Dir(), nil
}
