package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"treesearch/experiments"
	"treesearch/experiments/metrics"
	"treesearch/game"
	"treesearch/game/pig"
	"treesearch/game/tictactoe"
	"treesearch/searcher"

	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "treesearch",
		Short:         "Parallel Monte Carlo tree search",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newPlayCmd(), newExperimentCmd())
	return root
}

type playOptions struct {
	game       string
	goroutines int
	iterations int
	duration   time.Duration
	reuse      bool
	seed       uint64
}

func newPlayCmd() *cobra.Command {
	opts := playOptions{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a self-play game and print the search analysis of every move",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runPlay(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.game, "game", "tictactoe", "game to play (tictactoe, pig)")
	cmd.Flags().IntVar(&opts.goroutines, "goroutines", 4, "search goroutines")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 0, "iterations per move")
	cmd.Flags().DurationVar(&opts.duration, "duration", 200*time.Millisecond, "search time per move")
	cmd.Flags().BoolVar(&opts.reuse, "reuse", true, "reuse the search tree between moves")
	cmd.Flags().Uint64Var(&opts.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	return cmd
}

func runPlay(ctx context.Context, opts playOptions) error {
	var (
		state    game.State
		evaluate game.Evaluate
	)
	switch opts.game {
	case "tictactoe":
		state, evaluate = tictactoe.New(), tictactoe.Evaluate
	case "pig":
		state, evaluate = pig.New(pig.DefaultTarget), pig.Evaluate
	default:
		return fmt.Errorf("unknown game %q", opts.game)
	}

	options := []searcher.Option{searcher.WithSeed(opts.seed), searcher.WithHeuristic(evaluate), searcher.WithMetrics(), searcher.WithPreserveRoot()}
	if opts.reuse {
		options = append(options, searcher.WithTreeReuse())
	}
	mcts := searcher.NewMCTS(opts.goroutines, options...)
	if err := mcts.InitEpisode(); err != nil {
		return err
	}
	defer mcts.CloseEpisode()

	out := termenv.NewOutput(os.Stdout)
	header := func(s string) string {
		return out.String(s).Foreground(out.Color("6")).Bold().String()
	}
	dim := func(s string) string {
		return out.String(s).Faint().String()
	}

	rng := rand.New(rand.NewSource(opts.seed))
	budget := searcher.Budget{Duration: opts.duration, Iterations: opts.iterations}
	var history []game.Move
	for step := 1; !state.IsTerminal(); step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		move, err := mcts.SelectAction(ctx, state, history, budget)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(out, header(fmt.Sprintf("move %d, player %d", step, state.Player())))
		fmt.Fprint(out, dim(mcts.AnalysisReport()))
		if root := mcts.Root(); root != nil {
			if estimate, ok := root.Heuristic(root.Mover()); ok {
				fmt.Fprintln(out, dim(fmt.Sprintf("  heuristic for player %d: %.4f", root.Mover(), estimate)))
			}
		}
		if metric := mcts.LastMetric(); !metric.IsTreeReset {
			fmt.Fprintln(out, dim("  (reused tree)"))
		}

		state = state.Play(move, rng)
		history = append(history, move)
		fmt.Fprintf(out, "%v\n\n", state)
	}

	result := "draw"
	if winner := winnerOf(state.Utilities()); winner >= 0 {
		result = fmt.Sprintf("player %d wins", winner)
	}
	fmt.Fprintln(out, out.String(result).Foreground(out.Color("2")).Bold())
	return nil
}

func winnerOf(utilities []float64) int {
	for i, u := range utilities {
		if u > 0 {
			return i
		}
	}
	return -1
}

func newExperimentCmd() *cobra.Command {
	var (
		configPath  string
		preset      string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Run a matchup experiment and write CSV records",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				config experiments.Config
				err    error
			)
			switch {
			case configPath != "":
				config, err = experiments.LoadConfig(configPath)
			case preset != "":
				config, err = experiments.Preset(preset)
			default:
				err = errors.New("either --config or --preset is required")
			}
			if err != nil {
				return err
			}

			var registry *metrics.Registry
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				registry = metrics.NewRegistry(reg)
				server := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Msg("metrics server failed")
					}
				}()
				defer server.Close()
				log.Info().Msgf("serving metrics on %s/metrics", metricsAddr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			result, err := experiments.NewRunner(config, registry).Run(ctx)
			if err != nil {
				return err
			}
			dir, err := experiments.Write(config, result)
			if err != nil {
				return err
			}

			for id, wins := range result.Wins() {
				log.Info().Int("agent", id).Int("wins", wins).Msg("result")
			}
			log.Info().Msgf("records written to %s", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML experiment config")
	cmd.Flags().StringVar(&preset, "preset", "", "built-in experiment (throughput, strength, cutoff)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, e.g. :2112")
	return cmd
}
