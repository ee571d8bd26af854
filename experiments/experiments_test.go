package experiments

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"treesearch/experiments/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testConfig = `
name: smoke
game: tictactoe
games: 4
parallel: 2
alternate: true
seed: 3
agents:
  - id: 1
    iterations: 200
    goroutines: 2
    tree_reuse: true
  - id: 2
    kind: random
matchups:
  - [1, 2]
`

func TestParseConfig(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		config, err := ParseConfig([]byte(testConfig))

		require.NoError(t, err)
		require.Equal(t, "smoke", config.Name)
		require.Equal(t, "experiments", config.OutputDir)
		require.Equal(t, [][2]int{{1, 2}}, config.MatchUps)
		a := config.agent(1)
		require.Equal(t, "mcts", a.Kind)
		require.Equal(t, "ucb1", a.Selection)
		require.Equal(t, "robust", a.Final)
		require.Equal(t, "average", a.Backup)
		require.Equal(t, 1.0, a.Weight())
	})

	t.Run("durations parsed", func(t *testing.T) {
		config, err := ParseConfig([]byte(`
agents:
  - id: 1
    duration: 15ms
    playout_weight: 0.25
    history_decay: 0.3
matchups: [[1, 1]]
`))

		require.NoError(t, err)
		require.Equal(t, "15ms", config.Agents[0].Duration.String())
		require.Equal(t, 0.25, config.Agents[0].Weight())
		require.Equal(t, 0.3, *config.Agents[0].HistoryDecay)
	})

	tests := []struct {
		name   string
		config string
		want   string
	}{
		{"unknown game", "game: chess\nagents: [{id: 1, iterations: 1}]\nmatchups: [[1, 1]]", "unknown game"},
		{"no matchups", "agents: [{id: 1, iterations: 1}]", "at least one match up"},
		{"unknown agent", "agents: [{id: 1, iterations: 1}]\nmatchups: [[1, 2]]", "unknown agent 2"},
		{"duplicate agent", "agents: [{id: 1, iterations: 1}, {id: 1, iterations: 1}]\nmatchups: [[1, 1]]", "duplicate agent"},
		{"unbounded agent", "agents: [{id: 1}]\nmatchups: [[1, 1]]", "iterations or duration"},
		{"unknown selection", "agents: [{id: 1, iterations: 1, selection: rave}]\nmatchups: [[1, 1]]", "unknown selection"},
		{"history decay out of range", "agents: [{id: 1, iterations: 1, history_decay: 1.5}]\nmatchups: [[1, 1]]", "history decay"},
		{"malformed yaml", "agents: [", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.config))

			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, config.Agents, 2)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config file")
}

func TestRunner(t *testing.T) {
	config, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	config.OutputDir = t.TempDir()

	result, err := NewRunner(config, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.GameRecords, 4)
	seats := make(map[[2]int]int)
	for _, record := range result.GameRecords {
		seats[[2]int{record.Agent1, record.Agent2}]++
		require.Positive(t, record.TotalMoves)
	}
	require.Equal(t, map[[2]int]int{{1, 2}: 2, {2, 1}: 2}, seats, "Seats should alternate")
	require.NotEmpty(t, result.MoveRecords)

	wins := result.Wins()
	require.LessOrEqual(t, wins[1]+wins[2], 4)

	dir, err := Write(config, result)
	require.NoError(t, err)
	for _, file := range []string{"agent_configs.csv", "game_records.csv", "move_records.csv"} {
		require.FileExists(t, filepath.Join(dir, file))
	}
}

func TestRunnerWithPrometheus(t *testing.T) {
	config, err := ParseConfig([]byte(`
game: pig
target: 10
games: 1
agents:
  - id: 1
    iterations: 50
    cutoff: 10
    heuristic: true
    playout: heuristic
    selection: progressive_history
    final: proportional
    temperature: 0.5
    qinit: parent
    backup: both
    playout_weight: 0.5
    tree_reuse: true
    history_decay: 0.4
matchups: [[1, 1]]
`))
	require.NoError(t, err)

	registry := metrics.NewRegistry(prometheus.NewRegistry())
	result, err := NewRunner(config, registry).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, result.GameRecords, 1)
	for _, record := range result.MoveRecords {
		if len(record.Move) > 0 {
			require.Contains(t, []string{"roll", "hold"}, record.Move)
		}
	}
}

func TestPreset(t *testing.T) {
	for _, name := range []string{"throughput", "strength", "cutoff"} {
		t.Run(name, func(t *testing.T) {
			config, err := Preset(name)

			require.NoError(t, err)
			require.NotEmpty(t, config.MatchUps)
		})
	}

	_, err := Preset("unknown")
	require.Error(t, err)
}
