package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Run("counts concurrent updates", func(t *testing.T) {
		c := NewCollector()
		c.Start(4, 10)
		c.SetTreeReset(true)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					c.AddIteration()
					c.AddPlayoutActions(2)
				}
				c.AddFullPlayout()
			}()
		}
		wg.Wait()

		metric := c.Complete()
		require.Equal(t, 4, metric.Goroutines)
		require.Equal(t, 10, metric.Cutoff)
		require.Equal(t, 100, metric.Iterations)
		require.Equal(t, 200, metric.PlayoutActions)
		require.Equal(t, 4, metric.FullPlayouts)
		require.True(t, metric.IsTreeReset)
	})

	t.Run("start resets counters", func(t *testing.T) {
		c := NewCollector()
		c.Start(1, 0)
		c.AddIteration()
		c.Start(1, 0)

		require.Zero(t, c.Complete().Iterations)
	})

	t.Run("dummy collector", func(t *testing.T) {
		c := NewDummyCollector()
		c.Start(1, 0)
		c.AddIteration()

		require.Equal(t, SearchMetric{}, c.Complete())
	})
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	registry := NewRegistry(reg)
	c := NewPrometheusCollector(registry, "agent1")

	c.Start(2, 0)
	c.SetTreeReset(true)
	for i := 0; i < 5; i++ {
		c.AddIteration()
	}
	c.AddPlayoutActions(7)
	metric := c.Complete()

	require.Equal(t, 5, metric.Iterations)
	require.Equal(t, 5.0, testutil.ToFloat64(registry.iterations.WithLabelValues("agent1")))
	require.Equal(t, 7.0, testutil.ToFloat64(registry.playoutActions.WithLabelValues("agent1")))
	require.Equal(t, 1.0, testutil.ToFloat64(registry.searches.WithLabelValues("agent1")))
	require.Equal(t, 1.0, testutil.ToFloat64(registry.treeResets.WithLabelValues("agent1")))
}

func TestWriter(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "test")
	require.NoError(t, err)
	require.NotEmpty(t, w.RunID)

	weight := 0.5
	err = w.WriteAgentConfigs([]AgentConfig{{ID: 1, Kind: "mcts", Goroutines: 2, Iterations: 100, PlayoutWeight: &weight}})
	require.NoError(t, err)
	err = w.WriteGameRecords([]GameRecord{{ID: 1, Agent1: 1, Agent2: 2, GameMetric: GameMetric{Winner: -1, TotalMoves: 9, StartTime: time.Now(), EndTime: time.Now()}}})
	require.NoError(t, err)
	err = w.WriteMoveRecords([]MoveRecord{{Game: 1, MoveMetric: MoveMetric{Step: 1, Move: "4", SearchMetric: SearchMetric{Iterations: 100}}}})
	require.NoError(t, err)

	read := func(file string) [][]string {
		f, err := os.Open(filepath.Join(w.Dir(), file))
		require.NoError(t, err)
		defer f.Close()
		rows, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		return rows
	}

	configs := read("agent_configs.csv")
	require.Len(t, configs, 2)
	require.Equal(t, "0.5", configs[1][8])
	require.Equal(t, "", configs[1][14], "Unset history decay should be left empty")

	games := read("game_records.csv")
	require.Len(t, games, 2)
	require.Equal(t, "-1", games[1][4])

	moves := read("move_records.csv")
	require.Len(t, moves, 2)
	require.Equal(t, []string{"1", "1", "0", "4"}, moves[1][:4])
	require.Equal(t, "100", moves[1][5])
}
