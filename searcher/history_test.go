package searcher

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistory(t *testing.T) {
	t.Run("average per agent and move", func(t *testing.T) {
		h := NewHistory()
		h.Update(0, mockMove("A"), 0, 1)
		h.Update(0, mockMove("A"), 3, 0)
		h.Update(1, mockMove("A"), 0, -1)

		got, ok := h.Average(0, mockMove("A"), 9)
		require.True(t, ok)
		require.Equal(t, 0.5, got, "Depth should not matter for ordinary moves")

		got, ok = h.Average(1, mockMove("A"), 0)
		require.True(t, ok)
		require.Equal(t, -1.0, got)

		_, ok = h.Average(0, mockMove("B"), 0)
		require.False(t, ok)
	})

	t.Run("symmetric moves share an entry", func(t *testing.T) {
		h := NewHistory()
		h.Update(0, mirrorMove(-2), 0, 1)
		h.Update(0, mirrorMove(2), 0, 0)

		got, ok := h.Average(0, mirrorMove(-2), 0)
		require.True(t, ok)
		require.Equal(t, 0.5, got)
		require.Equal(t, 1, h.Len())
	})

	t.Run("depth sensitive moves keyed by depth", func(t *testing.T) {
		h := NewHistory()
		h.Update(0, passMove{}, 1, 1)
		h.Update(0, passMove{}, 2, -1)

		got, _ := h.Average(0, passMove{}, 1)
		require.Equal(t, 1.0, got)
		got, _ = h.Average(0, passMove{}, 2)
		require.Equal(t, -1.0, got)
		require.Equal(t, 2, h.Len())
	})

	t.Run("decay keeps the average", func(t *testing.T) {
		h := NewHistory()
		for i := 0; i < 4; i++ {
			h.Update(0, mockMove("A"), 0, 1)
		}
		h.Update(0, mockMove("A"), 0, 0)
		h.Decay(0.5)
		h.Update(0, mockMove("A"), 0, 0)

		// (4*0.5) / (5*0.5 + 1)
		got, _ := h.Average(0, mockMove("A"), 0)
		require.InDelta(t, 2.0/3.5, got, 1e-9)
	})

	t.Run("clear", func(t *testing.T) {
		h := NewHistory()
		h.Update(0, mockMove("A"), 0, 1)
		h.Clear()

		require.Zero(t, h.Len())
	})

	t.Run("concurrent updates", func(t *testing.T) {
		h := NewHistory()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					h.Update(0, mockMove("A"), 0, 1)
				}
			}()
		}
		wg.Wait()

		got, ok := h.Average(0, mockMove("A"), 0)
		require.True(t, ok)
		require.Equal(t, 1.0, got)
		require.Equal(t, 1, h.Len())
	})
}
