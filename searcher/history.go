package searcher

import (
	"math"
	"sync"
	"sync/atomic"

	"treesearch/game"
)

const DefaultHistoryDecay = 0.6

type historyKey struct {
	mover int
	move  game.Move
	depth int
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) Add(delta float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Scale is not atomic with respect to a concurrent Add, one of the two may be lost.
func (f *atomicFloat) Scale(factor float64) {
	f.bits.Store(math.Float64bits(f.Load() * factor))
}

type historyEntry struct {
	visits atomicFloat
	score  atomicFloat
}

// History is the global action statistics table used by progressive history.
// Moves are keyed by their canonical form, moves that report themselves as
// depth sensitive (passes, swaps) are additionally keyed by search depth.
// Updates are best effort: lost updates under contention are tolerated.
type History struct {
	entries sync.Map // historyKey -> *historyEntry
}

func NewHistory() *History {
	return &History{}
}

func newHistoryKey(mover int, move game.Move, depth int) historyKey {
	key := historyKey{mover: mover, move: move, depth: -1}
	if c, ok := move.(game.Canonical); ok {
		key.move = c.Canonical()
	}
	if d, ok := move.(game.DepthSensitive); ok && d.DepthSensitive() {
		key.depth = depth
	}
	return key
}

// Update records score for move played by mover at the given search depth.
func (h *History) Update(mover int, move game.Move, depth int, score float64) {
	key := newHistoryKey(mover, move, depth)
	value, ok := h.entries.Load(key)
	if !ok {
		value, _ = h.entries.LoadOrStore(key, &historyEntry{})
	}
	entry := value.(*historyEntry)
	entry.visits.Add(1)
	entry.score.Add(score)
}

// Average returns the mean score recorded for the move, false if the move
// was never recorded.
func (h *History) Average(mover int, move game.Move, depth int) (float64, bool) {
	value, ok := h.entries.Load(newHistoryKey(mover, move, depth))
	if !ok {
		return 0, false
	}
	entry := value.(*historyEntry)
	visits := entry.visits.Load()
	if visits <= 0 {
		return 0, false
	}
	return entry.score.Load() / visits, true
}

func (h *History) Decay(factor float64) {
	h.entries.Range(func(_, value any) bool {
		entry := value.(*historyEntry)
		entry.visits.Scale(factor)
		entry.score.Scale(factor)
		return true
	})
}

func (h *History) Clear() {
	h.entries.Range(func(key, _ any) bool {
		h.entries.Delete(key)
		return true
	})
}

func (h *History) Len() int {
	n := 0
	h.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
