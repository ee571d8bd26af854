// Package pig implements the two-player dice game Pig. A turn consists of
// repeated rolls of a six-sided die: rolling a one forfeits the turn total,
// holding banks it. The first player to reach the target score wins.
package pig

import (
	"fmt"

	"treesearch/game"

	"golang.org/x/exp/rand"
)

type Action int

const (
	Roll Action = iota
	Hold
)

func (a Action) String() string {
	if a == Roll {
		return "roll"
	}
	return "hold"
}

const DefaultTarget = 20

type State struct {
	scores    [2]int
	turnTotal int
	player    int
	target    int
	lastRoll  int
}

func New(target int) *State {
	if target <= 0 {
		target = DefaultTarget
	}
	return &State{target: target}
}

func (s *State) Player() int        { return s.player }
func (s *State) NumPlayers() int    { return 2 }
func (s *State) IsStochastic() bool { return true }
func (s *State) Score(player int) int {
	return s.scores[player]
}
func (s *State) TurnTotal() int { return s.turnTotal }
func (s *State) LastRoll() int  { return s.lastRoll }

func (s *State) LegalMoves() []game.Move {
	if s.IsTerminal() {
		return nil
	}
	if s.turnTotal == 0 {
		return []game.Move{Roll}
	}
	return []game.Move{Roll, Hold}
}

// Play draws die rolls from rng only. A nil rng falls back to the shared
// source, which makes the transition unreproducible.
func (s *State) Play(move game.Move, rng *rand.Rand) game.State {
	a, ok := move.(Action)
	if !ok || s.IsTerminal() {
		panic(fmt.Sprintf("illegal pig move %v", move))
	}

	next := *s
	switch a {
	case Roll:
		var roll int
		if rng == nil {
			roll = rand.Intn(6) + 1
		} else {
			roll = rng.Intn(6) + 1
		}
		next.lastRoll = roll
		if roll == 1 {
			next.turnTotal = 0
			next.player = 1 - s.player
			return &next
		}
		next.turnTotal += roll
		if next.scores[s.player]+next.turnTotal >= s.target {
			next.scores[s.player] += next.turnTotal
			next.turnTotal = 0
		}
	case Hold:
		if s.turnTotal == 0 {
			panic("cannot hold with an empty turn total")
		}
		next.scores[s.player] += s.turnTotal
		next.turnTotal = 0
		next.lastRoll = 0
		next.player = 1 - s.player
	default:
		panic(fmt.Sprintf("illegal pig move %v", move))
	}
	return &next
}

func (s *State) IsTerminal() bool {
	return s.scores[0] >= s.target || s.scores[1] >= s.target
}

func (s *State) Winner() int {
	for p, score := range s.scores {
		if score >= s.target {
			return p
		}
	}
	return -1
}

func (s *State) Utilities() []float64 {
	return game.WinnerUtilities(2, s.Winner())
}

func (s *State) String() string {
	return fmt.Sprintf("scores %d-%d, player %d to move, turn total %d", s.scores[0], s.scores[1], s.player, s.turnTotal)
}

// Evaluate estimates the given player's standing from the banked scores
// and the pending turn total, in [-1, 1].
func Evaluate(state game.State, player int) float64 {
	s, ok := state.(*State)
	if !ok {
		panic("unexpected state type")
	}
	if s.IsTerminal() {
		return s.Utilities()[player]
	}

	mine := float64(s.scores[player])
	theirs := float64(s.scores[1-player])
	if s.player == player {
		mine += float64(s.turnTotal) / 2
	} else {
		theirs += float64(s.turnTotal) / 2
	}
	return (mine - theirs) / float64(s.target)
}
