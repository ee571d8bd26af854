package tictactoe

import (
	"fmt"
	"strings"

	"treesearch/game"

	"golang.org/x/exp/rand"
)

// Square is a cell index in [0, 9), row-major from the top left corner.
type Square int

const empty = -1

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// State is an immutable tic-tac-toe position. Player 0 plays X.
type State struct {
	board  [9]int
	player int
	winner int
	moves  int
}

func New() *State {
	s := &State{winner: empty}
	for i := range s.board {
		s.board[i] = empty
	}
	return s
}

func (s *State) Player() int     { return s.player }
func (s *State) NumPlayers() int { return 2 }
func (s *State) IsStochastic() bool {
	return false
}

func (s *State) LegalMoves() []game.Move {
	if s.IsTerminal() {
		return nil
	}
	moves := make([]game.Move, 0, 9-s.moves)
	for i, cell := range s.board {
		if cell == empty {
			moves = append(moves, Square(i))
		}
	}
	return moves
}

func (s *State) Play(move game.Move, _ *rand.Rand) game.State {
	sq, ok := move.(Square)
	if !ok || sq < 0 || sq > 8 || s.board[sq] != empty {
		panic(fmt.Sprintf("illegal tic-tac-toe move %v", move))
	}

	next := *s
	next.board[sq] = s.player
	next.moves++
	next.player = 1 - s.player
	for _, line := range lines {
		if next.board[line[0]] == s.player && next.board[line[1]] == s.player && next.board[line[2]] == s.player {
			next.winner = s.player
			break
		}
	}
	return &next
}

func (s *State) IsTerminal() bool {
	return s.winner != empty || s.moves == 9
}

func (s *State) Winner() int {
	return s.winner
}

func (s *State) Utilities() []float64 {
	return game.WinnerUtilities(2, s.winner)
}

func (s *State) String() string {
	var b strings.Builder
	for i, cell := range s.board {
		switch cell {
		case 0:
			b.WriteByte('X')
		case 1:
			b.WriteByte('O')
		default:
			b.WriteByte('.')
		}
		if i%3 == 2 && i < 8 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Evaluate counts lines still open to each player, normalized to [-1, 1]
// from the given player's perspective.
func Evaluate(state game.State, player int) float64 {
	s, ok := state.(*State)
	if !ok {
		panic("unexpected state type")
	}
	if s.IsTerminal() {
		return s.Utilities()[player]
	}

	var open [2]float64
	for _, line := range lines {
		var marks [2]int
		for _, sq := range line {
			if c := s.board[sq]; c != empty {
				marks[c]++
			}
		}
		for p := 0; p < 2; p++ {
			if marks[1-p] == 0 {
				open[p] += float64(1 + marks[p])
			}
		}
	}
	total := open[0] + open[1]
	if total == 0 {
		return 0
	}
	return (open[player] - open[1-player]) / total
}
