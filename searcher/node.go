package searcher

import (
	"math"
	"sync"

	"treesearch/game"

	"github.com/samber/lo"
	"golang.org/x/exp/rand"
)

type nodeKind uint8

const (
	// stateful nodes own the state reached at the node
	stateful nodeKind = iota
	// replay nodes keep the incoming move only and rebuild their state from
	// the nearest ancestor that stores one
	replay
)

// QInit is the value estimate assigned to children that have not been visited yet.
type QInit int

const (
	QInitInf QInit = iota
	QInitLoss
	QInitDraw
	QInitWin
	QInitParent
)

const infValue = 10000.0

func (q QInit) String() string {
	switch q {
	case QInitInf:
		return "inf"
	case QInitLoss:
		return "loss"
	case QInitDraw:
		return "draw"
	case QInitWin:
		return "win"
	case QInitParent:
		return "parent"
	}
	return "unknown"
}

// treeOptions are shared by every node of a tree.
type treeOptions struct {
	kind     nodeKind
	qinit    QInit
	average  bool
	minimax  bool
	evaluate game.Evaluate
	prior    game.Prior
}

type Node struct {
	sync.RWMutex
	opts     *treeOptions
	parent   *Node
	move     game.Move // move played from parent
	playedBy int       // agent that played move
	depth    int
	mover    int
	state    game.State // nil for non-root replay nodes
	moves    []game.Move
	children []*Node
	visits   int
	virtual  int
	scores   []float64
	minimax  []float64
	estimate []float64 // heuristic value per agent, nil without evaluator
	prior    []float64
}

func newRoot(state game.State, depth int, opts *treeOptions) *Node {
	moves := state.LegalMoves()
	if len(moves) == 0 {
		panic("root state has no legal moves")
	}
	n := newNode(nil, nil, state, opts)
	n.depth = depth
	n.state = state
	return n
}

func newNode(parent *Node, move game.Move, state game.State, opts *treeOptions) *Node {
	numPlayers := state.NumPlayers()
	var moves []game.Move
	if !state.IsTerminal() {
		moves = state.LegalMoves()
	}

	n := &Node{
		opts:     opts,
		parent:   parent,
		move:     move,
		mover:    state.Player(),
		moves:    moves,
		children: make([]*Node, len(moves)),
		scores:   make([]float64, numPlayers),
		minimax:  make([]float64, numPlayers),
	}
	if parent != nil {
		n.playedBy = parent.mover
		n.depth = parent.depth + 1
	}
	if opts.kind == stateful {
		n.state = state
	}

	if opts.evaluate != nil {
		n.estimate = heuristicVector(state, opts.evaluate)
	}
	if opts.prior != nil && len(moves) > 0 {
		n.prior = normalizePrior(moves, opts.prior(state))
	}
	return n
}

func heuristicVector(state game.State, evaluate game.Evaluate) []float64 {
	if state.IsTerminal() {
		return state.Utilities()
	}
	values := make([]float64, state.NumPlayers())
	for agent := range values {
		values[agent] = evaluate(state, agent)
	}
	return values
}

// normalizePrior turns the model output into a distribution over moves.
// Non-negative outputs are read as probabilities, anything else as logits.
func normalizePrior(moves []game.Move, dist map[game.Move]float64) []float64 {
	prior := make([]float64, len(moves))
	logits := false
	sum := 0.0
	for i, move := range moves {
		prior[i] = dist[move]
		if prior[i] < 0 {
			logits = true
		}
		sum += prior[i]
	}

	if logits {
		return softmax(prior, 1)
	}
	if sum <= 0 {
		for i := range prior {
			prior[i] = 1 / float64(len(prior))
		}
		return prior
	}
	for i := range prior {
		prior[i] /= sum
	}
	return prior
}

func softmax(logits []float64, temperature float64) []float64 {
	if temperature <= 0 {
		temperature = 1
	}
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, l)
	}
	probs := make([]float64, len(logits))
	sum := 0.0
	for i, l := range logits {
		probs[i] = math.Exp((l - maxLogit) / temperature)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// ChildForIndex returns the child reached by the i-th legal move, or nil if
// it has not been expanded.
func (n *Node) ChildForIndex(i int) *Node {
	n.RLock()
	defer n.RUnlock()

	return n.children[i]
}

// ChildForMove returns the child reached by move, or nil.
func (n *Node) ChildForMove(move game.Move) *Node {
	n.RLock()
	defer n.RUnlock()

	i := lo.IndexOf(n.moves, move)
	if i < 0 {
		return nil
	}
	return n.children[i]
}

// createChild must be called with n locked.
func (n *Node) createChild(i int, state game.State) *Node {
	if n.children[i] != nil {
		panic("child slot already filled")
	}
	child := newNode(n, n.moves[i], state, n.opts)
	n.children[i] = child
	return child
}

func (n *Node) addVirtualVisit() {
	n.Lock()
	defer n.Unlock()

	n.virtual++
}

// candidates must be called with n locked. Stateful nodes offer every
// cached move. Replay nodes offer the cached moves that are still legal in
// the replayed state.
func (n *Node) candidates(state game.State) []int {
	if n.opts.kind == stateful || n.state != nil {
		indices := make([]int, len(n.moves))
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	legal := state.LegalMoves()
	indices := make([]int, 0, len(n.moves))
	for i, move := range n.moves {
		if lo.Contains(legal, move) {
			indices = append(indices, i)
		}
	}
	return indices
}

func (n *Node) averageScore(agent int) float64 {
	if n.visits == 0 {
		return 0
	}
	return n.scores[agent] / float64(n.visits)
}

func (n *Node) valueEstimate(agent int) float64 {
	if n.visits == 0 {
		return 0
	}
	value := 0.0
	if n.opts.average {
		value += n.averageScore(agent)
	}
	if n.opts.minimax {
		value += n.minimax[agent]
	}
	return value
}

func (n *Node) unvisitedValue(agent int) float64 {
	switch n.opts.qinit {
	case QInitInf:
		return infValue
	case QInitLoss:
		return -1
	case QInitDraw:
		return 0
	case QInitWin:
		return 1
	case QInitParent:
		return n.valueEstimate(agent)
	}
	panic("unknown QInit")
}

// stats returns a consistent snapshot of the values selection reads.
func (n *Node) stats(agent int) (visits, virtual int, value float64) {
	n.RLock()
	defer n.RUnlock()

	return n.visits, n.virtual, n.valueEstimate(agent)
}

func (n *Node) AverageScore(agent int) float64 {
	n.RLock()
	defer n.RUnlock()

	return n.averageScore(agent)
}

func (n *Node) MinMaxScore(agent int) float64 {
	n.RLock()
	defer n.RUnlock()

	return n.minimax[agent]
}

// ScoreSum is the accumulated score of agent over all visits.
func (n *Node) ScoreSum(agent int) float64 {
	n.RLock()
	defer n.RUnlock()

	return n.scores[agent]
}

// ValueEstimate combines the enabled backup statistics for agent.
func (n *Node) ValueEstimate(agent int) float64 {
	n.RLock()
	defer n.RUnlock()

	return n.valueEstimate(agent)
}

func (n *Node) ValueEstimateForUnvisitedChild(agent int) float64 {
	n.RLock()
	defer n.RUnlock()

	return n.unvisitedValue(agent)
}

func (n *Node) Heuristic(agent int) (float64, bool) {
	n.RLock()
	defer n.RUnlock()

	if n.estimate == nil {
		return 0, false
	}
	return n.estimate[agent], true
}

func (n *Node) NumLegalMoves() int {
	n.RLock()
	defer n.RUnlock()

	return len(n.moves)
}

func (n *Node) LegalMoves() []game.Move {
	n.RLock()
	defer n.RUnlock()

	return n.moves
}

func (n *Node) NumVisits() int {
	n.RLock()
	defer n.RUnlock()

	return n.visits
}

func (n *Node) NumVirtualVisits() int {
	n.RLock()
	defer n.RUnlock()

	return n.virtual
}

func (n *Node) Move() game.Move {
	return n.move
}

func (n *Node) Mover() int {
	n.RLock()
	defer n.RUnlock()

	return n.mover
}

func (n *Node) Parent() *Node {
	n.RLock()
	defer n.RUnlock()

	return n.parent
}

// State returns the stored state, nil for replay nodes below the root.
func (n *Node) State() game.State {
	n.RLock()
	defer n.RUnlock()

	return n.state
}

// StateFrom rebuilds the state at n by replaying incoming moves from the
// nearest ancestor that stores a state. Stochastic transitions draw from rng,
// so the result is one sample of the states the node stands for.
func (n *Node) StateFrom(rng *rand.Rand) game.State {
	var path []game.Move
	node := n
	state := node.State()
	for state == nil {
		path = append(path, node.move)
		node = node.Parent()
		if node == nil {
			panic("no ancestor stores a state")
		}
		state = node.State()
	}
	for i := len(path) - 1; i >= 0; i-- {
		state = state.Play(path[i], rng)
	}
	return state
}
