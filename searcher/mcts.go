package searcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"treesearch/experiments/metrics"
	"treesearch/game"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/exp/rand"
)

var (
	ErrNoBackupMode = errors.New("average and min-max backup are both disabled")
	ErrUnbounded    = errors.New("search needs an iteration cap, a duration or a context deadline")
)

const DefaultGracePeriod = time.Second

type Option func(mcts *MCTS)

// Budget bounds a single search. Zero values mean no bound; at least one of
// Iterations, Duration or a context deadline is required. Depth caps the
// number of actions of every playout.
type Budget struct {
	Duration   time.Duration
	Iterations int
	Depth      int
}

type decision struct {
	move       game.Move
	visits     int
	value      float64
	moves      []game.Move
	childVisit []int
	childValue []float64
}

type MCTS struct {
	goroutines     int
	selection      Selection
	playout        Playout
	final          FinalSelection
	average        bool
	minimax        bool
	qinit          QInit
	playoutWeight  float64
	evaluate       game.Evaluate
	prior          game.Prior
	treeReuse      bool
	preserveRoot   bool
	privilegedRNG  bool
	autoplay       time.Duration
	grace          time.Duration
	decay          float64
	seed           uint64
	metrics        metrics.Collector
	history        *History
	pool           *pool
	root           *Node
	lastLen        int
	searches       uint64
	interrupted    atomic.Bool
	lastIterations int
	lastActions    int
	lastMetric     metrics.SearchMetric
	last           *decision
}

func WithSelection(selection Selection) Option {
	return func(m *MCTS) {
		if selection != nil {
			m.selection = selection
		}
	}
}

func WithPlayout(playout Playout) Option {
	return func(m *MCTS) {
		if playout != nil {
			m.playout = playout
		}
	}
}

func WithFinalSelection(final FinalSelection) Option {
	return func(m *MCTS) {
		if final != nil {
			m.final = final
		}
	}
}

// WithBackup enables the average and min-max backup modes. With both enabled
// the value estimate is their sum.
func WithBackup(average, minimax bool) Option {
	return func(m *MCTS) {
		m.average = average
		m.minimax = minimax
	}
}

func WithQInit(qinit QInit) Option {
	return func(m *MCTS) {
		m.qinit = qinit
	}
}

// WithPlayoutWeight mixes playout outcomes with the leaf's heuristic
// estimate. Values outside [0, 1] are clamped.
func WithPlayoutWeight(weight float64) Option {
	return func(m *MCTS) {
		clamped := math.Min(1, math.Max(0, weight))
		if clamped != weight || math.IsNaN(weight) {
			log.Warn().Msgf("playout weight %v out of range, using %v", weight, clamped)
			if math.IsNaN(weight) {
				clamped = 1
			}
		}
		m.playoutWeight = clamped
	}
}

func WithHeuristic(evaluate game.Evaluate) Option {
	return func(m *MCTS) {
		if evaluate != nil {
			m.evaluate = evaluate
		}
	}
}

func WithPrior(prior game.Prior) Option {
	return func(m *MCTS) {
		if prior != nil {
			m.prior = prior
		}
	}
}

func WithTreeReuse() Option {
	return func(m *MCTS) {
		m.treeReuse = true
	}
}

// WithPreserveRoot keeps the searched root after every decision for inspection.
func WithPreserveRoot() Option {
	return func(m *MCTS) {
		m.preserveRoot = true
	}
}

// WithPrivilegedRNG stores the sampled state in every node of a stochastic
// environment instead of replaying moves.
func WithPrivilegedRNG() Option {
	return func(m *MCTS) {
		m.privilegedRNG = true
	}
}

// WithAutoplay caps the search time when the root has a single legal move.
func WithAutoplay(duration time.Duration) Option {
	return func(m *MCTS) {
		if duration >= 0 {
			m.autoplay = duration
		}
	}
}

func WithGracePeriod(grace time.Duration) Option {
	return func(m *MCTS) {
		if grace > 0 {
			m.grace = grace
		}
	}
}

func WithHistoryDecay(factor float64) Option {
	return func(m *MCTS) {
		if factor >= 0 && factor <= 1 {
			m.decay = factor
		} else {
			log.Warn().Msgf("history decay %v out of range, keeping %v", factor, m.decay)
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(m *MCTS) {
		m.seed = seed
	}
}

func WithMetrics() Option {
	return func(m *MCTS) {
		m.metrics = metrics.NewCollector()
	}
}

func WithCollector(collector metrics.Collector) Option {
	return func(m *MCTS) {
		if collector != nil {
			m.metrics = collector
		}
	}
}

func NewMCTS(goroutines int, options ...Option) *MCTS {
	if goroutines <= 0 {
		goroutines = 1
	}
	m := &MCTS{ // Default values
		goroutines:    goroutines,
		selection:     NewUCB1(),
		playout:       RandomPlayout{},
		final:         RobustChild{},
		average:       true,
		qinit:         QInitInf,
		playoutWeight: 1,
		autoplay:      -1,
		grace:         DefaultGracePeriod,
		decay:         DefaultHistoryDecay,
		seed:          uint64(time.Now().UnixNano()),
		metrics:       metrics.NewDummyCollector(),
		history:       NewHistory(),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *MCTS) usesHistory() bool {
	for _, strategy := range []any{m.selection, m.playout, m.final} {
		if u, ok := strategy.(historyUser); ok && u.UsesHistory() {
			return true
		}
	}
	return false
}

// InitEpisode prepares the engine for a new episode: it clears the tree and
// the action statistics and starts a fresh worker pool.
func (m *MCTS) InitEpisode() error {
	if !m.average && !m.minimax {
		return ErrNoBackupMode
	}
	m.CloseEpisode()

	m.history.Clear()
	m.root = nil
	m.lastLen = 0
	m.last = nil
	m.pool = newPool(m.goroutines)
	return nil
}

// CloseEpisode shuts the worker pool down. Workers still running after the
// grace period are left to finish on their own.
func (m *MCTS) CloseEpisode() {
	if m.pool == nil {
		return
	}
	if err := m.pool.shutdown(m.grace); err != nil {
		log.Error().Err(err).Msg("failed to shut down worker pool")
	}
	m.pool = nil
}

// Interrupt stops the running search at the next iteration boundary. The
// move is still returned but the decision is not recorded, as with a
// cancelled context.
func (m *MCTS) Interrupt() {
	m.interrupted.Store(true)
}

func (m *MCTS) treeOptions(state game.State) *treeOptions {
	kind := stateful
	if state.IsStochastic() && !m.privilegedRNG {
		kind = replay
	}
	return &treeOptions{
		kind:     kind,
		qinit:    m.qinit,
		average:  m.average,
		minimax:  m.minimax,
		evaluate: m.evaluate,
		prior:    m.prior,
	}
}

// findRoot follows the moves played since the last decision down the
// standing tree. Any mismatch starts a fresh tree.
func (m *MCTS) findRoot(state game.State, history []game.Move) *Node {
	if root := m.reusableRoot(state, history); root != nil {
		m.history.Decay(m.decay)
		m.metrics.SetTreeReset(false)
		return root
	}
	m.metrics.SetTreeReset(true)
	return newRoot(state, len(history), m.treeOptions(state))
}

func (m *MCTS) reusableRoot(state game.State, history []game.Move) *Node {
	if !m.treeReuse || m.root == nil {
		return nil
	}
	if len(history) < m.lastLen {
		log.Debug().Int("history", len(history)).Int("last", m.lastLen).Msg("history shrank, building fresh root")
		return nil
	}

	node := m.root
	for _, move := range history[m.lastLen:] {
		node = node.ChildForMove(move)
		if node == nil {
			log.Debug().Msgf("no child for move %v, building fresh root", move)
			return nil
		}
	}

	node.Lock()
	defer node.Unlock()
	if !slices.Equal(node.moves, state.LegalMoves()) || node.mover != state.Player() {
		log.Debug().Msg("standing tree does not match state, building fresh root")
		return nil
	}
	node.parent = nil
	node.state = state
	node.depth = len(history)
	return node
}

// search holds what the workers of one SelectAction call share.
type search struct {
	ctx        context.Context
	root       *Node
	state      game.State
	deadline   time.Time
	limit      int
	cutoff     int
	started    atomic.Int64
	iterations atomic.Int64
	actions    atomic.Int64
	stopped    atomic.Bool
	history    *History
}

// SelectAction searches from state and returns the move to play. history is
// the list of every move played in the episode so far, used to reuse the
// tree of the previous decision.
func (m *MCTS) SelectAction(ctx context.Context, state game.State, history []game.Move, budget Budget) (game.Move, error) {
	_, hasDeadline := ctx.Deadline()
	if budget.Iterations <= 0 && budget.Duration <= 0 && !hasDeadline {
		return nil, ErrUnbounded
	}
	if m.pool == nil {
		if err := m.InitEpisode(); err != nil {
			return nil, fmt.Errorf("failed to start episode: %w", err)
		}
	}
	m.interrupted.Store(false)

	root := m.findRoot(state, history)
	duration := budget.Duration
	autoplay := m.autoplay >= 0 && root.NumLegalMoves() == 1 && (duration <= 0 || m.autoplay < duration)
	if autoplay {
		duration = m.autoplay
	}

	s := &search{
		ctx:    ctx,
		root:   root,
		state:  state,
		limit:  budget.Iterations,
		cutoff: budget.Depth,
	}
	if duration > 0 || autoplay {
		s.deadline = time.Now().Add(duration)
	}
	if d, ok := ctx.Deadline(); ok && (s.deadline.IsZero() || d.Before(s.deadline)) {
		s.deadline = d
	}
	if m.usesHistory() {
		s.history = m.history
	}

	start := time.Now()
	m.metrics.Start(m.goroutines, budget.Depth)
	m.run(s)
	metric := m.metrics.Complete()
	elapsed := time.Since(start)
	// A context deadline is a budget, only explicit cancellation discards the decision
	cancelled := m.interrupted.Load() || errors.Is(ctx.Err(), context.Canceled)

	m.lastIterations = int(s.iterations.Load())
	m.lastActions = int(s.actions.Load())
	m.lastMetric = metric

	rng := rand.New(rand.NewSource(m.seed + m.searches<<20 + 1<<19))
	m.searches++
	move := m.final.SelectMove(root, rng)

	if !cancelled {
		m.record(root, move)
	}
	m.cleanup(root, move, history)

	log.Debug().
		Int("iterations", m.lastIterations).
		Int("playout_actions", m.lastActions).
		Dur("duration", elapsed).
		Bool("cancelled", cancelled).
		Str("move", fmt.Sprint(move)).
		Msg("search complete")
	return move, nil
}

// run dispatches one job per goroutine and waits for them, bounded by the
// remaining time plus the grace period.
func (m *MCTS) run(s *search) {
	var wg sync.WaitGroup
	for i := 0; i < m.goroutines; i++ {
		rng := rand.New(rand.NewSource(m.seed + m.searches<<20 + uint64(i)))
		wg.Add(1)
		job := func() {
			defer wg.Done()
			m.work(s, rng)
		}
		if !m.pool.submit(job) {
			wg.Done()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if !s.deadline.IsZero() {
		timer := time.NewTimer(time.Until(s.deadline) + m.grace)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
	case <-timeout:
		log.Debug().Msg("workers did not finish within grace period")
	case <-s.ctx.Done():
		select {
		case <-done:
		case <-time.After(m.grace):
			log.Debug().Msg("workers did not finish within grace period")
		}
	}
	s.stopped.Store(true)
}

func (m *MCTS) shouldStop(s *search) bool {
	if s.stopped.Load() || m.interrupted.Load() || s.ctx.Err() != nil {
		return true
	}
	if !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
		return true
	}
	return s.limit > 0 && s.started.Add(1) > int64(s.limit)
}

func (m *MCTS) work(s *search, rng *rand.Rand) {
	for !m.shouldStop(s) {
		m.iterate(s, rng)
		s.iterations.Add(1)
		m.metrics.AddIteration()
	}
}

func (m *MCTS) iterate(s *search, rng *rand.Rand) {
	leaf, state := m.selectAndExpand(s, rng)
	utilities := m.evaluateLeaf(s, leaf, state, rng)
	backup(leaf, utilities, s.history)
}

// selectAndExpand descends from the root until it lands on a new child,
// a terminal state or a node without selectable moves.
func (m *MCTS) selectAndExpand(s *search, rng *rand.Rand) (*Node, game.State) {
	node := s.root
	state := s.state
	node.addVirtualVisit()

	for !state.IsTerminal() {
		node.Lock()
		candidates := node.candidates(state)
		if len(candidates) == 0 {
			node.Unlock()
			break
		}
		if node.opts.kind == replay {
			node.mover = state.Player()
		}

		choice := node.choice(candidates, s.history)
		idx := candidates[m.selection.Select(choice, rng)]
		child := node.children[idx]
		expanded := child == nil
		switch {
		case expanded:
			state = state.Play(node.moves[idx], rng)
			child = node.createChild(idx, state)
		case child.opts.kind == stateful:
			state = child.State()
		default:
			state = state.Play(node.moves[idx], rng)
		}
		child.addVirtualVisit()
		node.Unlock()

		node = child
		if expanded {
			break
		}
	}
	return node, state
}

// choice must be called with n locked.
func (n *Node) choice(candidates []int, history *History) *Choice {
	c := &Choice{
		Mover:   n.mover,
		Depth:   n.depth,
		Visits:  n.visits + n.virtual,
		Edges:   make([]Edge, len(candidates)),
		History: history,
	}
	for i, idx := range candidates {
		e := Edge{Index: idx, Move: n.moves[idx], Value: n.unvisitedValue(n.mover)}
		if n.prior != nil {
			e.Prior = n.prior[idx]
		} else {
			e.Prior = 1 / float64(len(n.moves))
		}
		if child := n.children[idx]; child != nil {
			var value float64
			e.Visits, e.Virtual, value = child.stats(n.mover)
			if e.Visits > 0 {
				e.Value = value
			}
		}
		c.Edges[i] = e
	}
	return c
}

// evaluateLeaf returns the utilities backed up from leaf: the terminal
// utilities, or a blend of the playout outcome and the leaf's heuristic.
func (m *MCTS) evaluateLeaf(s *search, leaf *Node, state game.State, rng *rand.Rand) []float64 {
	if state.IsTerminal() {
		return state.Utilities()
	}

	var estimate []float64
	if m.evaluate != nil {
		leaf.RLock()
		estimate = leaf.estimate
		leaf.RUnlock()
		if estimate == nil || leaf.opts.kind == replay {
			estimate = heuristicVector(state, m.evaluate)
		}
	}
	if m.playoutWeight == 0 {
		if estimate == nil {
			return make([]float64, state.NumPlayers())
		}
		return estimate
	}

	end, actions := m.playout.Playout(state, s.cutoff, rng)
	s.actions.Add(int64(actions))
	m.metrics.AddPlayoutActions(actions)
	if end.IsTerminal() {
		m.metrics.AddFullPlayout()
	}

	outcome := endUtilities(end, m.evaluate)
	if estimate == nil || m.playoutWeight == 1 {
		return outcome
	}
	blend := make([]float64, len(outcome))
	for i := range blend {
		blend[i] = m.playoutWeight*outcome[i] + (1-m.playoutWeight)*estimate[i]
	}
	return blend
}

func (m *MCTS) record(root *Node, move game.Move) {
	summary := summarize(root)
	d := &decision{
		move:       move,
		moves:      make([]game.Move, len(summary)),
		childVisit: make([]int, len(summary)),
		childValue: make([]float64, len(summary)),
	}
	for i, child := range summary {
		d.moves[i] = child.move
		d.childVisit[i] = child.visits
		d.childValue[i] = child.value
		if child.move == move {
			d.visits = child.visits
			d.value = child.value
		}
	}
	m.last = d
}

// cleanup keeps the chosen subtree for the next decision when reusing trees
// and drops everything else.
func (m *MCTS) cleanup(root *Node, move game.Move, history []game.Move) {
	if m.preserveRoot {
		m.root = root
		m.lastLen = len(history)
		return
	}
	if !m.treeReuse {
		m.root = nil
		return
	}

	root.Lock()
	var chosen *Node
	for i, mv := range root.moves {
		if mv == move {
			chosen = root.children[i]
		}
	}
	// Late workers may still read the slots
	root.children = make([]*Node, len(root.moves))
	root.Unlock()

	m.root = chosen
	m.lastLen = len(history) + 1
}

// Root is the tree searched by the last decision, kept only with WithPreserveRoot.
func (m *MCTS) Root() *Node {
	if !m.preserveRoot {
		return nil
	}
	return m.root
}

func (m *MCTS) LastIterationCount() int {
	return m.lastIterations
}

func (m *MCTS) LastPlayoutActionCount() int {
	return m.lastActions
}

func (m *MCTS) LastMetric() metrics.SearchMetric {
	return m.lastMetric
}

// VisitDistribution maps every root move of the last recorded decision to
// its visit count.
func (m *MCTS) VisitDistribution() map[game.Move]int {
	if m.last == nil {
		return nil
	}
	dist := make(map[game.Move]int, len(m.last.moves))
	for i, move := range m.last.moves {
		dist[move] = m.last.childVisit[i]
	}
	return dist
}

// ValueEstimate is the value of move for the deciding agent in the last
// recorded decision.
func (m *MCTS) ValueEstimate(move game.Move) float64 {
	if m.last == nil {
		return 0
	}
	for i, mv := range m.last.moves {
		if mv == move {
			return m.last.childValue[i]
		}
	}
	return 0
}

func (m *MCTS) AnalysisReport() string {
	if m.last == nil {
		return "no decision recorded"
	}

	type line struct {
		move   game.Move
		visits int
		value  float64
	}
	lines := lo.Map(m.last.moves, func(move game.Move, i int) line {
		return line{move, m.last.childVisit[i], m.last.childValue[i]}
	})
	slices.SortStableFunc(lines, func(a, b line) int {
		return b.visits - a.visits
	})

	var b strings.Builder
	fmt.Fprintf(&b, "selected %v after %d iterations (visits %d, value %.4f)\n",
		m.last.move, m.lastIterations, m.last.visits, m.last.value)
	for _, l := range lines {
		fmt.Fprintf(&b, "  %-12v visits %-8d value %.4f\n", l.move, l.visits, l.value)
	}
	return b.String()
}
