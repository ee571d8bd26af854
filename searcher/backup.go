package searcher

// backup walks from leaf to the root, turning every virtual visit into a real
// one. Each node is locked on its own, never together with its parent.
func backup(leaf *Node, utilities []float64, history *History) {
	for node := leaf; node != nil; {
		node.Lock()
		node.visits++
		if node.virtual > 0 {
			node.virtual--
		}
		if node.opts.average {
			for agent, u := range utilities {
				node.scores[agent] += u
			}
		}
		if node.opts.minimax {
			node.updateMinimax(node == leaf, utilities)
		}
		parent, move, playedBy, depth := node.parent, node.move, node.playedBy, node.depth
		node.Unlock()

		if history != nil && parent != nil {
			history.Update(playedBy, move, depth-1, utilities[playedBy])
		}
		node = parent
	}
}

// updateMinimax must be called with n locked. A leaf takes the utilities of
// this iteration, an internal node the vector of the visited child that is
// best for its mover.
func (n *Node) updateMinimax(leaf bool, utilities []float64) {
	var best []float64
	if !leaf {
		for _, child := range n.children {
			if child == nil {
				continue
			}
			child.RLock()
			if child.visits > 0 && (best == nil || child.minimax[n.mover] > best[n.mover]) {
				best = append(best[:0], child.minimax...)
			}
			child.RUnlock()
		}
	}
	if best == nil {
		best = utilities
	}
	copy(n.minimax, best)
}
