package metrics

import "time"

// AgentConfig describes an agent taking part in an experiment.
type AgentConfig struct {
	ID            int           `yaml:"id"`
	Kind          string        `yaml:"kind"` // mcts or random
	Goroutines    int           `yaml:"goroutines"`
	Duration      time.Duration `yaml:"duration"`
	Iterations    int           `yaml:"iterations"`
	Cutoff        int           `yaml:"cutoff"`
	Selection     string        `yaml:"selection"` // ucb1, puct, progressive_history
	Exploration   float64       `yaml:"exploration"`
	Playout       string        `yaml:"playout"` // random, heuristic
	PlayoutWeight *float64      `yaml:"playout_weight"`
	Final         string        `yaml:"final"` // robust, max_average, proportional
	Temperature   float64       `yaml:"temperature"`
	QInit         string        `yaml:"qinit"`  // inf, loss, draw, win, parent
	Backup        string        `yaml:"backup"` // average, minmax, both
	TreeReuse     bool          `yaml:"tree_reuse"`
	Heuristic     bool          `yaml:"heuristic"`
	HistoryDecay  *float64      `yaml:"history_decay"` // progressive history only
	Seed          uint64        `yaml:"seed"`
}

// Weight is the configured playout weight, 1 when unset.
func (c AgentConfig) Weight() float64 {
	if c.PlayoutWeight == nil {
		return 1
	}
	return *c.PlayoutWeight
}
