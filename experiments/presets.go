package experiments

import (
	"fmt"
	"slices"
	"time"

	"treesearch/experiments/metrics"
)

const TimeBudget = 10 * time.Millisecond

var parallelConfigs = []metrics.AgentConfig{
	{ID: 1, Goroutines: 1, Duration: TimeBudget},
	{ID: 2, Goroutines: 2, Duration: TimeBudget},
	{ID: 3, Goroutines: 4, Duration: TimeBudget},
	{ID: 4, Goroutines: 8, Duration: TimeBudget},
	{ID: 5, Goroutines: 16, Duration: TimeBudget},
}

// Preset returns one of the built-in experiments: throughput, strength or cutoff.
func Preset(name string) (Config, error) {
	config := DefaultConfig()
	config.Name = name
	config.Alternate = true

	switch name {
	case "throughput":
		// Each matchup uses the same config for both players
		// for the same playing strength and similar game length
		config.Agents = slices.Clone(parallelConfigs)
		for _, a := range parallelConfigs {
			config.MatchUps = append(config.MatchUps, [2]int{a.ID, a.ID})
		}
	case "strength":
		// Each matchup pairs an agent against the baseline sequential agent
		baseline := metrics.AgentConfig{ID: 0, Goroutines: 1, Duration: TimeBudget}
		config.Agents = append([]metrics.AgentConfig{baseline}, parallelConfigs...)
		for _, a := range parallelConfigs {
			config.MatchUps = append(config.MatchUps, [2]int{baseline.ID, a.ID})
		}
	case "cutoff":
		config.Game = "pig"
		baseline := metrics.AgentConfig{ID: 0, Goroutines: 4, Duration: TimeBudget} // Without cutoff (full playout)
		config.Agents = []metrics.AgentConfig{
			baseline,
			{ID: 1, Goroutines: baseline.Goroutines, Duration: baseline.Duration, Cutoff: 5, Heuristic: true},
			{ID: 2, Goroutines: baseline.Goroutines, Duration: baseline.Duration, Cutoff: 10, Heuristic: true},
			{ID: 3, Goroutines: baseline.Goroutines, Duration: baseline.Duration, Cutoff: 20, Heuristic: true},
		}
		for _, a := range config.Agents[1:] {
			config.MatchUps = append(config.MatchUps, [2]int{baseline.ID, a.ID})
		}
	default:
		return Config{}, fmt.Errorf("unknown preset %q", name)
	}

	config.applyDefaults()
	return config, config.Validate()
}
