package experiments

import (
	"errors"
	"fmt"
	"os"

	"treesearch/experiments/metrics"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Config describes an experiment: the agents taking part and the match ups
// played between them.
type Config struct {
	Name      string                `yaml:"name"`
	Game      string                `yaml:"game"`   // tictactoe or pig
	Target    int                   `yaml:"target"` // pig only
	Games     int                   `yaml:"games"`  // per match up
	Parallel  int                   `yaml:"parallel"`
	Alternate bool                  `yaml:"alternate"` // swap seats every other game
	OutputDir string                `yaml:"output_dir"`
	Seed      uint64                `yaml:"seed"`
	Agents    []metrics.AgentConfig `yaml:"agents"`
	MatchUps  [][2]int              `yaml:"matchups"` // pairs of agent IDs
}

func DefaultConfig() Config {
	return Config{
		Name:      "experiment",
		Game:      "tictactoe",
		Games:     10,
		Parallel:  1,
		OutputDir: "experiments",
	}
}

// LoadConfig reads a YAML experiment file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Agents {
		a := &c.Agents[i]
		if a.Kind == "" {
			a.Kind = "mcts"
		}
		if a.Goroutines <= 0 {
			a.Goroutines = 1
		}
		if a.Selection == "" {
			a.Selection = "ucb1"
		}
		if a.Playout == "" {
			a.Playout = "random"
		}
		if a.Final == "" {
			a.Final = "robust"
		}
		if a.QInit == "" {
			a.QInit = "inf"
		}
		if a.Backup == "" {
			a.Backup = "average"
		}
	}
}

func (c Config) Validate() error {
	if c.Game != "tictactoe" && c.Game != "pig" {
		return fmt.Errorf("unknown game %q", c.Game)
	}
	if c.Games < 1 {
		return errors.New("games must be >= 1")
	}
	if c.Parallel < 1 {
		return errors.New("parallel must be >= 1")
	}
	if len(c.MatchUps) == 0 {
		return errors.New("at least one match up is required")
	}

	ids := make(map[int]bool, len(c.Agents))
	for _, a := range c.Agents {
		if ids[a.ID] {
			return fmt.Errorf("duplicate agent id %d", a.ID)
		}
		ids[a.ID] = true
		if err := validateAgent(a); err != nil {
			return fmt.Errorf("agent %d: %w", a.ID, err)
		}
	}
	for _, m := range c.MatchUps {
		for _, id := range m {
			if !ids[id] {
				return fmt.Errorf("match up refers to unknown agent %d", id)
			}
		}
	}
	return nil
}

func validateAgent(a metrics.AgentConfig) error {
	if a.Kind == "random" {
		return nil
	}
	checks := []struct {
		field string
		value string
		valid []string
	}{
		{"kind", a.Kind, []string{"mcts", "random"}},
		{"selection", a.Selection, []string{"ucb1", "puct", "progressive_history"}},
		{"playout", a.Playout, []string{"random", "heuristic"}},
		{"final", a.Final, []string{"robust", "max_average", "proportional"}},
		{"qinit", a.QInit, []string{"inf", "loss", "draw", "win", "parent"}},
		{"backup", a.Backup, []string{"average", "minmax", "both"}},
	}
	for _, check := range checks {
		if !lo.Contains(check.valid, check.value) {
			return fmt.Errorf("unknown %s %q", check.field, check.value)
		}
	}
	if a.Iterations <= 0 && a.Duration <= 0 {
		return errors.New("iterations or duration must be set")
	}
	if a.HistoryDecay != nil && (*a.HistoryDecay < 0 || *a.HistoryDecay > 1) {
		return fmt.Errorf("history decay %v not in [0, 1]", *a.HistoryDecay)
	}
	return nil
}

// agent returns the config of the agent with the given ID.
func (c Config) agent(id int) metrics.AgentConfig {
	a, _ := lo.Find(c.Agents, func(a metrics.AgentConfig) bool { return a.ID == id })
	return a
}
