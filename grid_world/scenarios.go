package grid_world

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// CustomScenario is the user-editable layout; it starts empty.
const CustomScenario = "Custom"

// Scenario is a named obstacle layout.
type Scenario struct {
	Name      string     `yaml:"name" json:"name"`
	Obstacles []Obstacle `yaml:"obstacles" json:"obstacles"`
}

//go:embed scenarios.yaml
var scenarioSpec []byte

var scenarios []Scenario

func init() {
	var err error
	if scenarios, err = ParseScenarios(scenarioSpec); err != nil {
		panic(err)
	}
}

// ParseScenarios decodes a yaml list of scenarios and checks each obstacle lies on the arena.
func ParseScenarios(spec []byte) ([]Scenario, error) {
	var out []Scenario
	if err := yaml.Unmarshal(spec, &out); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	for _, sc := range out {
		for _, o := range sc.Obstacles {
			if !o.Point().InBounds() || !o.D.Valid() {
				return nil, fmt.Errorf("scenario %q: invalid obstacle %+v", sc.Name, o)
			}
		}
	}
	return out, nil
}

// Scenarios returns the preset layouts in menu order.
func Scenarios() []Scenario {
	out := make([]Scenario, len(scenarios))
	for i, sc := range scenarios {
		out[i] = sc.Clone()
	}
	return out
}

// ScenarioByName returns a copy of the named preset.
func ScenarioByName(name string) (Scenario, bool) {
	for _, sc := range scenarios {
		if sc.Name == name {
			return sc.Clone(), true
		}
	}
	return Scenario{}, false
}

// Clone copies the obstacle slice so edits never reach the preset.
func (sc Scenario) Clone() Scenario {
	obs := make([]Obstacle, len(sc.Obstacles))
	copy(obs, sc.Obstacles)
	return Scenario{Name: sc.Name, Obstacles: obs}
}
