package simulator

import (
	"pathsim/grid_world"
)

// Frame is an immutable snapshot of everything the ui draws.
type Frame struct {
	Board        grid_world.Board      `json:"board"`
	Phase        Phase                 `json:"phase"`
	Scenario     string                `json:"scenario"`
	AlgoType     string                `json:"algoType"`
	Obstacles    []grid_world.Obstacle `json:"obstacles"`
	Loading      bool                  `json:"loading"`
	Editable     bool                  `json:"editable"`
	Step         int                   `json:"step"`
	Total        int                   `json:"total"`
	Robot        grid_world.Pose       `json:"robot"`
	Runtime      string                `json:"runtime"`
	ServerOnline bool                  `json:"serverOnline"`
	Notice       *Notice               `json:"notice,omitempty"`
}

// HasSequence reports whether there is anything to play or scrub.
func (f *Frame) HasSequence() bool {
	return f.Total > 0
}

// Render classifies the arena for the current step and snapshots the state.
// Rendering records the robot's live centre in the trail.
func (s *State) Render() Frame {
	var board grid_world.Board
	board, s.trail = grid_world.Classify(s.scene(), s.trail)

	frame := Frame{
		Board:        board,
		Phase:        s.phase,
		Scenario:     s.scenario.Name,
		AlgoType:     s.algoType,
		Obstacles:    append([]grid_world.Obstacle(nil), s.scenario.Obstacles...),
		Loading:      s.Loading(),
		Editable:     s.Editable(),
		Step:         s.step,
		Total:        s.Total(),
		Robot:        s.robot,
		Runtime:      s.runtime,
		ServerOnline: s.serverOnline,
	}
	if s.notice != nil {
		notice := *s.notice
		frame.Notice = &notice
	}
	return frame
}
