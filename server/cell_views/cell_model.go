// cell_views contains the arena views and the view-model they share.
package cell_views

import (
	"fmt"

	"pathsim/grid_world"
	"pathsim/simulator"
)

// Cell is one arena cell in svg coordinates: [0][0] is the cell printed at the top left.
// As a rule of thumb, Cell fields should be immediately usable as view parameters.
type Cell struct {
	// X, Y are the svg column and row.
	X, Y int
	// GX, GY are arena coordinates, sent back when the cell is clicked.
	GX, GY    int
	Kind      string
	Fill      string
	Glyph     string
	Clickable bool
}

// Id is the element id of the cell's rect. Glyph and other parts derive from it.
func (c Cell) Id() string {
	return fmt.Sprintf("cell-%d-%d", c.GX, c.GY)
}

// Panel holds the control panel fields, already formatted for display.
type Panel struct {
	Scenario     string
	Scenarios    []string
	AlgoType     string
	Phase        string
	Loading      bool
	Editable     bool
	RunLabel     string
	Runtime      string
	HasSequence  bool
	Playing      bool
	PlayLabel    string
	Step         int
	MaxStep      int
	StepLabel    string
	RobotX       string
	RobotY       string
	ServerStatus string
	ServerFill   string
	Notice       simulator.Notice
}

// Arena is the view-model built from a simulator frame.
type Arena struct {
	Cells [][]Cell
	Panel Panel
}

// Convert transforms a frame into the arena view-model. Cell rows are already ordered
// top to bottom by the classifier, matching svg's y-axis orientation.
func Convert(frame simulator.Frame) (arena Arena) {
	arena.Cells = make([][]Cell, grid_world.GridHeight)
	for row := range frame.Board {
		arena.Cells[row] = make([]Cell, grid_world.GridWidth)
		for col, state := range frame.Board[row] {
			arena.Cells[row][col] = Cell{
				X:         col,
				Y:         row,
				GX:        state.X,
				GY:        state.Y,
				Kind:      state.Kind.String(),
				Fill:      getFill(state.Kind),
				Glyph:     getGlyph(state),
				Clickable: frame.Editable && (state.Kind == grid_world.Empty || state.Kind == grid_world.ObstacleCell),
			}
		}
	}
	arena.Panel = convertPanel(frame)
	return
}

func convertPanel(frame simulator.Frame) (panel Panel) {
	panel = Panel{
		Scenario:    frame.Scenario,
		AlgoType:    frame.AlgoType,
		Phase:       frame.Phase.String(),
		Loading:     frame.Loading,
		Editable:    frame.Editable,
		RunLabel:    "Run Algorithm",
		HasSequence: frame.HasSequence(),
		Playing:     frame.Phase == simulator.Playing,
		PlayLabel:   "Start Animation",
		Step:        frame.Step,
		MaxStep:     frame.Total - 1,
		StepLabel:   fmt.Sprintf("Step: %d / %d", frame.Step+1, frame.Total),
		RobotX:      fmt.Sprint(frame.Robot.X),
		RobotY:      fmt.Sprint(frame.Robot.Y),
	}
	for _, sc := range grid_world.Scenarios() {
		panel.Scenarios = append(panel.Scenarios, sc.Name)
	}
	if frame.Loading {
		panel.RunLabel = "Running..."
	}
	if frame.Runtime != "" {
		panel.Runtime = fmt.Sprintf("Algorithm runtime: %s (%s)", frame.Runtime, frame.AlgoType)
	}
	if panel.Playing {
		panel.PlayLabel = "Stop Animation"
	}
	if !panel.HasSequence {
		panel.MaxStep = 0
		panel.StepLabel = "Step: 0 / 0"
	}
	if frame.ServerOnline {
		panel.ServerStatus, panel.ServerFill = "Algorithm server online", "#16a34a"
	} else {
		panel.ServerStatus, panel.ServerFill = "Algorithm server offline", "#dc2626"
	}
	if frame.Notice != nil {
		panel.Notice = *frame.Notice
	}
	return
}

func getFill(kind grid_world.Kind) (fill string) {
	switch kind {
	case grid_world.RobotBody:
		fill = "#fb923c"
	case grid_world.RobotCamera:
		fill = "#3b82f6"
	case grid_world.RobotCenter:
		fill = "#ef4444"
	case grid_world.Turning:
		fill = "#fef08a"
	case grid_world.ObstacleCell:
		fill = "#fbbf24"
	case grid_world.VisitedCenter:
		fill = "#f8b4b4"
	default:
		fill = "#ffffff"
	}
	return
}

// getGlyph returns the arrow marking an obstacle's image face.
func getGlyph(state grid_world.CellState) string {
	if state.Kind != grid_world.ObstacleCell {
		return ""
	}
	switch state.Face {
	case grid_world.FacingNorth:
		return "▲"
	case grid_world.FacingSouth:
		return "▼"
	case grid_world.FacingEast:
		return "▶"
	case grid_world.FacingWest:
		return "◀"
	}
	return ""
}
