package grid_world

// Kind is the visual layer that wins a grid cell.
type Kind int

const (
	Empty Kind = iota
	RobotBody
	RobotCamera
	RobotCenter
	Turning
	ObstacleCell
	VisitedCenter
)

func (k Kind) String() string {
	switch k {
	case RobotBody:
		return "body"
	case RobotCamera:
		return "camera"
	case RobotCenter:
		return "center"
	case Turning:
		return "turning"
	case ObstacleCell:
		return "obstacle"
	case VisitedCenter:
		return "visited"
	}
	return "empty"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// CellState is the classification of one grid cell.
// Face is only meaningful for obstacle cells.
type CellState struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind Kind   `json:"kind"`
	Face Facing `json:"face,omitempty"`
}

// Board is the classified arena. Rows are ordered top (y = GridHeight-1) to bottom,
// the way the grid is printed or drawn.
type Board [GridHeight][GridWidth]CellState

// At returns the cell state for grid coordinates x, y.
func (b *Board) At(x, y int) CellState {
	return b[GridHeight-1-y][x]
}

// Scene is everything the classifier needs to know about the current step.
type Scene struct {
	Robot     Pose
	Turning   []Point
	Obstacles []Obstacle
}

// Trail is the set of centre cells the robot has occupied so far.
type Trail map[Point]struct{}

func (t Trail) Has(p Point) bool {
	_, ok := t[p]
	return ok
}

// Clone returns a copy, so callers can hold a frame's trail while the live one grows.
func (t Trail) Clone() Trail {
	out := make(Trail, len(t))
	for p := range t {
		out[p] = struct{}{}
	}
	return out
}

// Classify decides the winning layer for every cell of the arena, in strict priority:
// robot (centre, camera, body) > turning path > obstacle > visited centre > empty.
// A robot cell counts as a centre when it is the live centre or already in the trail.
// Classifying the live centre records it in the trail, which is returned; the passed
// trail is not modified.
func Classify(scene Scene, trail Trail) (board Board, next Trail) {
	next = trail.Clone()

	footprint := Footprint(scene.Robot)
	center := Center(scene.Robot)
	camera := Camera(scene.Robot)

	turning := make(map[Point]struct{}, len(scene.Turning))
	for _, p := range scene.Turning {
		turning[p] = struct{}{}
	}
	obstacles := make(map[Point]Facing, len(scene.Obstacles))
	for _, o := range scene.Obstacles {
		obstacles[o.Point()] = o.D
	}

	for row, y := range Rev(GridHeight) {
		for x := 0; x < GridWidth; x++ {
			p := Point{x, y}
			cell := CellState{X: x, Y: y}

			if footprint.Contains(p) {
				switch {
				case p == center || trail.Has(p):
					cell.Kind = RobotCenter
					if p == center {
						next[p] = struct{}{}
					}
				case p == camera:
					cell.Kind = RobotCamera
				default:
					cell.Kind = RobotBody
				}
			} else if _, ok := turning[p]; ok {
				cell.Kind = Turning
			} else if face, ok := obstacles[p]; ok {
				cell.Kind = ObstacleCell
				cell.Face = face
			} else if trail.Has(p) {
				cell.Kind = VisitedCenter
			}

			board[row][x] = cell
		}
	}

	return
}
