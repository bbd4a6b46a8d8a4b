package grid_world

import (
	"fmt"
	"math"
)

// The arena is a fixed 20x20 grid of 10cm cells. The orientation is such that the
// bottom/left most cell (when printed in a console) is (0,0), which matches the
// coordinate system of the algorithm server: +y is north, +x is east.
const (
	GridWidth  = 20
	GridHeight = 20

	// The robot occupies a 3x3 block of cells.
	RobotWidth  = 3
	RobotHeight = 3

	// Theta values reserved by the algorithm server to signal camera events.
	// Poses carrying these have x = y = -1 and do not move the robot.
	ScanComplete   = -1.0
	ScanInProgress = -2.0
)

// InitialPose is where the algorithm server starts every search: (0cm, 10cm) facing north.
var InitialPose = Pose{X: 0, Y: 1, Theta: math.Pi / 2}

// Point is a grid cell.
type Point struct {
	X, Y int
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// InBounds reports whether the cell lies on the arena.
func (p Point) InBounds() bool {
	return p.X >= 0 && p.X < GridWidth && p.Y >= 0 && p.Y < GridHeight
}

// Pose is a robot anchor cell plus heading, or a scan sentinel.
// Theta is in radians, counter-clockwise from east.
type Pose struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Theta float64 `json:"theta"`
}

// IsScan reports whether the pose is a camera event rather than a physical move.
func (p Pose) IsScan() bool {
	return p.Theta == ScanComplete || p.Theta == ScanInProgress
}

func (p Pose) Point() Point {
	return Point{X: p.X, Y: p.Y}
}

func (p Pose) Direction() Direction {
	return DirectionOf(p.Theta)
}

func (p Pose) String() string {
	if p.IsScan() {
		return fmt.Sprintf("scan(%v)", p.Theta)
	}
	return fmt.Sprintf("(%d,%d %s)", p.X, p.Y, p.Direction())
}

// Facing is the side of an obstacle that carries its image. The numeric values are
// the wire codes used by the algorithm server.
type Facing int

const (
	FacingNorth Facing = 1
	FacingSouth Facing = 2
	FacingEast  Facing = 3
	FacingWest  Facing = 4
)

// Next returns the facing after a clockwise quarter turn: N -> E -> S -> W -> N.
func (f Facing) Next() Facing {
	switch f {
	case FacingNorth:
		return FacingEast
	case FacingEast:
		return FacingSouth
	case FacingSouth:
		return FacingWest
	default:
		return FacingNorth
	}
}

func (f Facing) Valid() bool {
	return f >= FacingNorth && f <= FacingWest
}

func (f Facing) String() string {
	switch f {
	case FacingNorth:
		return "N"
	case FacingSouth:
		return "S"
	case FacingEast:
		return "E"
	case FacingWest:
		return "W"
	}
	return "?"
}

// Obstacle is a block with an image on one face.
type Obstacle struct {
	ID int    `json:"id" yaml:"id"`
	X  int    `json:"x" yaml:"x"`
	Y  int    `json:"y" yaml:"y"`
	D  Facing `json:"d" yaml:"d"`
}

func (o Obstacle) Point() Point {
	return Point{X: o.X, Y: o.Y}
}

// Commands is one of the motion command arrays returned alongside a pose sequence.
// Entry i describes the command that produced the transition into pose i.
type Commands []int

// At returns the command at index i. The bool is false when the server did not supply
// that index; the returned value is then 0, i.e. stationary/straight.
func (c Commands) At(i int) (int, bool) {
	if i < 0 || i >= len(c) {
		return 0, false
	}
	return c[i], true
}

// Sequence is the full result of one algorithm run. It is created atomically
// from a single server response and replaced wholly by the next run.
type Sequence struct {
	Poses []Pose `json:"positions"`
	// Vert is forward (+1), backward (-1) or stationary (0) per pose.
	Vert Commands `json:"vert"`
	// Steer is left (-1), right (+1) or straight (0) per pose.
	Steer   Commands `json:"steer"`
	Runtime string   `json:"runtime"`
}

func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Poses)
}

// CentimetresToCells converts a pose reported by the algorithm server (in cm) into
// grid cells. Scan sentinels pass through untouched.
func CentimetresToCells(p Pose, cellSizeCm int) Pose {
	if p.IsScan() || cellSizeCm <= 0 {
		return p
	}
	return Pose{
		X:     floorDiv(p.X, cellSizeCm),
		Y:     floorDiv(p.Y, cellSizeCm),
		Theta: p.Theta,
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Returns reversed indices of a slice, e.g. for ranging over rows top to bottom.
func Rev(length int) []int {
	indices := make([]int, length)
	for i := 0; i < length; i++ {
		indices[i] = length - i - 1
	}
	return indices
}
