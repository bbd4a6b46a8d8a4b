package grid_world

import "math"

// Direction is the robot heading, quantized to 8 compass points.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

// Directions lists every direction, clockwise from north.
var Directions = []Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

func (d Direction) String() string {
	switch d {
	case North:
		return "North"
	case NorthEast:
		return "NorthEast"
	case East:
		return "East"
	case SouthEast:
		return "SouthEast"
	case South:
		return "South"
	case SouthWest:
		return "SouthWest"
	case West:
		return "West"
	case NorthWest:
		return "NorthWest"
	}
	return "Unknown"
}

// IsDiagonal is true for the four composite headings.
func (d Direction) IsDiagonal() bool {
	switch d {
	case NorthEast, SouthEast, SouthWest, NorthWest:
		return true
	}
	return false
}

// northLike and southLike share a footprint anchor with their cardinal.
func (d Direction) northLike() bool {
	return d == North || d == NorthEast || d == NorthWest
}

func (d Direction) southLike() bool {
	return d == South || d == SouthEast || d == SouthWest
}

const sector = math.Pi / 8

// DirectionOf maps a heading in radians to one of the 8 directions. Theta is first
// normalized into [-pi, pi]; each direction owns the 45 degree sector centred on its
// heading, lower bound inclusive. The mapping is total: non-finite values map to North.
func DirectionOf(theta float64) Direction {
	if math.IsNaN(theta) || math.IsInf(theta, 0) {
		return North
	}
	t := math.Remainder(theta, 2*math.Pi)

	switch {
	case t < -7*sector:
		return West
	case t < -5*sector:
		return SouthWest
	case t < -3*sector:
		return South
	case t < -sector:
		return SouthEast
	case t < sector:
		return East
	case t < 3*sector:
		return NorthEast
	case t < 5*sector:
		return North
	case t < 7*sector:
		return NorthWest
	default:
		return West
	}
}

// The anchor cell of the robot footprint moves with the heading:
//   - N, NE, NW: bottom-left
//   - S, SE, SW: top-right
//   - E: top-left
//   - W: bottom-right
// The offsets below are relative to that anchor and are not derivable from a single rule.

// CameraOffset returns the camera cell relative to the robot anchor.
func CameraOffset(d Direction) Point {
	switch d {
	case North:
		return Point{1, 2}
	case NorthEast:
		return Point{2, 2}
	case NorthWest:
		return Point{0, 2}
	case East:
		return Point{2, -1}
	case West:
		return Point{-2, 1}
	case South:
		return Point{-1, -2}
	case SouthEast:
		return Point{0, -2}
	case SouthWest:
		return Point{-2, -2}
	}
	return Point{}
}

// CenterOffset returns the centre cell of the 3x3 body relative to the robot anchor.
func CenterOffset(d Direction) Point {
	switch {
	case d.northLike():
		return Point{1, 1}
	case d.southLike():
		return Point{-1, -1}
	case d == East:
		return Point{1, -1}
	case d == West:
		return Point{-1, 1}
	}
	return Point{}
}

// Rect is an inclusive range of cells.
type Rect struct {
	Min, Max Point
}

func (r Rect) Contains(p Point) bool {
	return r.Min.X <= p.X && p.X <= r.Max.X && r.Min.Y <= p.Y && p.Y <= r.Max.Y
}

// Cells returns every cell of the rect, bottom row first.
func (r Rect) Cells() (cells []Point) {
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			cells = append(cells, Point{x, y})
		}
	}
	return
}

// Footprint returns the 3x3 block occupied by a robot at pose p.
func Footprint(p Pose) Rect {
	w, h := RobotWidth-1, RobotHeight-1
	switch d := p.Direction(); {
	case d.northLike():
		return Rect{Point{p.X, p.Y}, Point{p.X + w, p.Y + h}}
	case d.southLike():
		return Rect{Point{p.X - w, p.Y - h}, Point{p.X, p.Y}}
	case d == East:
		return Rect{Point{p.X, p.Y - h}, Point{p.X + w, p.Y}}
	default:
		return Rect{Point{p.X - w, p.Y}, Point{p.X, p.Y + h}}
	}
}

// Center returns the body centre cell of a robot at pose p.
func Center(p Pose) Point {
	return p.Point().Add(CenterOffset(p.Direction()))
}

// Camera returns the camera cell of a robot at pose p.
func Camera(p Pose) Point {
	return p.Point().Add(CameraOffset(p.Direction()))
}
