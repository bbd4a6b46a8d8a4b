// turning reconstructs the cells a robot's anchor sweeps through while turning,
// purely for highlighting them on the grid. The server only reports the poses
// before and after a turn; the path between them is an approximation.
package turning

import (
	. "pathsim/grid_world"
)

// Synthesize returns, for every pose index, the turning cells of the transition into
// that pose. Index 0 is always empty, as are straight moves and scan events.
// It is a pure function of the sequence.
func Synthesize(seq Sequence) (cells [][]Point) {
	if len(seq.Poses) == 0 {
		return nil
	}
	cells = make([][]Point, 1, len(seq.Poses))
	cells[0] = []Point{}

	// last is the index of the most recent physical pose. Scan sentinels never advance it.
	last := 0
	for i := 0; i < len(seq.Poses)-1; i++ {
		dest := seq.Poses[i+1]
		if dest.IsScan() {
			cells = append(cells, []Point{})
			continue
		}

		start := seq.Poses[last]
		motion, _ := seq.Vert.At(i + 1)
		steer, _ := seq.Steer.At(i + 1)
		if steer == 0 {
			cells = append(cells, []Point{})
			last = i + 1
			continue
		}

		cells = append(cells, sweep(start, dest.Point(), motion, steer))
		last = i + 1
	}
	return
}

// sweep walks from the start pose's cell to dest: one heading-dependent step, then
// diagonally while both axes still approach dest, then one axis at a time.
// From a diagonal heading the first step may move away from dest on both axes, so a
// path holds at most d+4 cells for a Manhattan distance d, with at most d+2 steps
// after the first one.
func sweep(start Pose, dest Point, motion, steer int) []Point {
	dir := start.Direction()
	sx, sy := Signs(dir, motion, steer)
	x, y := start.X, start.Y

	path := []Point{{X: x, Y: y}}
	if x == dest.X && y == dest.Y {
		return path
	}

	switch dir {
	case NorthEast, NorthWest, SouthEast, SouthWest:
		if x != dest.X {
			x += sx
		}
		if y != dest.Y {
			y += sy
		}
	case North, South:
		if y != dest.Y {
			y += sy
		}
	case East, West:
		x += sx
	}
	path = append(path, Point{X: x, Y: y})
	if x == dest.X && y == dest.Y {
		return path
	}

	// The sign table is empirical and may point away from dest (e.g. a stationary
	// turn yields a zero sign), so the diagonal walk only continues while both
	// steps close the distance.
	for x != dest.X && y != dest.Y && sx == sign(dest.X-x) && sy == sign(dest.Y-y) {
		x += sx
		y += sy
		path = append(path, Point{X: x, Y: y})
	}

	for x != dest.X || y != dest.Y {
		if x != dest.X {
			x += sign(dest.X - x)
		} else {
			y += sign(dest.Y - y)
		}
		path = append(path, Point{X: x, Y: y})
	}

	return path
}

// Signs returns the per-axis step direction of a turn, given the heading before the
// turn, the vertical command (forward 1, backward -1) and the steer command
// (left -1, right 1). The table was tuned against the robot's observed turns and
// does not follow from a single geometric rule.
func Signs(prev Direction, motion, steer int) (x, y int) {
	switch prev {
	case NorthEast:
		y = pick(motion == -1, -1, 1)
		x = motion
	case NorthWest:
		y = pick(motion == -1, -1, 1)
		x = -motion
	case North:
		y = pick(motion == -1, -1, 1)
		x = pick(steer == -1, -1, 1)
	case SouthEast:
		y = pick(motion == 1, -1, 1)
		x = motion
	case SouthWest:
		y = pick(motion == 1, -1, 1)
		x = -motion
	case South:
		y = pick(motion == 1, -1, 1)
		x = pick(steer == -1, 1, -1)
	case East:
		x = pick(motion == -1, -1, 1)
		y = pick(steer == -1, 1, -1)
	case West:
		x = pick(motion == 1, -1, 1)
		y = pick(steer == -1, -1, 1)
	}
	return
}

func pick(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
