package grid_world

import (
	"bytes"
	"math"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Given a robot facing north at (5,5)", t, func() {
		scene := Scene{
			Robot:   Pose{X: 5, Y: 5, Theta: math.Pi / 2},
			Turning: []Point{{5, 6}, {8, 8}, {9, 9}},
			Obstacles: []Obstacle{
				{ID: 1, X: 9, Y: 9, D: FacingSouth},
				{ID: 2, X: 0, Y: 19, D: FacingEast},
			},
		}
		board, trail := Classify(scene, Trail{})

		Convey("The robot block wins over every other layer", func() {
			So(board.At(6, 6).Kind, ShouldEqual, RobotCenter)
			So(board.At(6, 7).Kind, ShouldEqual, RobotCamera)
			So(board.At(5, 5).Kind, ShouldEqual, RobotBody)
			So(board.At(5, 6).Kind, ShouldEqual, RobotBody) // also a turning cell
			So(board.At(7, 7).Kind, ShouldEqual, RobotBody)
		})

		Convey("Turning cells win over obstacles", func() {
			So(board.At(8, 8).Kind, ShouldEqual, Turning)
			So(board.At(9, 9).Kind, ShouldEqual, Turning)
		})

		Convey("Obstacles carry their face", func() {
			cell := board.At(0, 19)
			So(cell.Kind, ShouldEqual, ObstacleCell)
			So(cell.Face, ShouldEqual, FacingEast)
		})

		Convey("Rows run from the top of the arena down", func() {
			So(board[0][0].Y, ShouldEqual, GridHeight-1)
			So(board[GridHeight-1][0].Y, ShouldEqual, 0)
		})

		Convey("The live centre is recorded in the returned trail only", func() {
			So(trail.Has(Point{6, 6}), ShouldBeTrue)
			So(len(trail), ShouldEqual, 1)
		})

		Convey("When the robot moves on, the old centre stays highlighted", func() {
			scene.Robot = Pose{X: 10, Y: 10, Theta: 0}
			scene.Turning = nil
			board, trail = Classify(scene, trail)

			So(board.At(6, 6).Kind, ShouldEqual, VisitedCenter)
			So(board.At(11, 9).Kind, ShouldEqual, RobotCenter)
			So(len(trail), ShouldEqual, 2)

			Convey("And classifying the same scene again does not duplicate trail entries", func() {
				_, again := Classify(scene, trail)
				So(len(again), ShouldEqual, 2)
			})
		})

		Convey("Trail cells under the robot body render as centre cells", func() {
			board, _ = Classify(Scene{Robot: Pose{X: 5, Y: 5, Theta: math.Pi / 2}}, Trail{{5, 5}: {}})
			So(board.At(5, 5).Kind, ShouldEqual, RobotCenter)
		})
	})
}

func TestCentimetresToCells(t *testing.T) {
	Convey("When server positions are converted to cells", t, func() {
		So(CentimetresToCells(Pose{X: 0, Y: 10, Theta: 1}, 10), ShouldResemble, Pose{X: 0, Y: 1, Theta: 1})
		So(CentimetresToCells(Pose{X: 155, Y: 49, Theta: 0}, 10), ShouldResemble, Pose{X: 15, Y: 4})
		So(CentimetresToCells(Pose{X: -5, Y: 0, Theta: 0}, 10), ShouldResemble, Pose{X: -1, Y: 0})

		Convey("Scan sentinels pass through", func() {
			scan := Pose{X: -1, Y: -1, Theta: ScanInProgress}
			So(CentimetresToCells(scan, 10), ShouldResemble, scan)
		})
	})
}

func TestCommands(t *testing.T) {
	Convey("Missing command indices report absent with a zero value", t, func() {
		cmds := Commands{1, -1}
		v, ok := cmds.At(1)
		So(v, ShouldEqual, -1)
		So(ok, ShouldBeTrue)
		v, ok = cmds.At(2)
		So(v, ShouldEqual, 0)
		So(ok, ShouldBeFalse)
		v, ok = Commands(nil).At(0)
		So(v, ShouldEqual, 0)
		So(ok, ShouldBeFalse)
	})
}

func TestScenarios(t *testing.T) {
	Convey("The embedded presets load in menu order", t, func() {
		all := Scenarios()
		So(len(all), ShouldBeGreaterThanOrEqualTo, 2)
		So(all[0].Name, ShouldEqual, CustomScenario)
		So(all[0].Obstacles, ShouldBeEmpty)

		five, ok := ScenarioByName("5 Obstacles")
		So(ok, ShouldBeTrue)
		So(len(five.Obstacles), ShouldEqual, 5)
		So(five.Obstacles[1], ShouldResemble, Obstacle{ID: 2, X: 0, Y: 14, D: FacingEast})

		Convey("Edits to a returned scenario never reach the preset", func() {
			five.Obstacles[0].D = FacingWest
			again, _ := ScenarioByName("5 Obstacles")
			So(again.Obstacles[0].D, ShouldEqual, FacingNorth)
		})

		Convey("Unknown names are reported", func() {
			_, ok := ScenarioByName("nope")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Obstacles off the arena are rejected", t, func() {
		_, err := ParseScenarios([]byte(`- name: bad
  obstacles:
    - { id: 1, x: 20, y: 0, d: 1 }`))
		So(err, ShouldNotBeNil)
	})
}

func TestShowBoard(t *testing.T) {
	Convey("The console board prints one line per row plus the x labels", t, func() {
		board, _ := Classify(Scene{Robot: InitialPose}, nil)
		var buf bytes.Buffer
		So(ShowBoard(&buf, &board), ShouldBeNil)
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		So(len(lines), ShouldEqual, GridHeight+1)
		So(lines[0], ShouldContainSubstring, "19")
	})
}
