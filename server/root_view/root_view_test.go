package root_view

import (
	"bytes"
	"context"
	"html/template"
	"testing"
	"time"

	"pathsim/grid_world"
	"pathsim/server/cell_views"
	"pathsim/simulator"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRootView(t *testing.T) {
	Convey("Given a root view fed by a frame channel", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		frames := make(chan simulator.Frame)
		rv, err := NewRootView(ctx, frames)
		So(err, ShouldBeNil)

		s, err := simulator.NewState(grid_world.CustomScenario, "Exhaustive Astar")
		So(err, ShouldBeNil)

		Convey("The page renders both views and the websocket bootstrap", func() {
			root := template.New("index")
			name, err := rv.Parse(root)
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "mainpage")

			buf := &bytes.Buffer{}
			So(root.ExecuteTemplate(buf, name, cell_views.Convert(s.Render())), ShouldBeNil)
			page := buf.String()
			So(page, ShouldContainSubstring, `id="panel"`)
			So(page, ShouldContainSubstring, `id="arena"`)
			So(page, ShouldContainSubstring, `location.host + "/ws"`)
			So(page, ShouldContainSubstring, `id="toasts"`)
		})

		Convey("Frames turn into element updates", func() {
			frames <- s.Render()
			select {
			case updates := <-rv.Updates():
				So(updates, ShouldNotBeEmpty)
			case <-time.After(2 * time.Second):
				t.Fatal("no updates")
			}
		})
	})
}
