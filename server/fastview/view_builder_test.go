package fastview

import (
	"context"
	"html/template"
	"strconv"
	"testing"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	. "github.com/smartystreets/goconvey/convey"
)

// textView shows a single view-model value as an element's text.
type textView struct {
	id      string
	updates <-chan []EleUpdate
}

func newTextView(id string) ViewBuilderFunc[string] {
	return func(done <-chan struct{}, input <-chan string) ViewComponent {
		tv := &textView{id: id}
		tv.updates = channerics.Convert(done, input, func(s string) []EleUpdate {
			return []EleUpdate{{EleId: tv.id, Ops: []Op{{Key: TextContent, Value: s}}}}
		})
		return tv
	}
}

func (tv *textView) Updates() <-chan []EleUpdate {
	return tv.updates
}

func (tv *textView) Parse(t *template.Template) (string, error) {
	_, err := t.Parse(`{{ define "` + tv.id + `" }}<span id="` + tv.id + `">{{ . }}</span>{{ end }}`)
	return tv.id, err
}

func TestViewBuilder(t *testing.T) {
	Convey("Builder errors", t, func() {
		Convey("When no views were added", func() {
			_, err := NewViewBuilder[int, string]().
				WithModel(make(chan int), strconv.Itoa).
				Build()
			So(err, ShouldEqual, ErrNoViews)
		})

		Convey("When no model was set", func() {
			_, err := NewViewBuilder[int, string]().
				WithView(newTextView("first")).
				Build()
			So(err, ShouldEqual, ErrNoModel)
		})
	})

	Convey("Happy path builder", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		input := make(chan int)
		views, err := NewViewBuilder[int, string]().
			WithContext(ctx).
			WithModel(input, strconv.Itoa).
			WithView(newTextView("first")).
			WithView(newTextView("second")).
			WithBatchRate(5 * time.Millisecond).
			Build()
		So(err, ShouldBeNil)
		So(len(views.Components), ShouldEqual, 2)

		Convey("Views are returned in the order they were added", func() {
			root := template.New("root")
			name, err := views.Components[0].Parse(root)
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "first")
		})

		Convey("Every view's updates arrive on the merged channel", func() {
			input <- 42

			seen := map[string]string{}
			timeout := time.After(2 * time.Second)
			for len(seen) < 2 {
				select {
				case updates := <-views.Updates():
					for _, update := range updates {
						seen[update.EleId] = update.Ops[0].Value
					}
				case <-timeout:
					t.Fatal("timed out waiting for updates")
				}
			}
			So(seen, ShouldResemble, map[string]string{"first": "42", "second": "42"})
		})

		Convey("Cancellation closes the merged channel", func() {
			cancel()
			select {
			case _, ok := <-views.Updates():
				So(ok, ShouldBeFalse)
			case <-time.After(2 * time.Second):
				t.Fatal("updates channel was not closed")
			}
		})
	})
}

func TestBatch(t *testing.T) {
	Convey("Given a batch", t, func() {
		b := newBatch()

		Convey("Later updates replace earlier ones for the same element", func() {
			b.Add([]EleUpdate{
				{EleId: "a", Ops: []Op{{Key: "x", Value: "1"}}},
				{EleId: "b", Ops: []Op{{Key: "x", Value: "2"}}},
			})
			b.Add([]EleUpdate{
				{EleId: "a", Ops: []Op{{Key: "x", Value: "3"}}},
			})
			So(b.Len(), ShouldEqual, 2)

			flushed := b.Flush()
			So(flushed, ShouldResemble, []EleUpdate{
				{EleId: "a", Ops: []Op{{Key: "x", Value: "3"}}},
				{EleId: "b", Ops: []Op{{Key: "x", Value: "2"}}},
			})
			So(b.Len(), ShouldEqual, 0)
		})

		Convey("Flushing an empty batch returns nothing", func() {
			So(b.Flush(), ShouldBeEmpty)
		})
	})
}
