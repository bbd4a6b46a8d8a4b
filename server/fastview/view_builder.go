package fastview

import (
	"context"
	"errors"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
)

// DefaultBatchRate is how often the merged ele-updates of a view set are flushed.
const DefaultBatchRate = 20 * time.Millisecond

// ViewBuilder is a pattern for constructing one or more views that use a common view-model.
// The main responsibility for ViewBuilder is Build(): building views and wiring up chans/context.
type ViewBuilder[DataModel any, ViewModel any] struct {
	source      <-chan DataModel             // The source type of data, e.g. simulator frames
	viewModelFn func(DataModel) ViewModel    // Converts input data models to view models.
	builderFns  []ViewBuilderFunc[ViewModel] // The set of functions for building views.
	done        <-chan struct{}              // Okay if nil
	batchRate   time.Duration
}

// NewViewBuilder returns a builder for a given data-model and view-model.
func NewViewBuilder[DataModel any, ViewModel any]() *ViewBuilder[DataModel, ViewModel] {
	return &ViewBuilder[DataModel, ViewModel]{batchRate: DefaultBatchRate}
}

// WithModel sets the input channel and the function converting its items to the
// view-model shared by every view.
func (vb *ViewBuilder[DataModel, ViewModel]) WithModel(
	input <-chan DataModel,
	convert func(DataModel) ViewModel,
) *ViewBuilder[DataModel, ViewModel] {
	vb.source = input
	vb.viewModelFn = convert
	return vb
}

// ViewBuilderFunc builds a view from an input view-model channel and a 'done' channel for cleanup.
type ViewBuilderFunc[ViewModel any] func(<-chan struct{}, <-chan ViewModel) ViewComponent

// WithView adds a view to the list of views to build.
// They are returned in the same order as built when Build() is called.
func (vb *ViewBuilder[DataModel, ViewModel]) WithView(
	builderFn ViewBuilderFunc[ViewModel],
) *ViewBuilder[DataModel, ViewModel] {
	vb.builderFns = append(vb.builderFns, builderFn)
	return vb
}

// WithContext ensures that all downstream channels are closed when context is cancelled.
func (vb *ViewBuilder[DataModel, ViewModel]) WithContext(
	ctx context.Context,
) *ViewBuilder[DataModel, ViewModel] {
	vb.done = ctx.Done()
	return vb
}

// WithBatchRate sets how often merged updates are flushed.
func (vb *ViewBuilder[DataModel, ViewModel]) WithBatchRate(
	rate time.Duration,
) *ViewBuilder[DataModel, ViewModel] {
	if rate > 0 {
		vb.batchRate = rate
	}
	return vb
}

// ErrNoViews is returned when Build() is called before the caller has added any views.
var ErrNoViews error = errors.New("no views to build: WithView must be called")

// ErrNoModel is returned when Build() is called before  WithModel() has been called.
var ErrNoModel error = errors.New("no model specified: WithModel must be called")

// Views is a built set of view components plus their merged, batched ele-updates.
type Views struct {
	Components []ViewComponent
	updates    <-chan []EleUpdate
}

// Updates returns the single ele-update channel for all the views.
func (v *Views) Updates() <-chan []EleUpdate {
	return v.updates
}

// Build executes the stored builders, connecting the channels together and returning
// the views along with a single aggregated ele-update channel.
func (vb *ViewBuilder[DataModel, ViewModel]) Build() (*Views, error) {
	if len(vb.builderFns) == 0 {
		return nil, ErrNoViews
	}
	if vb.viewModelFn == nil {
		return nil, ErrNoModel
	}

	vmChan := channerics.Convert(vb.done, vb.source, vb.viewModelFn)
	vmChans := channerics.Broadcast(vb.done, vmChan, len(vb.builderFns))

	views := &Views{}
	inputs := make([]<-chan []EleUpdate, 0, len(vb.builderFns))
	for i, build := range vb.builderFns {
		view := build(vb.done, vmChans[i])
		views.Components = append(views.Components, view)
		inputs = append(inputs, view.Updates())
	}
	views.updates = batchify(vb.done, channerics.Merge(vb.done, inputs...), vb.batchRate)
	return views, nil
}

// batchify collects updates and flushes them once per rate, over-writing previously
// received values for the same ele-id. Redundant updates for the same element are never
// sent, and the latest values are always sent eventually.
func batchify(
	done <-chan struct{},
	source <-chan []EleUpdate,
	rate time.Duration,
) <-chan []EleUpdate {
	output := make(chan []EleUpdate)

	go func() {
		defer close(output)

		pending := newBatch()
		ticker := channerics.NewTicker(done, rate)
		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					return
				}
				pending.Add(updates)
			case _, ok := <-ticker:
				if !ok {
					return
				}
				if pending.Len() == 0 {
					continue
				}
				select {
				case output <- pending.Flush():
				case <-done:
					return
				}
			}
		}
	}()

	return output
}
