package fastview

// batch accumulates ele-updates, keeping only the latest ops per element id.
// Elements are flushed in the order they were first seen.
type batch struct {
	order []string
	byId  map[string]EleUpdate
}

func newBatch() *batch {
	return &batch{byId: map[string]EleUpdate{}}
}

// Add overwrites any pending update for the same element.
func (b *batch) Add(updates []EleUpdate) {
	for _, update := range updates {
		if _, ok := b.byId[update.EleId]; !ok {
			b.order = append(b.order, update.EleId)
		}
		b.byId[update.EleId] = update
	}
}

func (b *batch) Len() int {
	return len(b.order)
}

// Flush returns the pending updates and empties the batch.
func (b *batch) Flush() (updates []EleUpdate) {
	updates = make([]EleUpdate, 0, len(b.order))
	for _, id := range b.order {
		updates = append(updates, b.byId[id])
	}
	b.order = nil
	b.byId = map[string]EleUpdate{}
	return
}
