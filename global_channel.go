package channels

import (
	"sync"

	"github.com/google/uuid"
)

// globalChannel fans events out to callbacks bound across all channels.
// Callbacks are invoked in insertion order.
type globalChannel struct {
	mu        sync.Mutex
	callbacks []eventHandler
}

func newGlobalChannel() *globalChannel {
	return &globalChannel{}
}

func (g *globalChannel) bind(callback func(*Event)) string {
	id := uuid.New().String()
	g.mu.Lock()
	g.callbacks = append(g.callbacks, eventHandler{id: id, callback: callback})
	g.mu.Unlock()
	return id
}

func (g *globalChannel) unbind(callbackID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	kept := g.callbacks[:0]
	for _, h := range g.callbacks {
		if h.id != callbackID {
			kept = append(kept, h)
		}
	}
	g.callbacks = kept
}

func (g *globalChannel) unbindAll() {
	g.mu.Lock()
	g.callbacks = nil
	g.mu.Unlock()
}

func (g *globalChannel) handleEvent(event *Event) {
	g.mu.Lock()
	callbacks := append([]eventHandler(nil), g.callbacks...)
	g.mu.Unlock()
	for _, h := range callbacks {
		h.callback(event)
	}
}
