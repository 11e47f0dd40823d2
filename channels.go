package channels

import "sync"

// Channels is the registry of subscribed channels, keyed by name. It is
// mutated by the connection (add/remove) and read by the event queue, so
// access is locked internally.
type Channels struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

func newChannels() *Channels {
	return &Channels{channels: make(map[string]*Channel)}
}

// Add returns the channel with the given name, creating it if necessary.
// Adding an existing name returns the existing instance without resetting
// its state, so re-subscribing shares bindings and subscription state.
func (cs *Channels) Add(name string, conn channelSender, auth *Auth) *Channel {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if ch, ok := cs.channels[name]; ok {
		return ch
	}
	ch := newChannel(name, conn, auth)
	cs.channels[name] = ch
	return ch
}

// Find returns the channel with the given name, or nil.
func (cs *Channels) Find(name string) *Channel {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.channels[name]
}

// FindPresence returns the presence accessor for the named channel, or false
// if the channel does not exist or is not a presence channel.
func (cs *Channels) FindPresence(name string) (*PresenceChannel, bool) {
	ch := cs.Find(name)
	if ch == nil {
		return nil, false
	}
	return ch.Presence()
}

// Remove deletes the named channel from the registry. It does not send any
// network frame; that is the connection's responsibility.
func (cs *Channels) Remove(name string) {
	cs.mu.Lock()
	delete(cs.channels, name)
	cs.mu.Unlock()
}

// All returns a snapshot of the registered channels.
func (cs *Channels) All() []*Channel {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	all := make([]*Channel, 0, len(cs.channels))
	for _, ch := range cs.channels {
		all = append(all, ch)
	}
	return all
}
