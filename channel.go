package channels

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ChannelType is derived from the channel name prefix at creation time and
// is immutable thereafter.
type ChannelType int

const (
	// ChannelTypePublic needs no authorization to subscribe.
	ChannelTypePublic ChannelType = iota
	// ChannelTypePrivate requires an auth signature to subscribe.
	ChannelTypePrivate
	// ChannelTypePresence tracks the set of subscribed members.
	ChannelTypePresence
	// ChannelTypePrivateEncrypted carries end-to-end encrypted payloads.
	ChannelTypePrivateEncrypted
)

func (t ChannelType) String() string {
	switch t {
	case ChannelTypePrivate:
		return "private"
	case ChannelTypePresence:
		return "presence"
	case ChannelTypePrivateEncrypted:
		return "private-encrypted"
	default:
		return "public"
	}
}

func channelTypeForName(name string) ChannelType {
	switch {
	case strings.HasPrefix(name, privateEncryptedPrefix+"-"):
		return ChannelTypePrivateEncrypted
	case strings.Split(name, "-")[0] == presencePrefix:
		return ChannelTypePresence
	case strings.Split(name, "-")[0] == privatePrefix:
		return ChannelTypePrivate
	default:
		return ChannelTypePublic
	}
}

// requiresAuth is true for channel types that need an auth signature before
// subscribing.
func (t ChannelType) requiresAuth() bool {
	return t != ChannelTypePublic
}

// channelSender is the slice of the connection a channel needs to send
// client events.
type channelSender interface {
	sendEvent(event string, data interface{}, channel *Channel)
}

type eventHandler struct {
	id       string
	callback func(*Event)
}

type unsentEvent struct {
	name string
	data interface{}
}

// Member represents one subscriber to a presence channel.
type Member struct {
	UserID   string
	UserInfo interface{}
}

// presenceState is the presence extension of a channel, attached at
// construction time when the name carries the presence prefix.
type presenceState struct {
	members         []Member
	myID            string
	onMemberAdded   func(Member)
	onMemberRemoved func(Member)
}

// Channel represents one subscription. Channels are created by Subscribe and
// removed from the registry by Unsubscribe; the subscribed flag is reset on
// every disconnect.
type Channel struct {
	// Name is the immutable, unique channel name.
	Name string
	// Type is derived from the name prefix.
	Type ChannelType

	conn channelSender

	mu            sync.Mutex
	subscribed    bool
	decryptionKey string
	auth          *Auth
	handlers      map[string][]eventHandler
	unsent        []unsentEvent
	presence      *presenceState
}

func newChannel(name string, conn channelSender, auth *Auth) *Channel {
	c := &Channel{
		Name:     name,
		Type:     channelTypeForName(name),
		conn:     conn,
		auth:     auth,
		handlers: make(map[string][]eventHandler),
	}
	if c.Type == ChannelTypePresence {
		c.presence = &presenceState{}
	}
	return c
}

// Subscribed reports whether the server has confirmed the subscription.
func (c *Channel) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

func (c *Channel) setSubscribed(subscribed bool) {
	c.mu.Lock()
	c.subscribed = subscribed
	c.mu.Unlock()
}

func (c *Channel) decryptionKeyValue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decryptionKey
}

func (c *Channel) setDecryptionKey(key string) {
	c.mu.Lock()
	c.decryptionKey = key
	c.mu.Unlock()
}

func (c *Channel) pendingAuth() *Auth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth
}

func (c *Channel) clearPendingAuth() {
	c.mu.Lock()
	c.auth = nil
	c.mu.Unlock()
}

// Bind registers a callback for the named event on this channel. Callbacks
// bound to the same event are invoked in insertion order. The returned id
// can be passed to Unbind.
func (c *Channel) Bind(eventName string, callback func(*Event)) string {
	id := uuid.New().String()
	c.mu.Lock()
	c.handlers[eventName] = append(c.handlers[eventName], eventHandler{id: id, callback: callback})
	c.mu.Unlock()
	return id
}

// Unbind removes the callback with the given id from the named event.
func (c *Channel) Unbind(eventName, callbackID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.handlers[eventName][:0]
	for _, h := range c.handlers[eventName] {
		if h.id != callbackID {
			kept = append(kept, h)
		}
	}
	c.handlers[eventName] = kept
}

// UnbindAll removes every callback from the channel.
func (c *Channel) UnbindAll() {
	c.mu.Lock()
	c.handlers = make(map[string][]eventHandler)
	c.mu.Unlock()
}

// UnbindAllForEvent removes every callback bound to the named event.
func (c *Channel) UnbindAllForEvent(eventName string) {
	c.mu.Lock()
	delete(c.handlers, eventName)
	c.mu.Unlock()
}

// handleEvent invokes the callbacks bound to the event's name, in insertion
// order.
func (c *Channel) handleEvent(event *Event) {
	c.mu.Lock()
	handlers := append([]eventHandler(nil), c.handlers[event.EventName]...)
	c.mu.Unlock()
	for _, h := range handlers {
		h.callback(event)
	}
}

// Trigger sends a client event on the channel. Client events are only
// permitted on private and presence channels; public channels refuse and
// log. If the channel is not yet subscribed the event is queued and flushed
// on subscription success, most recently queued first.
func (c *Channel) Trigger(eventName string, data interface{}) {
	if !c.Type.requiresAuth() {
		log.WithField("channel", c.Name).Warn("client events require a private or presence channel")
		return
	}

	c.mu.Lock()
	subscribed := c.subscribed
	if !subscribed {
		c.unsent = append(c.unsent, unsentEvent{name: eventName, data: data})
	}
	c.mu.Unlock()

	if subscribed {
		c.conn.sendEvent(eventName, data, c)
	}
}

// popUnsent removes and returns the most recently queued unsent event.
func (c *Channel) popUnsent() (unsentEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.unsent) == 0 {
		return unsentEvent{}, false
	}
	ev := c.unsent[len(c.unsent)-1]
	c.unsent = c.unsent[:len(c.unsent)-1]
	return ev, true
}

// PresenceChannel gives typed access to the presence extension of a channel.
type PresenceChannel struct {
	*Channel
}

// Presence returns the typed presence accessor, or false if this is not a
// presence channel.
func (c *Channel) Presence() (*PresenceChannel, bool) {
	if c.presence == nil {
		return nil, false
	}
	return &PresenceChannel{c}, true
}

// Members returns the current member list, ordered by arrival.
func (p *PresenceChannel) Members() []Member {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Member(nil), p.presence.members...)
}

// MyID returns the connected user's id on this channel, set from the
// channel_data returned during authorization.
func (p *PresenceChannel) MyID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presence.myID
}

// FindMember returns the member with the given user id.
func (p *PresenceChannel) FindMember(userID string) (Member, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.presence.members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// Me returns the connected user's member entry.
func (p *PresenceChannel) Me() (Member, bool) {
	id := p.MyID()
	if id == "" {
		return Member{}, false
	}
	return p.FindMember(id)
}

// OnMemberAdded sets the hook called when a member joins.
func (p *PresenceChannel) OnMemberAdded(f func(Member)) {
	p.mu.Lock()
	p.presence.onMemberAdded = f
	p.mu.Unlock()
}

// OnMemberRemoved sets the hook called when a member leaves.
func (p *PresenceChannel) OnMemberRemoved(f func(Member)) {
	p.mu.Lock()
	p.presence.onMemberRemoved = f
	p.mu.Unlock()
}

// addMember records a member from a member_added event and fires the hook.
func (p *PresenceChannel) addMember(memberJSON map[string]interface{}) {
	member := Member{
		UserID:   coerceUserID(memberJSON[jsonKeyUserID]),
		UserInfo: memberJSON[jsonKeyUserInfo],
	}
	p.mu.Lock()
	p.presence.members = append(p.presence.members, member)
	added := p.presence.onMemberAdded
	p.mu.Unlock()
	if added != nil {
		added(member)
	}
}

// addExistingMembers seeds the member list from the hash in a
// subscription-succeeded payload.
func (p *PresenceChannel) addExistingMembers(hash map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, userInfo := range hash {
		p.presence.members = append(p.presence.members, Member{UserID: userID, UserInfo: userInfo})
	}
}

// removeMember drops a member recorded from a member_removed event and fires
// the hook.
func (p *PresenceChannel) removeMember(memberJSON map[string]interface{}) {
	id := coerceUserID(memberJSON[jsonKeyUserID])
	p.mu.Lock()
	var removed *Member
	for i, m := range p.presence.members {
		if m.UserID == id {
			member := m
			removed = &member
			p.presence.members = append(p.presence.members[:i], p.presence.members[i+1:]...)
			break
		}
	}
	hook := p.presence.onMemberRemoved
	p.mu.Unlock()
	if removed != nil && hook != nil {
		hook(*removed)
	}
}

// setMyUserID records the connected user's id from the channel_data string
// returned by authorization.
func (p *PresenceChannel) setMyUserID(channelData string) {
	parsed, err := parseFrame(channelData)
	if err != nil {
		log.WithField("channel", p.Name).Debug("could not parse channel_data")
		return
	}
	if id, ok := parsed[jsonKeyUserID]; ok {
		p.mu.Lock()
		p.presence.myID = coerceUserID(id)
		p.mu.Unlock()
	}
}

// coerceUserID stringifies a user id. Servers may encode ids as JSON numbers
// or strings; lookups must succeed regardless.
func coerceUserID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case nil:
		return ""
	default:
		return dataToString(id)
	}
}
