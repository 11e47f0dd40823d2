package channels

import (
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WebsocketConnection is the transport contract the connection drives. A
// transport is reusable: Connect may be called again after a disconnect.
type WebsocketConnection interface {
	// Connect dials asynchronously; the outcome arrives on the delegate.
	Connect()
	// Send writes a text frame.
	Send(msg string)
	// Ping writes a ping control frame.
	Ping()
	// Disconnect closes the connection with the given close code.
	Disconnect(code int)
	// SetDelegate installs the callback receiver. Must be called before
	// Connect.
	SetDelegate(d WebsocketDelegate)
}

// WebsocketDelegate receives transport-level callbacks. Callbacks arrive on
// transport-owned goroutines.
type WebsocketDelegate interface {
	WebsocketDidConnect()
	WebsocketDidDisconnect(code int, reason string)
	WebsocketDidReceiveMessage(msg string)
	WebsocketDidReceivePong()
	WebsocketDidError(err error)
}

const dialTimeout = 10 * time.Second

// Websocket is the gorilla/websocket implementation of
// WebsocketConnection.
type Websocket struct {
	URL      string
	ID       string
	delegate WebsocketDelegate

	mu      sync.Mutex // guards conn and writes
	conn    *websocket.Conn
	closing bool
}

// NewWebsocket returns a transport that will dial the given ws:// or wss://
// URL.
func NewWebsocket(urlStr string) *Websocket {
	return &Websocket{
		URL: urlStr,
		ID:  uuid.New().String()[0:6],
	}
}

// SetDelegate implements WebsocketConnection.
func (w *Websocket) SetDelegate(d WebsocketDelegate) {
	w.delegate = d
}

// Connect implements WebsocketConnection. It dials once; a failed dial is
// reported as an error followed by a disconnect with no close code, which
// lets the state machine drive any retry.
func (w *Websocket) Connect() {
	go w.dial()
}

func (w *Websocket) dial() {
	id := "websocket.dial(" + w.ID + ")"

	u, err := url.Parse(w.URL)
	if err != nil {
		log.WithField("error", err).Errorf("%s: bad url", id)
		w.delegate.WebsocketDidError(err)
		w.delegate.WebsocketDidDisconnect(0, err.Error())
		return
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		err := errors.New("url scheme must be ws or wss")
		log.Errorf("%s: %s", id, err.Error())
		w.delegate.WebsocketDidError(err)
		w.delegate.WebsocketDidDisconnect(0, err.Error())
		return
	}

	log.WithField("to", u.Host).Tracef("%s: connecting", id)

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(w.URL, nil)
	if err != nil {
		log.WithField("error", err).Errorf("%s: dialing error", id)
		w.delegate.WebsocketDidError(err)
		w.delegate.WebsocketDidDisconnect(0, err.Error())
		return
	}

	conn.SetPongHandler(func(string) error {
		w.delegate.WebsocketDidReceivePong()
		return nil
	})

	w.mu.Lock()
	w.conn = conn
	w.closing = false
	w.mu.Unlock()

	log.WithField("to", u.Host).Tracef("%s: connected", id)
	w.delegate.WebsocketDidConnect()

	w.readLoop(conn, id)
}

func (w *Websocket) readLoop(conn *websocket.Conn, id string) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			code, reason := closeDetail(err)
			log.WithFields(log.Fields{"error": err, "code": code}).Infof("%s: read finished; closing", id)

			w.mu.Lock()
			if w.conn == conn {
				w.conn = nil
			}
			w.mu.Unlock()
			conn.Close()

			w.delegate.WebsocketDidDisconnect(code, reason)
			return
		}
		if mt == websocket.TextMessage {
			log.Tracef("%s: received %d-byte message", id, len(data))
			w.delegate.WebsocketDidReceiveMessage(string(data))
		}
	}
}

// closeDetail extracts the close code and reason the server supplied, if
// any. Local closes and network failures have no code.
func closeDetail(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return 0, err.Error()
}

// Send implements WebsocketConnection.
func (w *Websocket) Send(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		log.Tracef("websocket(%s): dropping %d-byte send, not connected", w.ID, len(msg))
		return
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		log.WithField("error", err).Infof("websocket(%s): error writing to conn", w.ID)
	}
}

// Ping implements WebsocketConnection.
func (w *Websocket) Ping() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return
	}
	deadline := time.Now().Add(5 * time.Second)
	if err := w.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
		log.WithField("error", err).Infof("websocket(%s): error writing ping", w.ID)
	}
}

// Disconnect implements WebsocketConnection. It sends a close frame and
// closes the underlying connection; the read loop then reports the
// disconnect to the delegate.
func (w *Websocket) Disconnect(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil || w.closing {
		return
	}
	w.closing = true
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(code, "")
	if err := w.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		log.WithField("error", err).Infof("websocket(%s): error sending close message", w.ID)
	}
	w.conn.Close()
}
