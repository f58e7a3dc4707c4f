// Package gorillaws implements wsconn.Conn, wsconn.Dialer and wsconn.Server
// on top of gorilla/websocket, supporting an arbitrary number of
// concurrent connections since a signalling server fans out to every
// node in the mesh rather than to a single peer.
package gorillaws

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/signalmesh/core/internal/wsconn"
)

// conn wraps a *websocket.Conn, translating its blocking read loop into
// wsconn.Event callbacks and serializing writes behind a mutex, since
// gorilla/websocket permits only one concurrent writer per connection.
type conn struct {
	raw *websocket.Conn

	writeMu sync.Mutex

	cbMu sync.Mutex
	cb   func(wsconn.Event)

	closeOnce sync.Once
}

func newConn(raw *websocket.Conn) *conn {
	return &conn{raw: raw}
}

func (c *conn) SetMessageCallback(fn func(wsconn.Event)) {
	c.cbMu.Lock()
	c.cb = fn
	c.cbMu.Unlock()
	go c.readLoop()
}

func (c *conn) emit(ev wsconn.Event) {
	c.cbMu.Lock()
	fn := c.cb
	c.cbMu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (c *conn) readLoop() {
	c.emit(wsconn.Event{Kind: wsconn.EventOpened})
	for {
		_, data, err := c.raw.ReadMessage()
		if err != nil {
			c.emit(wsconn.Event{Kind: wsconn.EventClosed})
			return
		}
		c.emit(wsconn.Event{Kind: wsconn.EventMessage, Text: string(data)})
	}
}

func (c *conn) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.raw.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("gorillaws: write: %w", err)
	}
	return nil
}

func (c *conn) RemoteLabel() string {
	return c.raw.RemoteAddr().String()
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.raw.Close()
	})
	return err
}

// Dialer opens client-side connections.
type Dialer struct{}

// NewDialer returns a Dialer using gorilla's default dial settings.
func NewDialer() *Dialer { return &Dialer{} }

func (d *Dialer) Dial(url string) (wsconn.Conn, error) {
	raw, _, err := websocket.DefaultDialer.DialContext(context.Background(), url, nil)
	if err != nil {
		return nil, fmt.Errorf("gorillaws: dial: %w", err)
	}
	return newConn(raw), nil
}
