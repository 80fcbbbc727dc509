package registry

import (
	"sync"

	"github.com/gorilla/websocket"
)

// envelope is the frame format on the realtime channel: an event name plus
// an arbitrary JSON payload, mirroring the socket event contract clients use.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// WSChannel adapts a gorilla websocket connection to the Channel interface.
// The mutex serializes writes; gorilla connections allow one writer at a time.
type WSChannel struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

func (c *WSChannel) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(envelope{Event: event, Data: payload})
}

func (c *WSChannel) Close() error {
	return c.conn.Close()
}
