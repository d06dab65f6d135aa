package websocket

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// pushMessage is the envelope for every event delivered over the channel.
type pushMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// wsChannel adapts one connection to the notifier.Channel contract. Gorilla
// connections allow a single concurrent writer, so sends are serialized.
type wsChannel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{conn: conn}
}

func (that *wsChannel) Send(event string, payload any) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.conn.WriteJSON(pushMessage{Event: event, Payload: payload}); err != nil {
		return fmt.Errorf("failed to write push message: %w", err)
	}

	return nil
}
