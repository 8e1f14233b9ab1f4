package websocket

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

type Client struct {
	ID          string
	UserID      string
	DeviceID    string
	Collections map[string]bool
	Conn        *websocket.Conn
	Manager     *Manager
	Send        chan []byte
}

func NewClient(id, userID, deviceID string, collections []string, conn *websocket.Conn, manager *Manager) *Client {
	var filter map[string]bool
	if len(collections) > 0 {
		filter = make(map[string]bool, len(collections))
		for _, c := range collections {
			filter[c] = true
		}
	}
	return &Client{
		ID:          id,
		UserID:      userID,
		DeviceID:    deviceID,
		Collections: filter,
		Conn:        conn,
		Manager:     manager,
		Send:        make(chan []byte, 256),
	}
}

// WantsCollection reports whether this connection subscribed to the given
// collection. A client with no filter receives everything.
func (c *Client) WantsCollection(collection string) bool {
	if c.Collections == nil || collection == "" {
		return true
	}
	return c.Collections[collection]
}

func (c *Client) ReadPump() {
	defer func() {
		c.Manager.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}

		c.Manager.HandleMessage <- &ClientMessage{
			Client:  c,
			Message: message,
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Manager.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
