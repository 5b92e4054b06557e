package websocket

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait   = 10 * time.Second
	idleTimeout = 60 * time.Second
	pingEvery   = idleTimeout * 9 / 10
	// gateways never send payloads over the socket, only control frames
	readLimit  = 512
	sendBuffer = 256
)

// Client is one websocket connection. Key is the user id, or GatewayKey.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Key  string
	Send chan []byte
}

func (c *Client) leave() {
	select {
	case c.Hub.unregister <- c:
	case <-c.Hub.done:
	}
	c.Conn.Close()
}

func (c *Client) extendDeadline(string) error {
	return c.Conn.SetReadDeadline(time.Now().Add(idleTimeout))
}

func (c *Client) write(kind int, payload []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(kind, payload)
}

// readPump drains control frames until the peer goes away. Chat events come in
// through POST /api/events, not the socket.
func (c *Client) readPump() {
	defer c.leave()

	c.Conn.SetReadLimit(readLimit)
	c.extendDeadline("")
	c.Conn.SetPongHandler(c.extendDeadline)

	for {
		_, _, err := c.Conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.Hub.logger.Warn("Hub", "Websocket closed unexpectedly", map[string]interface{}{
				"key":   c.Key,
				"error": err.Error(),
			})
		}
		return
	}
}

// writePump owns every write on the connection. Each queued reply batch goes
// out as its own text frame.
func (c *Client) writePump() {
	keepAlive := time.NewTicker(pingEvery)
	defer keepAlive.Stop()
	defer c.Conn.Close()

	for {
		select {
		case batch, open := <-c.Send:
			if !open {
				c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(websocket.TextMessage, batch); err != nil {
				return
			}
		case <-keepAlive.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
