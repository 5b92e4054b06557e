package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection under key and pumps until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, key string) {
	client := &Client{Hub: hub, Conn: c, Key: key, Send: make(chan []byte, sendBuffer)}
	select {
	case hub.register <- client:
	case <-hub.done:
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
