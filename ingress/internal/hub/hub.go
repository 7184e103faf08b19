// Package hub provides connection management for WebSocket clients.
package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID      string
	Channel string
	Conn    *websocket.Conn
	Send    chan []byte
	hub     *Hub
	mu      sync.Mutex
}

// Hub manages all WebSocket connections and the channels they subscribe to.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Channels maps a channel to its set of connection IDs
	channels map[string]map[string]bool

	// Channels for registration/unregistration
	register   chan *Connection
	unregister chan *Connection

	// Publish channel for sending to a specific channel
	publish chan *ChannelMessage

	mu sync.RWMutex
}

// ChannelMessage is used to publish a message to a channel.
type ChannelMessage struct {
	Channel string
	Data    []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		channels:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		publish:     make(chan *ChannelMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()
			log.Printf("INFO: connection registered: %s", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				h.leave(conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Printf("INFO: connection unregistered: %s", conn.ID)

		case msg := <-h.publish:
			h.mu.RLock()
			for connID := range h.channels[msg.Channel] {
				conn, exists := h.connections[connID]
				if !exists {
					continue
				}
				select {
				case conn.Send <- msg.Data:
				default:
					log.Printf("WARN: connection %s buffer full, closing", connID)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection creates a new connection. Call Register to add it to the hub.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
		hub:  h,
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Subscribe moves a connection to channel.
func (h *Hub) Subscribe(conn *Connection, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(conn)
	conn.Channel = channel
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[string]bool)
	}
	h.channels[channel][conn.ID] = true
}

// leave removes conn from its channel. Callers hold h.mu.
func (h *Hub) leave(conn *Connection) {
	if conn.Channel == "" || h.channels[conn.Channel] == nil {
		return
	}
	delete(h.channels[conn.Channel], conn.ID)
	if len(h.channels[conn.Channel]) == 0 {
		delete(h.channels, conn.Channel)
	}
}

// Publish sends a message to all connections of a channel.
func (h *Hub) Publish(channel string, data []byte) {
	h.publish <- &ChannelMessage{
		Channel: channel,
		Data:    data,
	}
}

// PublishJSON sends a JSON message to all connections of a channel.
func (h *Hub) PublishJSON(channel string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Publish(channel, data)
	return nil
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// GetChannelCount returns the number of channels with subscribers.
func (h *Hub) GetChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// HasSubscribers checks if a channel has any active connections.
func (h *Hub) HasSubscribers(channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}
