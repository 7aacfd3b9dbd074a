package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait is time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// pongWait is time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// pingPeriod is the interval for sending pings (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is maximum message size allowed from peer
	maxMessageSize = 512
)

// subscribeMessage narrows the entities a client hears about.
// An empty list restores the default of every entity.
type subscribeMessage struct {
	Subscribe []EntityType `json:"subscribe"`
}

var knownEntities = map[EntityType]bool{
	EntityTypeFee:     true,
	EntityTypeExpense: true,
	EntityTypeFund:    true,
	EntityTypeClosing: true,
}

// parseSubscription decodes an inbound frame
func parseSubscription(data []byte) (map[EntityType]bool, error) {
	var msg subscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return entitySet(msg.Subscribe)
}

// ParseEntities reads a comma separated entity list such as "fee,closing".
// Unknown entities are an error so a typo does not silently mute the client.
func ParseEntities(list string) (map[EntityType]bool, error) {
	var entities []EntityType
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			entities = append(entities, EntityType(part))
		}
	}
	return entitySet(entities)
}

func entitySet(entities []EntityType) (map[EntityType]bool, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	set := make(map[EntityType]bool, len(entities))
	for _, e := range entities {
		if !knownEntities[e] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, e)
		}
		set[e] = true
	}
	return set, nil
}

// Client represents a single WebSocket connection
type Client struct {
	id        string
	tenantID  int32
	conn      *websocket.Conn
	hub       *Hub
	send      chan []byte
	closed    bool
	entities  map[EntityType]bool
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, tenantID int32, hub *Hub) *Client {
	return &Client{
		id:       uuid.New().String(),
		tenantID: tenantID,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
	}
}

// ID returns the client's unique identifier
func (c *Client) ID() string {
	return c.id
}

// TenantID returns the client's tenant ID
func (c *Client) TenantID() int32 {
	return c.tenantID
}

// Wants reports whether events about entity should reach this client
func (c *Client) Wants(entity EntityType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entities == nil || c.entities[entity]
}

// Subscribe replaces the client's entity filter; nil means every entity
func (c *Client) Subscribe(entities map[EntityType]bool) {
	c.mu.Lock()
	c.entities = entities
	c.mu.Unlock()
}

// Send queues a message to be sent to the client
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close closes the client connection
// Safe to call multiple times from different goroutines
func (c *Client) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		closeErr = c.conn.Close()
	})
	return closeErr
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// ReadPump pumps messages from the WebSocket connection
// This should be run in a goroutine
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Int32("tenant_id", c.tenantID).
					Msg("WebSocket unexpected close")
			}
			break
		}

		entities, err := parseSubscription(data)
		if err != nil {
			log.Debug().
				Err(err).
				Str("client_id", c.id).
				Msg("Ignoring malformed subscription")
			continue
		}
		c.Subscribe(entities)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
// This should be run in a goroutine
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed, hub closed this client
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Int32("tenant_id", c.tenantID).
					Msg("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
