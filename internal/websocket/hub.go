package websocket

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultMaxClientsPerTenant caps concurrent dashboard connections per tenant
const DefaultMaxClientsPerTenant = 50

var (
	// ErrClientClosed is returned when attempting to send to a closed client
	ErrClientClosed = errors.New("client is closed")
	// ErrSendBufferFull is returned when a client is too slow to drain its queue
	ErrSendBufferFull = errors.New("client send buffer full")
	// ErrTenantFull is returned by Register once a tenant reaches its connection cap
	ErrTenantFull = errors.New("too many live connections for tenant")

	ErrUnknownEntity = errors.New("unknown entity")
)

// ClientInterface defines the interface that clients must implement.
// Send must not block.
type ClientInterface interface {
	ID() string
	TenantID() int32
	Wants(entity EntityType) bool
	Send(data []byte) error
	Close() error
}

// tenantStream is one tenant's connected clients and its event sequence
type tenantStream struct {
	clients map[string]ClientInterface
	seq     uint64
}

// Hub fans ledger events out to each tenant's dashboards. Every event gets
// the next per-tenant sequence number and clients receive them in that order;
// a client that cannot keep up is disconnected so it reloads instead of
// showing balances built from a partial stream.
type Hub struct {
	tenants    map[int32]*tenantStream
	maxClients int
	mu         sync.Mutex
}

// NewHub creates a Hub with DefaultMaxClientsPerTenant
func NewHub() *Hub {
	return NewHubWithLimit(DefaultMaxClientsPerTenant)
}

// NewHubWithLimit creates a Hub; maxClients <= 0 means no cap
func NewHubWithLimit(maxClients int) *Hub {
	return &Hub{
		tenants:    make(map[int32]*tenantStream),
		maxClients: maxClients,
	}
}

// Register adds a client under its tenant. Fails with ErrTenantFull when the
// tenant already has maxClients connections.
func (h *Hub) Register(client ClientInterface) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	tenantID := client.TenantID()
	stream, ok := h.tenants[tenantID]
	if !ok {
		stream = &tenantStream{clients: make(map[string]ClientInterface)}
		h.tenants[tenantID] = stream
	}
	if h.maxClients > 0 && len(stream.clients) >= h.maxClients {
		return ErrTenantFull
	}
	stream.clients[client.ID()] = client

	log.Debug().
		Int32("tenant_id", tenantID).
		Str("client_id", client.ID()).
		Int("client_count", len(stream.clients)).
		Msg("WebSocket client registered")
	return nil
}

// Unregister removes a client from the hub. The tenant's sequence survives
// so reconnecting dashboards keep seeing increasing numbers.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if stream, ok := h.tenants[client.TenantID()]; ok {
		if _, exists := stream.clients[client.ID()]; exists {
			delete(stream.clients, client.ID())
			log.Debug().
				Int32("tenant_id", client.TenantID()).
				Str("client_id", client.ID()).
				Msg("WebSocket client unregistered")
		}
	}
}

// Broadcast stamps event with the tenant's next sequence number and queues it
// on every interested client of that tenant
func (h *Hub) Broadcast(tenantID int32, event Event) {
	h.mu.Lock()
	stream, ok := h.tenants[tenantID]
	if !ok || len(stream.clients) == 0 {
		h.mu.Unlock()
		return
	}

	stream.seq++
	event.Seq = stream.seq
	data, err := event.ToJSON()
	if err != nil {
		h.mu.Unlock()
		log.Error().
			Err(err).
			Int32("tenant_id", tenantID).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	// Queue under the lock so two broadcasts cannot interleave per client
	delivered := 0
	var dropped []ClientInterface
	for id, client := range stream.clients {
		if !client.Wants(event.Entity) {
			continue
		}
		if err := client.Send(data); err != nil {
			delete(stream.clients, id)
			dropped = append(dropped, client)
			log.Warn().
				Err(err).
				Int32("tenant_id", tenantID).
				Str("client_id", id).
				Uint64("seq", event.Seq).
				Msg("Dropping WebSocket client")
			continue
		}
		delivered++
	}
	h.mu.Unlock()

	for _, client := range dropped {
		client.Close()
	}

	log.Debug().
		Int32("tenant_id", tenantID).
		Str("event_type", event.Type).
		Uint64("seq", event.Seq).
		Int("client_count", delivered).
		Msg("Broadcast event")
}

// ClientCount returns the number of clients connected to a tenant
func (h *Hub) ClientCount(tenantID int32) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if stream, ok := h.tenants[tenantID]; ok {
		return len(stream.clients)
	}
	return 0
}

// TotalClientCount returns the total number of connected clients across all tenants
func (h *Hub) TotalClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, stream := range h.tenants {
		total += len(stream.clients)
	}
	return total
}
