package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient captures frames instead of writing to a socket
type recordingClient struct {
	id       string
	tenantID int32
	entities map[EntityType]bool

	mu       sync.Mutex
	messages [][]byte
	closed   bool
	// capacity > 0 makes Send fail once that many messages are queued
	capacity int
}

func newRecordingClient(id string, tenantID int32, entities ...EntityType) *recordingClient {
	c := &recordingClient{id: id, tenantID: tenantID}
	if len(entities) > 0 {
		c.entities = make(map[EntityType]bool)
		for _, e := range entities {
			c.entities[e] = true
		}
	}
	return c
}

func (r *recordingClient) ID() string      { return r.id }
func (r *recordingClient) TenantID() int32 { return r.tenantID }

func (r *recordingClient) Wants(entity EntityType) bool {
	return r.entities == nil || r.entities[entity]
}

func (r *recordingClient) Send(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClientClosed
	}
	if r.capacity > 0 && len(r.messages) >= r.capacity {
		return ErrSendBufferFull
	}
	r.messages = append(r.messages, data)
	return nil
}

func (r *recordingClient) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recordingClient) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recordingClient) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recordingClient) events(t *testing.T) []Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, m := range r.messages {
		var evt Event
		require.NoError(t, json.Unmarshal(m, &evt))
		out = append(out, evt)
	}
	return out
}

func (r *recordingClient) types(t *testing.T) []string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.messages {
		var evt Event
		require.NoError(t, json.Unmarshal(m, &evt))
		out = append(out, evt.Type)
	}
	return out
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	a := newRecordingClient("a", 1)
	b := newRecordingClient("b", 1)
	c := newRecordingClient("c", 2)

	require.NoError(t, hub.Register(a))
	require.NoError(t, hub.Register(b))
	require.NoError(t, hub.Register(c))
	assert.Equal(t, 2, hub.ClientCount(1))
	assert.Equal(t, 1, hub.ClientCount(2))
	assert.Equal(t, 3, hub.TotalClientCount())

	hub.Unregister(a)
	hub.Unregister(b)
	assert.Equal(t, 0, hub.ClientCount(1))
	assert.Equal(t, 1, hub.TotalClientCount())

	require.NotPanics(t, func() { hub.Unregister(a) })
}

func TestHub_Broadcast_StaysInTenant(t *testing.T) {
	hub := NewHub()
	own1 := newRecordingClient("own-1", 1)
	own2 := newRecordingClient("own-2", 1)
	other := newRecordingClient("other", 2)
	require.NoError(t, hub.Register(own1))
	require.NoError(t, hub.Register(own2))
	require.NoError(t, hub.Register(other))

	hub.Broadcast(1, FeePaid(map[string]interface{}{"id": 42}))

	assert.Equal(t, 1, own1.count())
	assert.Equal(t, 1, own2.count())
	assert.Equal(t, 0, other.count())
}

func TestHub_Broadcast_EntityFilter(t *testing.T) {
	hub := NewHub()
	treasurer := newRecordingClient("treasurer", 1, EntityTypeFee, EntityTypeFund)
	board := newRecordingClient("board", 1, EntityTypeClosing)
	everything := newRecordingClient("everything", 1)
	require.NoError(t, hub.Register(treasurer))
	require.NoError(t, hub.Register(board))
	require.NoError(t, hub.Register(everything))

	hub.Broadcast(1, FeePaid(nil))
	hub.Broadcast(1, ExpenseCreated(nil))
	hub.Broadcast(1, ClosingGenerated(nil))

	assert.Equal(t, []string{"fee.paid", "expense.created", "closing.generated"}, everything.types(t))
	assert.Equal(t, []string{"fee.paid"}, treasurer.types(t))
	assert.Equal(t, []string{"closing.generated"}, board.types(t))
}

func TestHub_Broadcast_ClosedClientIsDropped(t *testing.T) {
	hub := NewHub()
	gone := newRecordingClient("gone", 1)
	live := newRecordingClient("live", 1)
	require.NoError(t, hub.Register(gone))
	require.NoError(t, hub.Register(live))
	require.NoError(t, gone.Close())

	hub.Broadcast(1, FundTransferred(nil))

	assert.Equal(t, 1, live.count())
	assert.Equal(t, 0, gone.count())
	assert.Equal(t, 1, hub.ClientCount(1))
}

func TestHub_Broadcast_SlowClientIsDisconnected(t *testing.T) {
	hub := NewHub()
	slow := newRecordingClient("slow", 1)
	slow.capacity = 2
	fast := newRecordingClient("fast", 1)
	require.NoError(t, hub.Register(slow))
	require.NoError(t, hub.Register(fast))

	for i := 0; i < 4; i++ {
		hub.Broadcast(1, FeePaid(map[string]interface{}{"id": i}))
	}

	assert.Equal(t, 4, fast.count())
	assert.Equal(t, 2, slow.count())
	assert.True(t, slow.isClosed())
	assert.Equal(t, 1, hub.ClientCount(1))
}

func TestHub_Broadcast_SequencePerTenant(t *testing.T) {
	hub := NewHub()
	a := newRecordingClient("a", 1)
	feesOnly := newRecordingClient("fees-only", 1, EntityTypeFee)
	b := newRecordingClient("b", 2)
	require.NoError(t, hub.Register(a))
	require.NoError(t, hub.Register(feesOnly))
	require.NoError(t, hub.Register(b))

	hub.Broadcast(1, FeePaid(nil))
	hub.Broadcast(1, ExpenseCreated(nil))
	hub.Broadcast(2, FundTransferred(nil))
	hub.Broadcast(1, FeesGenerated(nil))

	seqs := func(events []Event) []uint64 {
		var out []uint64
		for _, e := range events {
			out = append(out, e.Seq)
		}
		return out
	}
	assert.Equal(t, []uint64{1, 2, 3}, seqs(a.events(t)))
	// A filtered client sees the gap where the expense event was
	assert.Equal(t, []uint64{1, 3}, seqs(feesOnly.events(t)))
	assert.Equal(t, []uint64{1}, seqs(b.events(t)))

	// Reconnecting does not restart the sequence
	hub.Unregister(a)
	hub.Unregister(feesOnly)
	again := newRecordingClient("again", 1)
	require.NoError(t, hub.Register(again))
	hub.Broadcast(1, FeePaid(nil))
	assert.Equal(t, []uint64{4}, seqs(again.events(t)))
}

func TestHub_Register_TenantCap(t *testing.T) {
	hub := NewHubWithLimit(2)
	require.NoError(t, hub.Register(newRecordingClient("a", 1)))
	require.NoError(t, hub.Register(newRecordingClient("b", 1)))

	assert.ErrorIs(t, hub.Register(newRecordingClient("c", 1)), ErrTenantFull)
	assert.Equal(t, 2, hub.ClientCount(1))

	// Other tenants have their own cap
	assert.NoError(t, hub.Register(newRecordingClient("d", 2)))

	unlimited := NewHubWithLimit(0)
	for i := 0; i < DefaultMaxClientsPerTenant+1; i++ {
		require.NoError(t, unlimited.Register(newRecordingClient(fmt.Sprintf("c-%d", i), 1)))
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	const n = 50

	clients := make([]*recordingClient, n)
	for i := range clients {
		clients[i] = newRecordingClient(fmt.Sprintf("c-%d", i), int32(i%5))
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *recordingClient) {
			defer wg.Done()
			assert.NoError(t, hub.Register(c))
		}(c)
	}
	wg.Wait()
	assert.Equal(t, n, hub.TotalClientCount())

	for i, c := range clients {
		wg.Add(2)
		go func(tenant int32) {
			defer wg.Done()
			hub.Broadcast(tenant, FeePaid(nil))
		}(int32(i % 5))
		go func(c *recordingClient) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_BroadcastToEmptyTenant(t *testing.T) {
	hub := NewHub()
	require.NotPanics(t, func() {
		hub.Broadcast(999, FeePaid(nil))
	})
}

func TestParseSubscription(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    map[EntityType]bool
		wantErr bool
	}{
		{"subset", `{"subscribe":["fee","closing"]}`, map[EntityType]bool{EntityTypeFee: true, EntityTypeClosing: true}, false},
		{"empty resets", `{"subscribe":[]}`, nil, false},
		{"missing key resets", `{}`, nil, false},
		{"unknown entity", `{"subscribe":["fee","loan"]}`, nil, true},
		{"not json", `ping`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSubscription([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseSubscription([]byte(`{"subscribe":["wishlist"]}`))
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestClient_Wants(t *testing.T) {
	c := &Client{}
	assert.True(t, c.Wants(EntityTypeExpense))

	c.Subscribe(map[EntityType]bool{EntityTypeFund: true})
	assert.True(t, c.Wants(EntityTypeFund))
	assert.False(t, c.Wants(EntityTypeExpense))

	c.Subscribe(nil)
	assert.True(t, c.Wants(EntityTypeExpense))
}

func TestParseEntities(t *testing.T) {
	got, err := ParseEntities(" fee, closing ,")
	require.NoError(t, err)
	assert.Equal(t, map[EntityType]bool{EntityTypeFee: true, EntityTypeClosing: true}, got)

	got, err = ParseEntities("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseEntities("fee,budget")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}
