package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/websocket"
)

// MockBlobStore is an in-memory domain.BlobStore. Refs are the keys.
type MockBlobStore struct {
	Blobs map[string][]byte
	// PutFn and GetFn replace the default behaviour when set
	PutFn func(ctx context.Context, key string, data []byte, contentType string) (string, error)
	GetFn func(ctx context.Context, ref string) ([]byte, error)
	mu    sync.Mutex
}

// NewMockBlobStore creates a new MockBlobStore
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{Blobs: make(map[string][]byte)}
}

// Put stores data under key
func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if m.PutFn != nil {
		return m.PutFn(ctx, key, data, contentType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blobs[key] = append([]byte(nil), data...)
	return key, nil
}

// Get returns the data stored under ref
func (m *MockBlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, ref)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Blobs[ref]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

// Keys returns the stored keys
func (m *MockBlobStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.Blobs))
	for k := range m.Blobs {
		keys = append(keys, k)
	}
	return keys
}

// SentMessage is a message captured by MockNotifier
type SentMessage struct {
	Recipient string
	Subject   string
	Body      string
}

// MockNotifier captures sent notifications
type MockNotifier struct {
	Sent []SentMessage
	Err  error
	mu   sync.Mutex
}

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send records the message, or fails with Err
func (m *MockNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

// Messages returns the captured messages
func (m *MockNotifier) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// MockTriggerGuard is a domain.TriggerGuard that claims each key once
type MockTriggerGuard struct {
	Claimed map[string]bool
	Err     error
	mu      sync.Mutex
}

// NewMockTriggerGuard creates a new MockTriggerGuard
func NewMockTriggerGuard() *MockTriggerGuard {
	return &MockTriggerGuard{Claimed: make(map[string]bool)}
}

// Acquire returns true for the first call per key; ttl is ignored
func (m *MockTriggerGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Claimed[key] {
		return false, nil
	}
	m.Claimed[key] = true
	return true, nil
}

// PublishedEvent is an event captured by MockEventPublisher
type PublishedEvent struct {
	TenantID int32
	Event    websocket.Event
}

// MockEventPublisher captures published websocket events
type MockEventPublisher struct {
	Events []PublishedEvent
	mu     sync.Mutex
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records the event
func (m *MockEventPublisher) Publish(tenantID int32, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{TenantID: tenantID, Event: event})
}

// Types returns the captured event types in order
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.Events))
	for i, e := range m.Events {
		types[i] = e.Event.Type
	}
	return types
}
