package domain

import (
	"context"
	"time"
)

// TxManager runs fn inside a single store transaction. Repositories called with
// the ctx passed to fn join that transaction; nested calls join the outer one.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// BlobStore holds receipts and generated report artifacts
type BlobStore interface {
	// Put stores data under key and returns the reference to retrieve it
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get returns ErrBlobNotFound when ref does not exist
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Notifier delivers a message to a human recipient
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// TriggerGuard drops duplicate deliveries of a scheduled trigger.
// Acquire returns true only for the first caller of key within ttl.
type TriggerGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
