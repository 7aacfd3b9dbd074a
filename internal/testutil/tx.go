package testutil

import (
	"context"
	"sync"
)

type txKey struct{}

type memTx struct {
	undo []func()
}

// MemoryTxManager is an in-memory domain.TxManager. Transactions are
// serialized; when fn fails every change the mock repositories recorded
// through the transaction context is undone in reverse order.
type MemoryTxManager struct {
	mu        sync.Mutex
	Commits   int
	Rollbacks int
}

// NewMemoryTxManager creates a new MemoryTxManager
func NewMemoryTxManager() *MemoryTxManager {
	return &MemoryTxManager{}
}

// WithinTx runs fn in a transaction, joining an outer one if ctx already carries it
func (m *MemoryTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

// onRollback registers an undo step on the transaction carried by ctx.
// Outside a transaction the change is permanent.
func onRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}
