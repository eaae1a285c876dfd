// Package state holds the per-chat conversation state: which multi-message
// input flow, if any, an operator is currently in.
package state

import (
	"context"
	"sync"
)

// State is the step of a conversation's input flow.
type State string

const (
	// Idle is the default for any identity that has no stored state.
	Idle State = "idle"
	// AwaitingWithdrawAddress captures the next text message as a
	// withdrawal destination address.
	AwaitingWithdrawAddress State = "awaiting_withdraw_address"
	// AwaitingPaymentQuery captures the next text message as a payment id
	// or address to look up.
	AwaitingPaymentQuery State = "awaiting_payment_query"
)

// Store maps chat identities to conversation states. Unknown identities are
// Idle. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, identity string) (State, error)
	Set(ctx context.Context, identity string, s State) error
	// Clear resets the identity to Idle.
	Clear(ctx context.Context, identity string) error
}

// MemoryStore is the default in-process Store. Conversations reset to Idle
// on restart; that loss is accepted.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Get(ctx context.Context, identity string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[identity]; ok {
		return s, nil
	}
	return Idle, nil
}

func (m *MemoryStore) Set(ctx context.Context, identity string, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == Idle {
		delete(m.states, identity)
	} else {
		m.states[identity] = s
	}
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, identity string) error {
	return m.Set(ctx, identity, Idle)
}
