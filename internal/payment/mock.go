package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Mock is a scriptable in-memory Gateway for tests and local development.
// By default every settlement succeeds.
type Mock struct {
	mu sync.Mutex

	// FailWith, when non-empty, makes every settlement fail with the
	// given reason.
	FailWith string

	// Err, when set, is returned as a transport-level error.
	Err error

	settled atomic.Int64
	calls   []SettleCall
}

// SettleCall records the arguments of one Settle invocation.
type SettleCall struct {
	UserID    string
	Amount    int64
	MethodRef string
}

// NewMock creates a Mock gateway that approves everything.
func NewMock() *Mock {
	return &Mock{}
}

// Settle records the call and returns the scripted outcome.
func (m *Mock) Settle(ctx context.Context, userID string, amount int64, methodRef string) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SettleCall{UserID: userID, Amount: amount, MethodRef: methodRef})
	failWith := m.FailWith
	err := m.Err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if failWith != "" {
		return &Result{Success: false, Reason: failWith}, nil
	}

	n := m.settled.Add(1)
	return &Result{Success: true, Reference: fmt.Sprintf("mock-settlement-%d", n)}, nil
}

// Calls returns a copy of all recorded settlement calls.
func (m *Mock) Calls() []SettleCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SettleCall, len(m.calls))
	copy(out, m.calls)
	return out
}
