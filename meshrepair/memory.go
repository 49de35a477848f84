package meshrepair

import (
	"sync"

	"github.com/pkg/errors"
)

// MemoryLedger tracks byte reservations against a budget shared by every
// repair running through one coordinator. A budget of zero means no limit.
type MemoryLedger struct {
	mu       sync.Mutex
	budget   uint64
	reserved uint64
}

// NewMemoryLedger returns a ledger enforcing the given budget in bytes.
func NewMemoryLedger(budget uint64) *MemoryLedger {
	return &MemoryLedger{budget: budget}
}

// Reserve claims bytes for an upcoming repair. It rejects, rather than
// waits, when the claim would push total reservations past the budget;
// callers retry later or pick a cheaper method.
func (l *MemoryLedger) Reserve(bytes uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.budget > 0 && l.reserved+bytes > l.budget {
		return errors.Wrapf(ErrMemoryBudgetExceeded,
			"requested %d bytes with %d of %d already reserved", bytes, l.reserved, l.budget)
	}
	l.reserved += bytes
	return nil
}

// Release returns bytes claimed by an earlier Reserve.
func (l *MemoryLedger) Release(bytes uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bytes > l.reserved {
		l.reserved = 0
		return
	}
	l.reserved -= bytes
}

// Reserved reports the bytes currently claimed.
func (l *MemoryLedger) Reserved() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved
}

// Budget reports the configured ceiling, zero meaning unlimited.
func (l *MemoryLedger) Budget() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.budget
}
