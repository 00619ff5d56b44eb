package delivery

import "sync"

// Ledger is the sender-side view of its own messages. Status events can
// arrive duplicated or out of order; Apply only ever moves a message forward,
// so the displayed state never regresses.
type Ledger struct {
	mu       sync.Mutex
	statuses map[string]Status
}

func NewLedger() *Ledger {
	return &Ledger{statuses: make(map[string]Status)}
}

// Apply records status for id and reports whether the displayed state
// changed.
func (l *Ledger) Apply(id string, status Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !status.Advances(l.statuses[id]) {
		return false
	}
	l.statuses[id] = status
	return true
}

// Status returns the furthest state seen for id, StatusUnknown if none.
func (l *Ledger) Status(id string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statuses[id]
}
