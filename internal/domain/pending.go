package domain

import "sync"

// PendingCalcs is the set of InstrumentIds whose portfolio calculations
// could not complete due to missing data (no price, no FX rate) — spec
// §3. Invariant: once `initialized` is true, PendingCalcs is empty.
//
// Guarded by a mutex for the same reason as netposition.Ledger: the
// admin HTTP surface reads PendingCalcs' size from a goroutine other
// than the bus dispatch loop.
type PendingCalcs struct {
	mu  sync.RWMutex
	set map[InstrumentID]struct{}
}

// NewPendingCalcs returns an empty PendingCalcs set.
func NewPendingCalcs() *PendingCalcs {
	return &PendingCalcs{set: make(map[InstrumentID]struct{})}
}

// Add enrolls id as pending.
func (p *PendingCalcs) Add(id InstrumentID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set[id] = struct{}{}
}

// Remove discards id from the pending set, if present.
func (p *PendingCalcs) Remove(id InstrumentID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.set, id)
}

// Contains reports whether id is currently pending.
func (p *PendingCalcs) Contains(id InstrumentID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.set[id]
	return ok
}

// IsEmpty reports whether there are no pending instruments.
func (p *PendingCalcs) IsEmpty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.set) == 0
}

// Len returns the number of pending instruments.
func (p *PendingCalcs) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.set)
}

// Snapshot returns a copy of the currently pending instruments.
func (p *PendingCalcs) Snapshot() []InstrumentID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]InstrumentID, 0, len(p.set))
	for id := range p.set {
		out = append(out, id)
	}
	return out
}

// Reset clears the pending set.
func (p *PendingCalcs) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set = make(map[InstrumentID]struct{})
}
