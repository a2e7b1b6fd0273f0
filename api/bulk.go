// File: api/bulk.go
// Package api defines Bulk, the unit of transfer between the ring engine
// and the forwarder boundary.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// BulkEntry pairs a buffer-pool slot with the byte length of its payload.
type BulkEntry struct {
	Slot SlotID
	Size uint32
}

// Bulk is an ordered sequence of (slot, size) pairs with a capacity equal
// to the engine's budget. Ownership of every slot id in a Bulk transfers
// along with it: rx_clean hands slots to the forwarder, the forwarder hands
// slots to tx_xmit (or releases them back to the pool directly); a slot id
// that is neither forwarded nor released is a leak.
type Bulk struct {
	entries []BulkEntry
}

// NewBulk allocates a Bulk with the given capacity (normally the engine's
// per-port budget).
func NewBulk(capacity int) *Bulk {
	return &Bulk{entries: make([]BulkEntry, 0, capacity)}
}

// Append adds an entry. Panics if capacity is exceeded: the ring engine
// never appends more than budget entries, so an overflow here indicates a
// caller bug, not a runtime condition to be tolerated.
func (b *Bulk) Append(slot SlotID, size uint32) {
	if len(b.entries) == cap(b.entries) {
		panic("bulk: append beyond capacity")
	}
	b.entries = append(b.entries, BulkEntry{Slot: slot, Size: size})
}

// Len reports the number of entries currently held.
func (b *Bulk) Len() int { return len(b.entries) }

// Cap reports the bulk's fixed capacity (the engine's budget).
func (b *Bulk) Cap() int { return cap(b.entries) }

// At returns the i-th entry.
func (b *Bulk) At(i int) BulkEntry { return b.entries[i] }

// Entries exposes the underlying slice for iteration.
func (b *Bulk) Entries() []BulkEntry { return b.entries }

// Reset clears the bulk but retains its capacity, for reuse across cycles.
func (b *Bulk) Reset() { b.entries = b.entries[:0] }
