// File: api/buffer.go
// Package api defines the slot-indexed buffer pool contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// SlotID identifies one buffer-pool slot in [0, count). A slot never
// appears in more than one place at a time: the free list, some ring's
// slot_index[d] for a descriptor the NIC currently owns, or inside a Bulk.
type SlotID int

// BufferPool is the per-worker slab of fixed-size packet buffers, huge-page
// backed and DMA-mapped into every NIC the worker touches. Pool exhaustion
// is back-pressure, not failure: Assign returns ok=false instead of an error.
type BufferPool interface {
	// Assign pops a slot id from the free list. ok is false when exhausted.
	Assign() (slot SlotID, ok bool)

	// Release returns a slot id to the free list. Releasing an id that is
	// already free is a caller bug (double-release), not tolerated silently.
	Release(slot SlotID)

	// BusAddr returns the DMA bus address of slot for the given NIC index,
	// i.e. addr_dma[nicIdx] + slot*buf_size.
	BusAddr(slot SlotID, nicIdx int) uint64

	// VirtAddr returns the byte slice backing slot, length buf_size.
	VirtAddr(slot SlotID) []byte

	// Stats reports pool occupancy for diagnostics.
	Stats() BufferPoolStats
}

// BufferPoolStats summarizes pool usage.
type BufferPoolStats struct {
	Count     int
	FreeCount int
	BufSize   int
}
