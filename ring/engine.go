// File: ring/engine.go
// Package ring implements the ring engine (component E): rx_refill,
// rx_clean, tx_xmit and tx_clean over one port's Rx/Tx descriptor rings.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ring

import (
	"log"

	"github.com/momentics/ixmap-go/api"
	"github.com/momentics/ixmap-go/descring"
	"github.com/momentics/ixmap-go/mmio"
)

// MaxDataPerTxD is the largest payload one advanced Tx descriptor can carry
// in its length field. Scatter-gather across more than one Tx descriptor
// per packet is out of scope, so any packet larger than this is dropped by
// TxXmit rather than split.
const MaxDataPerTxD = 1 << 14

// txCmd is the fixed cmd_type_len flag set every Tx descriptor uses: a
// single-segment advanced data descriptor requesting FCS insertion and a
// writeback status report.
const txCmd = descring.TxCmdDTYP | descring.TxCmdDEXT | descring.TxCmdIFCS | descring.TxCmdEOP | descring.TxCmdRS

// Engine drives one port's Rx and Tx rings against a single buffer pool.
// It is not safe for concurrent use: the worker goroutine that owns a port
// calls all four methods from its single event loop.
type Engine struct {
	Window *mmio.Window
	Rx     *descring.Ring
	Tx     *descring.Ring
	Pool   api.BufferPool
	NicIdx int // this port's index into Pool's per-NIC bus-address array

	// Logger receives the original driver's "frame error detected"
	// diagnostic. Defaults to log.Default() when nil.
	Logger *log.Logger

	CountRxAllocFailed  uint64
	CountRxCleanTotal   uint64
	CountRxFrameErrors  uint64
	CountTxXmitFailed   uint64
	CountTxCleanTotal   uint64
}

func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func nextIndex(i, numDesc uint16) uint16 {
	i++
	if i < numDesc {
		return i
	}
	return 0
}

// RxRefill assigns free buffer-pool slots to unused Rx descriptors and
// publishes their bus addresses, advancing next_to_use and the tail
// register. Pool exhaustion ends the refill early rather than failing:
// back-pressure, not an error.
func (e *Engine) RxRefill() (refilled int) {
	ring := e.Rx
	maxAlloc := ring.Unused()

	for refilled < int(maxAlloc) {
		slot, ok := e.Pool.Assign()
		if !ok {
			e.CountRxAllocFailed += uint64(int(maxAlloc) - refilled)
			break
		}

		ntu := ring.NextToUse
		ring.SlotIndex[ntu] = int32(slot)

		desc := ring.Rx(ntu)
		desc.SetPktAddr(e.Pool.BusAddr(slot, e.NicIdx))
		desc.SetHdrAddr(0)

		ring.NextToUse = nextIndex(ntu, ring.NumDesc())
		refilled++
	}

	if refilled > 0 {
		mmio.Wmb()
		e.Window.WriteReg(ring.TailOffset, uint32(ring.NextToUse))
	}
	return refilled
}

// RxClean drains completed Rx descriptors into bulk, up to bulk's capacity,
// stopping at the first descriptor whose DD bit is not yet set.
func (e *Engine) RxClean(bulk *api.Bulk) int {
	ring := e.Rx
	bulk.Reset()
	count := 0

	for count < bulk.Cap() {
		if ring.NextToClean == ring.NextToUse {
			break
		}

		desc := ring.Rx(ring.NextToClean)
		if !desc.DD() {
			break
		}
		mmio.Rmb()

		if desc.FrameError() {
			e.CountRxFrameErrors++
			e.logger().Printf("ring: frame error detected on nic %d", e.NicIdx)
		}

		slot := ring.SlotIndex[ring.NextToClean]
		ring.SlotIndex[ring.NextToClean] = -1
		bulk.Append(api.SlotID(slot), uint32(desc.Length()))

		ring.NextToClean = nextIndex(ring.NextToClean, ring.NumDesc())
		count++
	}

	e.CountRxCleanTotal += uint64(count)
	return count
}

// TxXmit publishes as many of bulk's entries as fit in the ring's unused
// descriptor count. An oversize entry (longer than MaxDataPerTxD) is
// dropped — its slot released back to the pool and a failure counted —
// rather than retried forever: the original driver's `continue` on this
// path re-examined the same entry without advancing, hanging the worker.
// Entries that don't fit because the ring is full are dropped the same way.
func (e *Engine) TxXmit(bulk *api.Bulk) (xmitted, dropped int) {
	ring := e.Tx
	n := bulk.Len()
	if n == 0 {
		return 0, 0
	}

	unused := int(ring.Unused())
	i := 0
	for ; i < n && xmitted < unused; i++ {
		entry := bulk.At(i)
		if entry.Size > MaxDataPerTxD {
			e.Pool.Release(entry.Slot)
			dropped++
			continue
		}

		ntu := ring.NextToUse
		ring.SlotIndex[ntu] = int32(entry.Slot)

		desc := ring.Tx(ntu)
		desc.SetBufferAddr(e.Pool.BusAddr(entry.Slot, e.NicIdx))
		desc.SetCmdTypeLen(uint16(entry.Size), txCmd)
		desc.SetOlinfoStatus(entry.Size)

		ring.NextToUse = nextIndex(ntu, ring.NumDesc())
		xmitted++
	}

	for ; i < n; i++ {
		e.Pool.Release(bulk.At(i).Slot)
		dropped++
	}

	if xmitted > 0 {
		mmio.Wmb()
		e.Window.WriteReg(ring.TailOffset, uint32(ring.NextToUse))
	}

	e.CountTxXmitFailed += uint64(dropped)
	return xmitted, dropped
}

// TxClean releases the buffer-pool slots of completed Tx descriptors, up to
// budget descriptors, stopping at the first whose DD bit is not yet set.
func (e *Engine) TxClean(budget int) int {
	ring := e.Tx
	count := 0

	for count < budget {
		if ring.NextToClean == ring.NextToUse {
			break
		}

		desc := ring.Tx(ring.NextToClean)
		if !desc.DD() {
			break
		}

		slot := ring.SlotIndex[ring.NextToClean]
		ring.SlotIndex[ring.NextToClean] = -1
		e.Pool.Release(api.SlotID(slot))

		ring.NextToClean = nextIndex(ring.NextToClean, ring.NumDesc())
		count++
	}

	e.CountTxCleanTotal += uint64(count)
	return count
}
