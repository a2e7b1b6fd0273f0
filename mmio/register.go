// File: mmio/register.go
// Package mmio provides typed access to a NIC's memory-mapped BAR0 register
// window (component A).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mmio

import "encoding/binary"

// Offsets and masks mirror the 82599 register map consumed by the original
// driver. The set is intentionally small: link bring-up is an opaque
// configure_rx/configure_tx operation out of scope here, so only the
// registers the ring engine and IRQ demultiplexer touch directly are named.
const (
	Status = 0x00008

	Eims = 0x00880

	EicrRtxQueue = 0x0000ffff
	EicrLsc      = 0x00100000
	EicrTCPTimer = 0x40000000
	EicrOther    = 0x80000000

	EimsEnableMask = EicrRtxQueue | EicrLsc | EicrTCPTimer | EicrOther
)

// EimsEx returns the register offset of the extended interrupt mask-set
// register for 32-bit group i.
func EimsEx(i uint32) uint32 {
	return 0x00AA0 + i*4
}

// Rdt and Tdt return a queue's receive/transmit descriptor tail-pointer
// register offset. These are the two data-plane registers the ring engine
// writes every cycle; everything else involved in bringing a queue up
// (base address, length, head writeback, arbiter configuration) is the
// opaque configure_rx/configure_tx sequence out of scope here.
func Rdt(queue uint32) uint32 {
	if queue < 64 {
		return 0x01018 + queue*0x40
	}
	return 0x0d018 + (queue-64)*0x40
}

func Tdt(queue uint32) uint32 {
	return 0x06018 + queue*0x40
}

// Window is a BAR register window mapped into the process's address space.
// It does no locking of its own. cmd/ixmap-forward shares one port's Window
// across every worker's engine for that port; each worker writes only its
// own queue's tail registers and its own EIMS_EX bits.
type Window struct {
	bar []byte
}

// NewWindow wraps a byte slice obtained from mmap'ing a UIO device's BAR0
// resource file. size must match the mmio_size the nic_open negotiation
// reported.
func NewWindow(bar []byte) *Window {
	return &Window{bar: bar}
}

// ReadReg loads a 32-bit little-endian register.
func (w *Window) ReadReg(offset uint32) uint32 {
	return binary.LittleEndian.Uint32(w.bar[offset : offset+4])
}

// WriteReg stores a 32-bit little-endian register.
func (w *Window) WriteReg(offset uint32, value uint32) {
	binary.LittleEndian.PutUint32(w.bar[offset:offset+4], value)
}

// WriteFlush forces a previous WriteReg to retire before the calling thread
// proceeds, by issuing a readback of a register known to have no side
// effects (the original driver's IXGBE_WRITE_FLUSH idiom).
func (w *Window) WriteFlush() {
	w.ReadReg(Status)
}
