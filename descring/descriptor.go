// File: descring/descriptor.go
// Package descring owns descriptor-ring storage (component C): the
// huge-page-backed Rx/Tx descriptor arrays and the advanced descriptor wire
// formats the 82599 family expects.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package descring

import "encoding/binary"

// DescSize is the fixed size in bytes of one advanced Rx or Tx descriptor.
const DescSize = 16

// RxDesc is the read-format view of an advanced receive descriptor: a bare
// packet-buffer bus address plus an (unused, since header split is a
// Non-goal) header-buffer address. The NIC overwrites this same 16 bytes
// with the writeback format once DD is set; callers must read status
// through StatusError/Length after observing DD, never the read-format
// fields.
type RxDesc struct {
	raw []byte // DescSize bytes, backed by the ring's mmap region
}

// PktAddr returns the read-format bus address field.
func (d RxDesc) PktAddr() uint64 { return binary.LittleEndian.Uint64(d.raw[0:8]) }

// SetPktAddr publishes a fresh buffer's bus address, preparing the
// descriptor for reuse by the NIC.
func (d RxDesc) SetPktAddr(addr uint64) { binary.LittleEndian.PutUint64(d.raw[0:8], addr) }

// SetHdrAddr clears the header-buffer address field; header split is not
// supported, so this is always zero.
func (d RxDesc) SetHdrAddr(addr uint64) { binary.LittleEndian.PutUint64(d.raw[8:16], addr) }

// StatusError returns the writeback-format status/error word.
func (d RxDesc) StatusError() uint32 { return binary.LittleEndian.Uint32(d.raw[8:12]) }

// Length returns the writeback-format packet length.
func (d RxDesc) Length() uint16 { return binary.LittleEndian.Uint16(d.raw[12:14]) }

// descStatusDD is the writeback descriptor-done bit, bit 0 of StatusError.
const descStatusDD = 1 << 0

// rxdadvErrFrameErrMask aggregates the advanced Rx descriptor's CRC/length/
// packet/oversize/undersize error bits (IXGBE_RXDADV_ERR_CE|LE|PE|OSE|USE
// in the original driver's header), matching the
// IXGBE_RXDADV_ERR_FRAME_ERR_MASK check in ixmap_driver.c's rx_clean.
const rxdadvErrFrameErrMask = 0x01000000 | 0x02000000 | 0x08000000 | 0x10000000 | 0x20000000

// DD reports whether the NIC has written this descriptor back.
func (d RxDesc) DD() bool { return d.StatusError()&descStatusDD != 0 }

// FrameError reports whether the NIC flagged a CRC, length, packet, or
// over/undersize error on this descriptor. The original driver logs and
// still delivers such packets to the application; it does not drop them.
func (d RxDesc) FrameError() bool { return d.StatusError()&rxdadvErrFrameErrMask != 0 }

// SetWriteback overwrites this descriptor with the writeback format, as the
// NIC itself would on packet receipt. Exposed for harnesses that simulate
// hardware behavior without a real device.
func (d RxDesc) SetWriteback(statusError uint32, length uint16) {
	binary.LittleEndian.PutUint32(d.raw[8:12], statusError|descStatusDD)
	binary.LittleEndian.PutUint16(d.raw[12:14], length)
}

// TxDesc is the read-format view of an advanced transmit descriptor.
type TxDesc struct {
	raw []byte // DescSize bytes
}

// Tx command-field bits (cmd_type_len upper byte), matching the advanced Tx
// descriptor's ADVTXD_DCMD_* encoding the original driver programs.
const (
	TxCmdEOP  = 1 << 24 // end of packet
	TxCmdIFCS = 1 << 25 // insert FCS
	TxCmdRS   = 1 << 27 // report status (sets DD on writeback)
	TxCmdDEXT = 1 << 29 // descriptor extension (advanced format)
	TxCmdDTYP = 3 << 20 // advanced data descriptor type

	// txOlinfoPaylenShift places the payload length in olinfo_status.
	txOlinfoPaylenShift = 14

	txWbStatusDD = 1 << 0
)

// SetBufferAddr publishes the packet buffer's bus address.
func (d TxDesc) SetBufferAddr(addr uint64) { binary.LittleEndian.PutUint64(d.raw[0:8], addr) }

// SetCmdTypeLen sets the advanced Tx descriptor's cmd_type_len word: bits
// 0-15 are the buffer length, bits 20-31 are type/command flags.
func (d TxDesc) SetCmdTypeLen(length uint16, cmd uint32) {
	binary.LittleEndian.PutUint32(d.raw[8:12], uint32(length)|cmd)
}

// SetOlinfoStatus sets the advanced Tx descriptor's olinfo_status word: the
// payload length goes in bits 14-31. Checksum/TSO offload fields are never
// set since those are out of scope.
func (d TxDesc) SetOlinfoStatus(paylen uint32) {
	binary.LittleEndian.PutUint32(d.raw[12:16], paylen<<txOlinfoPaylenShift)
}

// WbStatus returns the writeback-format status word (rsvd/nxtseq_seed
// overlay the read-format buffer_addr/cmd_type_len once DD is set).
func (d TxDesc) WbStatus() uint32 { return binary.LittleEndian.Uint32(d.raw[12:16]) }

// DD reports whether the NIC has completed transmission of this descriptor.
func (d TxDesc) DD() bool { return d.WbStatus()&txWbStatusDD != 0 }

// SetWriteback overwrites this descriptor's status word with the
// descriptor-done bit set, as the NIC itself would once transmission
// completes. Exposed for harnesses that simulate hardware behavior without
// a real device.
func (d TxDesc) SetWriteback() {
	binary.LittleEndian.PutUint32(d.raw[12:16], txWbStatusDD)
}

// descAt slices the i-th DescSize-byte descriptor out of a ring's backing
// storage.
func descAt(storage []byte, i uint16) []byte {
	off := uintptr(i) * DescSize
	return storage[off : off+DescSize]
}
