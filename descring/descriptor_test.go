// File: descring/descriptor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package descring

import "testing"

func TestRxDescReadWriteFormat(t *testing.T) {
	ring := NewBareRing(4)
	d := ring.Rx(0)

	d.SetPktAddr(0xdeadbeef)
	if got := d.PktAddr(); got != 0xdeadbeef {
		t.Fatalf("PktAddr() = %#x, want %#x", got, 0xdeadbeef)
	}
	if d.DD() {
		t.Fatal("DD() true before any writeback")
	}

	d.SetWriteback(0, 128)
	if !d.DD() {
		t.Fatal("DD() false after SetWriteback")
	}
	if got := d.Length(); got != 128 {
		t.Fatalf("Length() = %d, want 128", got)
	}
	if d.FrameError() {
		t.Fatal("FrameError() true with a zero error status")
	}
}

func TestRxDescFrameError(t *testing.T) {
	ring := NewBareRing(1)
	d := ring.Rx(0)

	d.SetWriteback(rxdadvErrFrameErrMask, 64)
	if !d.DD() {
		t.Fatal("DD() false after SetWriteback")
	}
	if !d.FrameError() {
		t.Fatal("FrameError() false with the frame-error mask set")
	}
}

func TestRxDescFrameErrorIgnoresUnrelatedBits(t *testing.T) {
	ring := NewBareRing(1)
	d := ring.Rx(0)

	// Bit 1 (RXE, a non-frame-error condition) must not trip FrameError.
	d.SetWriteback(1<<1, 64)
	if d.FrameError() {
		t.Fatal("FrameError() true for a status bit outside the frame-error mask")
	}
}

func TestTxDescCmdTypeLenAndWriteback(t *testing.T) {
	ring := NewBareRing(4)
	d := ring.Tx(0)

	d.SetBufferAddr(0x1000)
	d.SetCmdTypeLen(256, TxCmdEOP|TxCmdIFCS|TxCmdRS|TxCmdDEXT|TxCmdDTYP)
	d.SetOlinfoStatus(256)

	if d.DD() {
		t.Fatal("DD() true before any writeback")
	}
	d.SetWriteback()
	if !d.DD() {
		t.Fatal("DD() false after SetWriteback")
	}
}

func TestRingUnusedWraparound(t *testing.T) {
	r := NewBareRing(8)

	if got, want := r.Unused(), uint16(7); got != want {
		t.Fatalf("Unused() = %d, want %d (empty ring keeps one slot back)", got, want)
	}

	r.NextToUse = 6
	r.NextToClean = 2
	if got, want := r.Unused(), uint16(3); got != want {
		t.Fatalf("Unused() = %d, want %d", got, want)
	}

	// NextToUse wraps past NextToClean.
	r.NextToUse = 1
	r.NextToClean = 6
	if got, want := r.Unused(), uint16(4); got != want {
		t.Fatalf("Unused() = %d, want %d", got, want)
	}
}
