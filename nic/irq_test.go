// File: nic/irq_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nic

import (
	"testing"

	"github.com/momentics/ixmap-go/mmio"
)

func TestIrqEnableMasksEimsEntirelyAndArmsEimsEx(t *testing.T) {
	w := mmio.NewWindow(make([]byte, 0x10000))

	IrqEnable(w)

	// Per-queue vectors are armed through EIMS_EX, not EIMS: the original
	// driver's EIMS write cancels every bit it computes (queue causes
	// included), leaving queue interrupts to IrqEnableQueues.
	if got := w.ReadReg(mmio.Eims); got != 0 {
		t.Fatalf("Eims = %#x, want 0 (queue causes armed via EIMS_EX, not EIMS)", got)
	}
	if got := w.ReadReg(mmio.EimsEx(0)); got != 0xffffffff {
		t.Fatalf("EimsEx(0) = %#x, want all bits set", got)
	}
	if got := w.ReadReg(mmio.EimsEx(1)); got != 0xffffffff {
		t.Fatalf("EimsEx(1) = %#x, want all bits set", got)
	}
}

func TestIrqEnableQueuesSplitsLowHigh(t *testing.T) {
	w := mmio.NewWindow(make([]byte, 0x10000))

	IrqEnableQueues(w, (uint64(1)<<33)|1)

	if got := w.ReadReg(mmio.EimsEx(0)); got != 1 {
		t.Fatalf("EimsEx(0) = %#x, want 1", got)
	}
	if got := w.ReadReg(mmio.EimsEx(1)); got != 2 {
		t.Fatalf("EimsEx(1) = %#x, want 2", got)
	}
}

func TestIrqEnableQueuesSkipsZeroHalves(t *testing.T) {
	w := mmio.NewWindow(make([]byte, 0x10000))
	w.WriteReg(mmio.EimsEx(1), 0xff) // pre-existing value must survive a low-only mask

	IrqEnableQueues(w, 1)

	if got := w.ReadReg(mmio.EimsEx(1)); got != 0xff {
		t.Fatalf("EimsEx(1) = %#x, want unchanged 0xff", got)
	}
}
