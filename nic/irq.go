// File: nic/irq.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nic

import "github.com/momentics/ixmap-go/mmio"

// IrqEnable unmasks every Rx/Tx queue interrupt and flushes the write,
// matching ixmap_irq_enable. Misc interrupts (link status change, TCP
// timer, other) are never unmasked: the original driver comments this as
// unsupported, and the spec's Non-goals exclude misc interrupts entirely.
func IrqEnable(w *mmio.Window) {
	mask := uint32(mmio.EimsEnableMask) &^ mmio.EicrRtxQueue &^ mmio.EicrLsc &^ mmio.EicrTCPTimer &^ mmio.EicrOther
	w.WriteReg(mmio.Eims, mask)
	IrqEnableQueues(w, ^uint64(0))
	w.WriteFlush()
}

// IrqEnableQueues unmasks the queues selected by qmask, writing its low 32
// bits to EIMS_EX(0) and its high 32 bits to EIMS_EX(1), each only if
// nonzero, matching ixmap_irq_enable_queues. With the qmask layout (bit q
// for Rx queue q, bit q+numQueues for Tx queue q) a queue's bit lands in
// whichever half its bit position falls in.
func IrqEnableQueues(w *mmio.Window, qmask uint64) {
	if low := uint32(qmask); low != 0 {
		w.WriteReg(mmio.EimsEx(0), low)
	}
	if high := uint32(qmask >> 32); high != 0 {
		w.WriteReg(mmio.EimsEx(1), high)
	}
}
