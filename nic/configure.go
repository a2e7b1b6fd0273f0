// File: nic/configure.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nic

import (
	"github.com/momentics/ixmap-go/descring"
	"github.com/momentics/ixmap-go/mmio"
)

// ConfigureRx and ConfigureTx are the once-per-port register-programming
// sequences that bring a queue up: base address, length, head/tail reset,
// descriptor-control thresholds, RSS/flow-director/VLAN setup. The spec
// treats this sequence as opaque — it is link bring-up, not data-plane
// logic — so it is represented here only by the one piece every other
// component depends on: each ring's tail-pointer register offset. A real
// implementation fills in the rest of the sequence (as
// original_source/tests/txinit.c sketches for Tx) without changing this
// function's signature.
func ConfigureRx(w *mmio.Window, ring *descring.Ring, queue uint32) {
	ring.TailOffset = mmio.Rdt(queue)
	w.WriteReg(ring.TailOffset, 0)
}

func ConfigureTx(w *mmio.Window, ring *descring.Ring, queue uint32) {
	ring.TailOffset = mmio.Tdt(queue)
	w.WriteReg(ring.TailOffset, 0)
}
