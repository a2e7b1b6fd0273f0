// File: nic/configure_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nic

import (
	"testing"

	"github.com/momentics/ixmap-go/descring"
	"github.com/momentics/ixmap-go/mmio"
)

func TestConfigureRxSetsTailOffsetAndZeroesTail(t *testing.T) {
	w := mmio.NewWindow(make([]byte, 0x10000))
	ring := descring.NewBareRing(8)

	ConfigureRx(w, ring, 2)

	if got, want := ring.TailOffset, mmio.Rdt(2); got != want {
		t.Fatalf("TailOffset = %#x, want %#x", got, want)
	}
	if got := w.ReadReg(ring.TailOffset); got != 0 {
		t.Fatalf("tail register = %d, want 0", got)
	}
}

func TestConfigureTxSetsTailOffsetAndZeroesTail(t *testing.T) {
	w := mmio.NewWindow(make([]byte, 0x10000))
	ring := descring.NewBareRing(8)

	ConfigureTx(w, ring, 5)

	if got, want := ring.TailOffset, mmio.Tdt(5); got != want {
		t.Fatalf("TailOffset = %#x, want %#x", got, want)
	}
	if got := w.ReadReg(ring.TailOffset); got != 0 {
		t.Fatalf("tail register = %d, want 0", got)
	}
}
