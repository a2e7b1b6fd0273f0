// File: bufpool/bufpool_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bufpool

import (
	"testing"

	"github.com/momentics/ixmap-go/api"
)

// newTestPool builds a Pool over plain heap memory, bypassing Alloc's
// mmap/dma.Map calls, so the slot-accounting logic can run without a real
// UIO device.
func newTestPool(count, bufSize int) *Pool {
	p := &Pool{
		region:  make([]byte, count*bufSize),
		busAddr: []uint64{0x100000},
		bufSize: bufSize,
		count:   count,
		free:    make([]int32, count),
		inFree:  make([]bool, count),
	}
	for i := 0; i < count; i++ {
		p.free[i] = int32(i)
		p.inFree[i] = true
	}
	p.freeTop = count
	return p
}

func TestAssignReleaseLIFO(t *testing.T) {
	p := newTestPool(4, 64)

	a, ok := p.Assign()
	if !ok || a != 3 {
		t.Fatalf("Assign() = (%d, %v), want (3, true)", a, ok)
	}
	b, ok := p.Assign()
	if !ok || b != 2 {
		t.Fatalf("Assign() = (%d, %v), want (2, true)", b, ok)
	}

	p.Release(a)
	c, ok := p.Assign()
	if !ok || c != a {
		t.Fatalf("Assign() after Release(a) = (%d, %v), want (%d, true)", c, ok, a)
	}
}

func TestAssignExhaustion(t *testing.T) {
	p := newTestPool(2, 64)

	if _, ok := p.Assign(); !ok {
		t.Fatal("first Assign() should succeed")
	}
	if _, ok := p.Assign(); !ok {
		t.Fatal("second Assign() should succeed")
	}
	if _, ok := p.Assign(); ok {
		t.Fatal("third Assign() on a pool of 2 should fail")
	}
}

func TestReleaseDoubleReleasePanics(t *testing.T) {
	p := newTestPool(2, 64)
	slot, _ := p.Assign()
	p.Release(slot)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("double Release did not panic")
		}
	}()
	p.Release(slot)
}

func TestBusAddrAndVirtAddr(t *testing.T) {
	p := newTestPool(4, 128)
	slot := api.SlotID(2)

	if got, want := p.BusAddr(slot, 0), p.busAddr[0]+2*128; got != want {
		t.Fatalf("BusAddr() = %#x, want %#x", got, want)
	}
	if got := len(p.VirtAddr(slot)); got != 128 {
		t.Fatalf("len(VirtAddr()) = %d, want 128", got)
	}
}

func TestStats(t *testing.T) {
	p := newTestPool(4, 64)
	p.Assign()

	s := p.Stats()
	if s.Count != 4 || s.FreeCount != 3 || s.BufSize != 64 {
		t.Fatalf("Stats() = %+v, want Count=4 FreeCount=3 BufSize=64", s)
	}
}
