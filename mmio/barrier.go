//go:build linux && amd64

// File: mmio/barrier.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mmio

/*
static inline void wmb_impl(void) {
	__asm__ __volatile__("sfence" ::: "memory");
}

static inline void rmb_impl(void) {
	__asm__ __volatile__("lfence" ::: "memory");
}
*/
import "C"

// Wmb issues a store fence. The ring engine calls this before publishing a
// descriptor's DD-clearing write (rx_refill) or its length/command fields
// (tx_xmit), so the NIC never observes a partially written descriptor.
func Wmb() {
	C.wmb_impl()
}

// Rmb issues a load fence. The ring engine calls this after observing a
// descriptor's DD bit set and before reading the rest of that descriptor,
// so speculative reads can't outrun the NIC's write of the status word.
func Rmb() {
	C.rmb_impl()
}
