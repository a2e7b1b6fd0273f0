// File: descring/storage.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package descring

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/ixmap-go/api"
	"github.com/momentics/ixmap-go/dma"
)

func alignUp(n, a uintptr) uintptr {
	return (n + a - 1) &^ (a - 1)
}

// Ring is one Rx or Tx descriptor ring: a slice view over this queue's
// carve-out of the shared huge-page storage, plus the producer/consumer
// indices and the slot_index array mapping descriptor position to buffer
// pool slot.
type Ring struct {
	storage []byte // DescSize * numDesc bytes, part of Storage's region
	busAddr uint64 // bus address of storage[0]

	NextToUse   uint16
	NextToClean uint16

	// SlotIndex maps descriptor position i to the buffer pool slot id the
	// NIC currently owns at that position, or -1 if unassigned.
	SlotIndex []int32

	numDesc uint16

	// TailOffset is the BAR0 offset of this ring's tail-pointer register
	// (RDT/TDT), assigned by nic.ConfigureRx/ConfigureTx. Those functions
	// program no other queue register (base address, length, head).
	TailOffset uint32
}

// NumDesc reports the ring's descriptor count.
func (r *Ring) NumDesc() uint16 { return r.numDesc }

// BusAddr returns the bus address of the ring's first descriptor (the ring
// base), for programming the ring's base-address register pair.
func (r *Ring) BusAddr() uint64 { return r.busAddr }

// Rx returns the i-th descriptor as an RxDesc view.
func (r *Ring) Rx(i uint16) RxDesc { return RxDesc{raw: descAt(r.storage, i)} }

// Tx returns the i-th descriptor as a TxDesc view.
func (r *Ring) Tx(i uint16) TxDesc { return TxDesc{raw: descAt(r.storage, i)} }

// Unused reports the number of free descriptor slots available for
// rx_refill, mirroring the original driver's slack computation: the ring
// always keeps at least one descriptor empty to disambiguate full from
// empty.
func (r *Ring) Unused() uint16 {
	if r.NextToClean <= r.NextToUse {
		return r.numDesc - (r.NextToUse - r.NextToClean) - 1
	}
	return r.NextToClean - r.NextToUse - 1
}

// Storage owns the combined Rx+Tx descriptor region for one port: a single
// huge-page mmap mapped once via dma.Map, carved into per-queue 128-byte-
// aligned Rx and Tx rings. Release must be called exactly once and undoes
// the whole region in one munmap/dma.Unmap pair, unlike the original
// driver's release path (which indexed the loop variable out of bounds
// after its allocation loop exited); Storage instead remembers the base
// address and size it allocated, so release is correct regardless of how
// many queues were assigned.
type Storage struct {
	region  []byte // the whole mmap'd region, as returned by unix.Mmap
	busAddr uint64

	shimFd int

	rx []*Ring
	tx []*Ring
}

// Alloc mmaps one combined huge-page region sized for numQueues Rx+Tx rings
// of numRxDesc/numTxDesc descriptors each, registers it with the kernel
// shim via dma.Map, and carves it into per-queue Ring views.
func Alloc(shimFd int, numQueues int, numRxDesc, numTxDesc uint16) (*Storage, error) {
	rxBytes := alignUp(uintptr(numRxDesc)*DescSize, 128)
	txBytes := alignUp(uintptr(numTxDesc)*DescSize, 128)
	total := uintptr(numQueues) * (rxBytes + txBytes)

	region, err := unix.Mmap(-1, 0, int(total),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	if err != nil {
		return nil, api.NewError(api.ErrCodeMmap, "descring: hugepage mmap failed").
			WithContext("size", total).
			WithContext("cause", err.Error())
	}

	virt := uintptr(unsafe.Pointer(&region[0]))
	busBase, err := dma.Map(shimFd, virt, total, dma.CacheDisable)
	if err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("descring: dma map: %w", err)
	}

	s := &Storage{
		region:  region,
		busAddr: busBase,
		shimFd:  shimFd,
		rx:      make([]*Ring, numQueues),
		tx:      make([]*Ring, numQueues),
	}

	off := uintptr(0)
	bus := busBase
	for i := 0; i < numQueues; i++ {
		s.rx[i] = &Ring{
			storage:   region[off : off+rxBytes],
			busAddr:   bus,
			SlotIndex: newSlotIndex(int(numRxDesc)),
			numDesc:   numRxDesc,
		}
		off += rxBytes
		bus += uint64(rxBytes)
	}
	for i := 0; i < numQueues; i++ {
		s.tx[i] = &Ring{
			storage:   region[off : off+txBytes],
			busAddr:   bus,
			SlotIndex: newSlotIndex(int(numTxDesc)),
			numDesc:   numTxDesc,
		}
		off += txBytes
		bus += uint64(txBytes)
	}

	return s, nil
}

func newSlotIndex(n int) []int32 {
	idx := make([]int32, n)
	for i := range idx {
		idx[i] = -1
	}
	return idx
}

// NewBareRing builds a Ring over plain heap-allocated storage instead of a
// huge-page mmap, for use in unit tests that exercise ring-engine logic
// without a real UIO device.
func NewBareRing(numDesc uint16) *Ring {
	return &Ring{
		storage:   make([]byte, int(numDesc)*DescSize),
		SlotIndex: newSlotIndex(int(numDesc)),
		numDesc:   numDesc,
	}
}

// Rx returns the Rx ring for queue i.
func (s *Storage) Rx(i int) *Ring { return s.rx[i] }

// Tx returns the Tx ring for queue i.
func (s *Storage) Tx(i int) *Ring { return s.tx[i] }

// Release tears down the dma mapping and unmaps the whole region in one
// call, using the base address/size captured at Alloc time.
func (s *Storage) Release() error {
	if err := dma.Unmap(s.shimFd, s.busAddr); err != nil {
		return fmt.Errorf("descring: dma unmap: %w", err)
	}
	if err := unix.Munmap(s.region); err != nil {
		return fmt.Errorf("descring: munmap: %w", err)
	}
	return nil
}
