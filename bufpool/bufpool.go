// File: bufpool/bufpool.go
// Package bufpool implements the slot-indexed buffer pool (component D):
// a single huge-page-backed region of count*bufSize bytes, DMA-mapped into
// every NIC the worker touches, with a LIFO free list of slot ids.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bufpool

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/ixmap-go/api"
	"github.com/momentics/ixmap-go/dma"
)

// Pool is the concrete api.BufferPool implementation. It is not safe for
// concurrent use: exactly one worker goroutine owns a Pool, matching the
// one-thread-per-core model.
type Pool struct {
	region  []byte
	busAddr []uint64 // per-NIC bus address of region[0]
	bufSize int
	count   int

	free     []int32 // LIFO stack of free slot ids
	freeTop  int
	inFree   []bool // guards against double-release
}

var _ api.BufferPool = (*Pool)(nil)

// Alloc mmaps a huge-page region sized for count buffers of bufSize bytes
// and registers it with every shim fd in shimFds, one dma.Map call per NIC,
// matching ixmap_buf_alloc's one-region/many-ports contract.
func Alloc(shimFds []int, count, bufSize int) (*Pool, error) {
	size := count * bufSize

	region, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	if err != nil {
		return nil, api.NewError(api.ErrCodeMmap, "bufpool: hugepage mmap failed").
			WithContext("size", size).
			WithContext("cause", err.Error())
	}

	virt := uintptr(unsafe.Pointer(&region[0]))
	busAddr := make([]uint64, len(shimFds))
	for i, fd := range shimFds {
		addr, err := dma.Map(fd, virt, uintptr(size), dma.CacheDisable)
		if err != nil {
			for j := 0; j < i; j++ {
				dma.Unmap(shimFds[j], busAddr[j])
			}
			unix.Munmap(region)
			return nil, fmt.Errorf("bufpool: dma map nic %d: %w", i, err)
		}
		busAddr[i] = addr
	}

	p := &Pool{
		region:  region,
		busAddr: busAddr,
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

	return p, nil
}

// Assign implements api.BufferPool.
func (p *Pool) Assign() (api.SlotID, bool) {
	if p.freeTop == 0 {
		return 0, false
	}
	p.freeTop--
	slot := p.free[p.freeTop]
	p.inFree[slot] = false
	return api.SlotID(slot), true
}

// Release implements api.BufferPool.
func (p *Pool) Release(slot api.SlotID) {
	if p.inFree[slot] {
		panic(api.ErrSlotDoubleRelease)
	}
	p.free[p.freeTop] = int32(slot)
	p.inFree[slot] = true
	p.freeTop++
}

// BusAddr implements api.BufferPool.
func (p *Pool) BusAddr(slot api.SlotID, nicIdx int) uint64 {
	return p.busAddr[nicIdx] + uint64(int(slot)*p.bufSize)
}

// VirtAddr implements api.BufferPool.
func (p *Pool) VirtAddr(slot api.SlotID) []byte {
	off := int(slot) * p.bufSize
	return p.region[off : off+p.bufSize]
}

// Stats implements api.BufferPool.
func (p *Pool) Stats() api.BufferPoolStats {
	return api.BufferPoolStats{
		Count:     p.count,
		FreeCount: p.freeTop,
		BufSize:   p.bufSize,
	}
}

// ReleaseAll tears down every NIC's dma mapping and unmaps the region. Named
// ReleaseAll to avoid colliding with the per-slot Release method.
func (p *Pool) ReleaseAll(shimFds []int) error {
	for i, fd := range shimFds {
		if err := dma.Unmap(fd, p.busAddr[i]); err != nil {
			return fmt.Errorf("bufpool: dma unmap nic %d: %w", i, err)
		}
	}
	return unix.Munmap(p.region)
}
