// File: dma/map.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dma

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/ixmap-go/api"
)

// Cache selects the DMA mapping's cacheability, mirroring the original
// driver's IXGBE_DMA_CACHE_* enum.
type Cache uint8

const (
	CacheDefault Cache = iota
	CacheDisable
	CacheWritecombine
)

const (
	ixgbeMap   = 'U'
	mapNr      = 210
	unmapNr    = 211
	reqIntSize = 4 // original encodes these ioctls against sizeof(int)
)

var (
	uioIxgbeMap   = iow(ixgbeMap, mapNr, reqIntSize)
	uioIxgbeUnmap = iow(ixgbeMap, unmapNr, reqIntSize)
)

// mapReq mirrors struct uio_ixmap_map_req: three unsigned long fields
// followed by a uint8_t cache byte, padded to 8-byte alignment.
type mapReq struct {
	AddrVirtual uint64
	AddrDMA     uint64
	Size        uint64
	Cache       uint8
	_           [7]byte
}

var _ [32]byte = [unsafe.Sizeof(mapReq{})]byte{}

// unmapReq mirrors struct uio_ixmap_unmap_req.
type unmapReq struct {
	AddrDMA uint64
}

var _ [8]byte = [unsafe.Sizeof(unmapReq{})]byte{}

// Map registers the virtual-to-bus mapping for a huge-page-backed region
// with the kernel shim so the NIC's IOMMU table covers it. The shim
// allocates and returns the bus address the NIC must use in descriptors.
func Map(shimFd int, virt uintptr, size uintptr, cache Cache) (busAddr uint64, err error) {
	req := mapReq{
		AddrVirtual: uint64(virt),
		Size:        uint64(size),
		Cache:       uint8(cache),
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(shimFd), uintptr(uioIxgbeMap), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return 0, api.NewError(api.ErrCodeIoctl, "dma: UIO_IXGBE_MAP failed").
			WithContext("errno", errno).
			WithContext("size", size).
			WithContext("shim_fd", shimFd)
	}
	return req.AddrDMA, nil
}

// Unmap tears down a previously registered mapping.
func Unmap(shimFd int, addrDMA uint64) error {
	req := unmapReq{AddrDMA: addrDMA}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(shimFd), uintptr(uioIxgbeUnmap), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return api.NewError(api.ErrCodeIoctl, "dma: UIO_IXGBE_UNMAP failed").
			WithContext("errno", errno).
			WithContext("bus_addr", addrDMA).
			WithContext("shim_fd", shimFd)
	}
	return nil
}
