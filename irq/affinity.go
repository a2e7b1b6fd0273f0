// File: irq/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package irq

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	irqInfoDirWrite = 1 // _IOC_WRITE
	irqInfoType     = 'E'
	irqInfoNr       = 201
	irqInfoSize     = 4 // sizeof(int), matching the original's ioctl encoding
)

var uioIrqInfo = ioctlEncode(irqInfoDirWrite, irqInfoType, irqInfoNr, irqInfoSize)

// irqInfoReq mirrors struct uio_irq_info_req.
type irqInfoReq struct {
	Vector uint32
	Entry  uint16
	_      [2]byte
}

// ioctlEncode is a local copy of the Linux _IOC encoding; duplicated from
// dma.ioctlEncode rather than exported cross-package, since the two
// packages' ioctl numbers belong to logically distinct ioctl families.
func ioctlEncode(dir, typ, nr, size uint32) uint32 {
	const (
		sizeBits  = 14
		dirBits   = 2
		typeBits  = 8
		nrBits    = 8
		nrShift   = 0
		typeShift = nrShift + nrBits
		sizeShift = typeShift + typeBits
		dirShift  = sizeShift + sizeBits
	)
	return (dir << dirShift) | (size << sizeShift) | (typ << typeShift) | (nr << nrShift)
}

// BindVectorAffinity queries the MSI-X vector backing irqFd via UIO_IRQ_INFO
// and pins it to threadIndex's CPU by writing /proc/irq/<vector>/smp_affinity,
// matching ixgbe_irq_setmask's per-fd affinity binding.
func BindVectorAffinity(irqFd int, threadIndex int) error {
	var req irqInfoReq
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(irqFd), uintptr(uioIrqInfo), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return fmt.Errorf("irq: UIO_IRQ_INFO: %w", errno)
	}

	var maskLow, maskHigh uint32
	if threadIndex <= 31 {
		maskLow = 1 << uint(threadIndex)
	} else {
		maskHigh = 1 << uint(threadIndex-32)
	}

	path := fmt.Sprintf("/proc/irq/%d/smp_affinity", req.Vector)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("irq: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%08x,%08x", maskHigh, maskLow); err != nil {
		return fmt.Errorf("irq: write %s: %w", path, err)
	}
	return nil
}
