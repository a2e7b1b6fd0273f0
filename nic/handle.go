// File: nic/handle.go
// Package nic implements NIC lifecycle (component J): open the shim char
// device, negotiate queue/interrupt-rate parameters over UIO_IXGBE_INFO and
// UIO_IXGBE_UP, map BAR0, and release everything on Close.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nic

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/ixmap-go/api"
	"github.com/momentics/ixmap-go/mmio"
)

const (
	ixgbeInfoType = 'E'
	infoNr        = 201
	upNr          = 202
	reqIntSize    = 4

	dirWrite = 1
)

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

var (
	uioIxgbeInfo = ioctlEncode(dirWrite, ixgbeInfoType, infoNr, reqIntSize)
	uioIxgbeUp   = ioctlEncode(dirWrite, ixgbeInfoType, upNr, reqIntSize)
)

// infoReq mirrors struct uio_ixmap_info_req.
type infoReq struct {
	MMIOBase         uint64
	MMIOSize         uint64
	MACType          uint16
	MACAddr          [6]byte
	PHYType          uint16
	MaxInterruptRate uint16
	NumInterruptRate uint16
	NumRxQueues      uint32
	NumTxQueues      uint32
	MaxRxQueues      uint32
	MaxTxQueues      uint32
	MaxMSIXVectors   uint32
}

// upReq mirrors struct uio_ixmap_up_req.
type upReq struct {
	NumInterruptRate uint16
	_                [2]byte
	NumRxQueues      uint32
	NumTxQueues      uint32
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

// Handle owns one port's shim fd, negotiated parameters, and mapped BAR0
// window.
type Handle struct {
	Fd     int
	Window *mmio.Window
	Info   api.NicInfo

	interfaceName string
	numQueues     uint32
	bar           []byte
}

// Open opens /dev/<interfaceName>, negotiates queue count and interrupt
// rate against the shim's reported maximums, and mmaps BAR0. config.MTU and
// config.Promisc are recorded but not programmed here: the register
// sequence that brings the link up is an opaque operation performed by
// ConfigureRx/ConfigureTx, out of scope for this package.
func Open(config api.NicConfig) (*Handle, error) {
	fd, err := unix.Open("/dev/"+config.InterfaceName, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("nic: open /dev/%s: %w", config.InterfaceName, err)
	}

	var reqInfo infoReq
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(uioIxgbeInfo), uintptr(unsafe.Pointer(&reqInfo))); errno != 0 {
		unix.Close(fd)
		return nil, api.NewError(api.ErrCodeIoctl, "nic: UIO_IXGBE_INFO failed").
			WithContext("errno", errno).
			WithContext("interface", config.InterfaceName)
	}

	numQueues := minU32(reqInfo.MaxRxQueues, reqInfo.MaxTxQueues)
	numQueues = minU32(config.RequestQueues, numQueues)
	intrRate := minU16(config.IntrRate, reqInfo.MaxInterruptRate)

	reqUp := upReq{
		NumInterruptRate: intrRate,
		NumRxQueues:      numQueues,
		NumTxQueues:      numQueues,
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(uioIxgbeUp), uintptr(unsafe.Pointer(&reqUp))); errno != 0 {
		unix.Close(fd)
		return nil, api.NewError(api.ErrCodeIoctl, "nic: UIO_IXGBE_UP failed").
			WithContext("errno", errno).
			WithContext("interface", config.InterfaceName).
			WithContext("num_queues", numQueues)
	}

	bar, err := unix.Mmap(fd, 0, int(reqInfo.MMIOSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, api.NewError(api.ErrCodeMmap, "nic: BAR0 mmap failed").
			WithContext("size", reqInfo.MMIOSize).
			WithContext("cause", err.Error())
	}

	h := &Handle{
		Fd:     fd,
		Window: mmio.NewWindow(bar),
		Info: api.NicInfo{
			MMIOBase:         uintptr(reqInfo.MMIOBase),
			MMIOSize:         uintptr(reqInfo.MMIOSize),
			MACType:          reqInfo.MACType,
			MACAddr:          reqInfo.MACAddr,
			PHYType:          reqInfo.PHYType,
			MaxInterruptRate: reqInfo.MaxInterruptRate,
			NumInterruptRate: intrRate,
			NumRxQueues:      numQueues,
			NumTxQueues:      numQueues,
			MaxRxQueues:      reqInfo.MaxRxQueues,
			MaxTxQueues:      reqInfo.MaxTxQueues,
			MaxMSIXVectors:   reqInfo.MaxMSIXVectors,
		},
		interfaceName: config.InterfaceName,
		numQueues:     numQueues,
		bar:           bar,
	}
	return h, nil
}

// NumQueues reports the negotiated queue count, shared by Rx and Tx.
func (h *Handle) NumQueues() uint32 { return h.numQueues }

// InterfaceName reports the device name Open was called with.
func (h *Handle) InterfaceName() string { return h.interfaceName }

// Close unmaps BAR0 and closes the shim fd.
func (h *Handle) Close() error {
	if err := unix.Munmap(h.bar); err != nil {
		return fmt.Errorf("nic: munmap bar0: %w", err)
	}
	return unix.Close(h.Fd)
}
