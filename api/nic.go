// File: api/nic.go
// Package api defines the shared NIC configuration/negotiation types.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// NicConfig is the caller-supplied request passed to nic_open: requested
// queue count, per-cycle budget and interrupt-rate selector. Negotiated
// values (actual queue count, actual interrupt rate) are filled in by the
// INFO/UP ioctl exchange and reported back via NicInfo.
type NicConfig struct {
	InterfaceName string
	RequestQueues uint32
	Budget        uint32
	IntrRate      uint16
	MTU           uint32
	Promisc       bool
}

// NicInfo mirrors the fields the UIO_IXGBE_INFO ioctl reports about one
// physical port.
type NicInfo struct {
	MMIOBase        uintptr
	MMIOSize        uintptr
	MACType         uint16
	MACAddr         [6]byte
	PHYType         uint16
	MaxInterruptRate uint16
	NumInterruptRate uint16
	NumRxQueues     uint32
	NumTxQueues     uint32
	MaxRxQueues     uint32
	MaxTxQueues     uint32
	MaxMSIXVectors  uint32
}
