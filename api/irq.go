// File: api/irq.go
// Package api defines the tagged readiness-set member used by the IRQ
// demultiplexer (component F) and its abstract Demultiplexer contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// DescKind tags the variant of an EpollDesc.
type DescKind int

const (
	// KindRxIRQ fires when a port's Rx-queue MSI-X vector posts.
	KindRxIRQ DescKind = iota
	// KindTxIRQ fires when a port's Tx-queue MSI-X vector posts.
	KindTxIRQ
	// KindTermSignal fires when the worker's termination signal arrives.
	KindTermSignal
)

// EpollDesc is one member of a worker's readiness set: a tagged sum type
// over {RxIrq{port,queue}, TxIrq{port,queue}, TermSignal}, replacing the
// reference implementation's {fd, type_tag, void*} triple with a closed,
// type-safe variant.
type EpollDesc struct {
	Kind  DescKind
	Port  int    // index into the worker's Port slice; unused for TermSignal
	Queue int    // hardware queue index (== worker index)
	Fd    int    // underlying IRQ fd or signal fd
	QMask uint64 // bit q for Rx-queue q, bit q+num_queues for Tx-queue q
}

// Demultiplexer blocks across every registered EpollDesc and a termination
// signal, returning the subset that became readable. irq.Demux returns a
// newly allocated slice from every Wait call.
type Demultiplexer interface {
	// ArmTermSignal blocks the termination signal on the calling OS thread
	// and registers its signalfd with the demultiplexer. It must be called
	// from the same OS thread that will later receive the termination
	// signal (i.e. after the caller has locked itself to that thread), since
	// blocking a signal via pthread_sigmask is a per-thread property with no
	// relation to whichever thread called Prepare/New.
	ArmTermSignal() error
	// Wait blocks with no timeout until at least one descriptor is ready.
	Wait() ([]EpollDesc, error)
	// Close releases the underlying epoll/signal fds.
	Close() error
}
