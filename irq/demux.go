// File: irq/demux.go
// Package irq implements the IRQ demultiplexer (component F): an epoll set
// over every port's Rx/Tx interrupt fds plus a signalfd termination
// descriptor, following the teacher's reactor pattern generalized from a
// callback registry to a single blocking Wait call the worker drains
// itself.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package irq

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/ixmap-go/api"
)

const maxEvents = 128

// portFds is one port's pair of Rx/Tx interrupt device fds, opened against
// /dev/<ifname>-irqrx<N> and /dev/<ifname>-irqtx<N> for this worker's
// queue index N.
type portFds struct {
	rxFd int
	txFd int
}

// Demux is the concrete api.Demultiplexer: one epoll fd watching every
// registered port's two IRQ fds plus a termination signalfd.
type Demux struct {
	epfd    int
	sigFd   int
	ports   []portFds
	descFor map[int32]api.EpollDesc // epoll data.fd -> tagged descriptor
}

// Prepare opens the Rx/Tx interrupt device files for every port at the
// given queue index and registers them with a single epoll instance. This
// is the single path that opens these IRQ fds; closing the Demux is
// therefore the only place that needs to close them, unlike the original
// driver's epoll_prepare, which left a duplicate-path hazard between the
// per-queue and per-irq opens. numQueues is each port's total queue count,
// needed to place the Tx half of a port's QMask above its Rx half (bit q
// for Rx queue q, bit q+numQueues for Tx queue q), matching
// nic.IrqEnableQueues's expectations. Each fd's MSI-X vector is also bound
// to queueIndex's CPU via BindVectorAffinity before it is registered with
// epoll, so the hardware interrupt lands on the same core as the worker
// that will service it.
//
// Prepare deliberately does not arm the termination signalfd: that
// requires pthread_sigmask on the OS thread that will actually receive the
// signal, which at Prepare time (called from the spawning goroutine,
// before the worker has locked itself to its own OS thread) is not yet
// known. Callers must call ArmTermSignal from the worker's own thread,
// after it has locked itself to that thread, before relying on Wait to
// report KindTermSignal.
func Prepare(ifnames []string, queueIndex int, numQueues int) (*Demux, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("irq: epoll_create1: %w", err)
	}

	d := &Demux{
		epfd:    epfd,
		sigFd:   -1,
		descFor: make(map[int32]api.EpollDesc),
	}

	for portIdx, ifname := range ifnames {
		rxFd, err := unix.Open(fmt.Sprintf("/dev/%s-irqrx%d", ifname, queueIndex), unix.O_RDWR, 0)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("irq: open irqrx: %w", err)
		}
		txFd, err := unix.Open(fmt.Sprintf("/dev/%s-irqtx%d", ifname, queueIndex), unix.O_RDWR, 0)
		if err != nil {
			unix.Close(rxFd)
			d.Close()
			return nil, fmt.Errorf("irq: open irqtx: %w", err)
		}

		if err := BindVectorAffinity(rxFd, queueIndex); err != nil {
			unix.Close(rxFd)
			unix.Close(txFd)
			d.Close()
			return nil, fmt.Errorf("irq: bind rx vector affinity: %w", err)
		}
		if err := BindVectorAffinity(txFd, queueIndex); err != nil {
			unix.Close(rxFd)
			unix.Close(txFd)
			d.Close()
			return nil, fmt.Errorf("irq: bind tx vector affinity: %w", err)
		}

		d.ports = append(d.ports, portFds{rxFd: rxFd, txFd: txFd})

		rxMask := uint64(1) << uint(queueIndex)
		txMask := uint64(1) << uint(queueIndex+numQueues)

		if err := d.add(rxFd, api.EpollDesc{Kind: api.KindRxIRQ, Port: portIdx, Queue: queueIndex, Fd: rxFd, QMask: rxMask}); err != nil {
			d.Close()
			return nil, err
		}
		if err := d.add(txFd, api.EpollDesc{Kind: api.KindTxIRQ, Port: portIdx, Queue: queueIndex, Fd: txFd, QMask: txMask}); err != nil {
			d.Close()
			return nil, err
		}
	}

	return d, nil
}

// ArmTermSignal blocks SIGUSR1 on the calling OS thread and registers its
// signalfd with this Demux's epoll set. It must be called from the same OS
// thread that will later be the target of irq.SendTermination — in
// practice, from inside the worker's Run after runtime.LockOSThread — since
// pthread_sigmask only affects the calling thread's mask, not any other
// thread the Go scheduler may later place the same goroutine on.
func (d *Demux) ArmTermSignal() error {
	sigFd, err := newTermSignalFd()
	if err != nil {
		return fmt.Errorf("irq: signalfd: %w", err)
	}
	d.sigFd = sigFd
	if err := d.add(sigFd, api.EpollDesc{Kind: api.KindTermSignal, Fd: sigFd}); err != nil {
		return err
	}
	return nil
}

func (d *Demux) add(fd int, desc api.EpollDesc) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(d.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("irq: epoll_ctl add fd %d: %w", fd, err)
	}
	d.descFor[int32(fd)] = desc
	return nil
}

// Wait implements api.Demultiplexer. It blocks with no timeout, matching
// the worker's pure interrupt-driven main loop.
func (d *Demux) Wait() ([]api.EpollDesc, error) {
	var events [maxEvents]unix.EpollEvent
	for {
		n, err := unix.EpollWait(d.epfd, events[:], -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("irq: epoll_wait: %w", err)
		}

		ready := make([]api.EpollDesc, 0, n)
		for i := 0; i < n; i++ {
			if desc, ok := d.descFor[events[i].Fd]; ok {
				ready = append(ready, desc)
			}
		}
		if len(ready) > 0 {
			// Drain each ready fd's pending notification (the signalfd's
			// siginfo record, or an IRQ fd's 8-byte event counter) so a
			// repeat Wait doesn't immediately fire again on stale data.
			for _, desc := range ready {
				if desc.Kind == api.KindTermSignal {
					drainSignalFd(desc.Fd)
				} else {
					var counter [8]byte
					unix.Read(desc.Fd, counter[:])
				}
			}
			return ready, nil
		}
	}
}

// Close releases every fd the Demux owns: port IRQ fds, the signalfd, and
// the epoll fd itself.
func (d *Demux) Close() error {
	for _, p := range d.ports {
		unix.Close(p.rxFd)
		unix.Close(p.txFd)
	}
	if d.sigFd >= 0 {
		unix.Close(d.sigFd)
	}
	return unix.Close(d.epfd)
}

var _ api.Demultiplexer = (*Demux)(nil)
