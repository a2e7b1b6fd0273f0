// File: worker/instance.go
// Package worker implements the worker instance (component G): one
// goroutine pinned to one OS thread pinned to one CPU core, driving one or
// more NIC ports' ring engines from a single IRQ demultiplexer, exactly the
// teacher's one-thread-per-core executor model (internal/concurrency) bound
// to hardware interrupts instead of a task queue.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package worker

import (
	"log"
	"runtime"
	"sync/atomic"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/ixmap-go/affinity"
	"github.com/momentics/ixmap-go/api"
	"github.com/momentics/ixmap-go/nic"
	"github.com/momentics/ixmap-go/ring"
)

// Port is one NIC's ring engine as seen by a worker, indexed the same way
// as the EpollDesc.Port field the worker's Demultiplexer reports events
// against.
type Port struct {
	Engine *ring.Engine
	rxBulk *api.Bulk
}

// NewPort wraps a ring engine for use by an Instance. budget is the
// maximum number of packets pulled from the ring per rx_clean call.
func NewPort(engine *ring.Engine, budget int) *Port {
	return &Port{Engine: engine, rxBulk: api.NewBulk(budget)}
}

// Instance is one worker: a CPU-pinned event loop over a fixed set of
// ports, a shared buffer pool, a forwarder, and the IRQ demultiplexer that
// wakes it. It is built to run its entire lifecycle on a single goroutine
// locked to a single OS thread; nothing here is safe to call from another
// goroutine except TID, Ready and Done.
type Instance struct {
	id     int
	cpuID  int
	ports  []*Port
	pool   api.BufferPool
	demux  api.Demultiplexer
	fwd    api.Forwarder
	budget int
	logger *log.Logger

	// retry holds indices into ports that hit pool exhaustion during
	// rx_refill and need another attempt once the pool has slots again —
	// a FIFO of deferred work, the same role the teacher's
	// internal/concurrency.Executor gives its eapache/queue task queue,
	// generalized here from tasks to port indices.
	retry *queue.Queue

	tid   atomic.Int32
	ready chan struct{}
	done  chan struct{}
}

// Config gathers an Instance's construction parameters.
type Config struct {
	ID        int
	CPUID     int
	Ports     []*Port
	Pool      api.BufferPool
	Demux     api.Demultiplexer
	Forwarder api.Forwarder
	Budget    int
	Logger    *log.Logger
}

// New builds an Instance from cfg. Run must be called (typically via `go`)
// to start its event loop.
func New(cfg Config) *Instance {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Instance{
		id:     cfg.ID,
		cpuID:  cfg.CPUID,
		ports:  cfg.Ports,
		pool:   cfg.Pool,
		demux:  cfg.Demux,
		fwd:    cfg.Forwarder,
		budget: cfg.Budget,
		logger: logger,
		retry:  queue.New(),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ID reports the worker's configured index.
func (w *Instance) ID() int { return w.id }

// TID reports the Linux thread id Run pinned itself to, or 0 before Run has
// reached that point. The supervisor reads this to target
// irq.SendTermination at the right thread.
func (w *Instance) TID() int { return int(w.tid.Load()) }

// Ready is closed once the worker has locked its OS thread, pinned its CPU
// affinity and recorded its TID — the point at which SendTermination
// becomes meaningful.
func (w *Instance) Ready() <-chan struct{} { return w.ready }

// Done is closed when Run returns, whatever the cause.
func (w *Instance) Done() <-chan struct{} { return w.done }

// Run pins the calling goroutine's OS thread to its configured core and
// drives the IRQ-driven main loop until a termination signal arrives or the
// demultiplexer reports an error. It returns nil on a clean termination.
//
// The termination signal is armed here, after LockOSThread, rather than
// wherever the demultiplexer was constructed: pthread_sigmask blocks a
// signal on the calling thread only, and the goroutine that built the
// Demux (the spawning goroutine, not yet pinned to anything) is not
// guaranteed to be the OS thread this worker ends up locked to. Arming it
// here means the thread that ArmTermSignal masks SIGUSR1 on is the same
// thread TID publishes below and the same thread Supervisor.Shutdown's
// tgkill later targets.
//
// Per cycle: a ready Rx descriptor runs rx_clean, hands the bulk to the
// forwarder, posts every Outbound via tx_xmit, then refills and re-arms its
// own queue; a ready Tx descriptor runs tx_clean and re-arms. This mirrors
// spec.md's component F ordering (rx_clean -> forward -> tx_xmit ->
// rx_refill -> irq_enable_queues for Rx events; tx_clean -> irq_enable_queues
// for Tx events).
func (w *Instance) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	if err := affinity.SetAffinity(w.cpuID); err != nil {
		return err
	}
	if err := w.demux.ArmTermSignal(); err != nil {
		return err
	}
	w.tid.Store(int32(unix.Gettid()))
	close(w.ready)

	return w.runLoop()
}

// runLoop is the event loop proper, split out from Run so it can be
// exercised in tests without pinning a real OS thread.
func (w *Instance) runLoop() error {
	for i := range w.ports {
		w.ports[i].Engine.RxRefill()
	}

	for {
		events, err := w.demux.Wait()
		if err != nil {
			return err
		}

		for _, ev := range events {
			switch ev.Kind {
			case api.KindTermSignal:
				return nil
			case api.KindRxIRQ:
				w.handleRx(ev)
			case api.KindTxIRQ:
				w.handleTx(ev)
			}
		}

		w.drainRetry()
	}
}

func (w *Instance) handleRx(ev api.EpollDesc) {
	port := w.ports[ev.Port]

	n := port.Engine.RxClean(port.rxBulk)
	if n > 0 {
		outs, err := w.fwd.Forward(ev.Port, port.rxBulk)
		if err != nil {
			w.logger.Printf("worker %d: forward port %d: %v", w.id, ev.Port, err)
		}
		for _, out := range outs {
			w.transmit(out)
		}
	}

	w.refillPort(ev.Port)
	nic.IrqEnableQueues(port.Engine.Window, ev.QMask)
}

func (w *Instance) handleTx(ev api.EpollDesc) {
	port := w.ports[ev.Port]
	port.Engine.TxClean(w.budget)
	nic.IrqEnableQueues(port.Engine.Window, ev.QMask)
}

// transmit posts an Outbound bulk to its target port. A target port index
// outside the worker's port set is a configuration error: the bulk's slots
// are released back to the pool rather than silently dropped, so no slot
// leaks; the misrouting is reported through the logger.
func (w *Instance) transmit(out api.Outbound) {
	if out.Port < 0 || out.Port >= len(w.ports) {
		w.logger.Printf("worker %d: forward to unknown port %d, releasing %d slots", w.id, out.Port, out.Bulk.Len())
		for i := 0; i < out.Bulk.Len(); i++ {
			w.pool.Release(out.Bulk.At(i).Slot)
		}
		return
	}
	target := w.ports[out.Port]
	target.Engine.TxXmit(out.Bulk)
}

// refillPort runs rx_refill for ports[idx] and, if the pool could not fill
// every descriptor the ring had room for, queues the port index (unless it
// is already queued) for another attempt by drainRetry at the end of this
// cycle and each later one, instead of leaving it starved until its next
// IRQ.
func (w *Instance) refillPort(idx int) {
	port := w.ports[idx]
	before := port.Engine.Rx.Unused()
	refilled := port.Engine.RxRefill()
	if refilled < int(before) {
		for i := 0; i < w.retry.Length(); i++ {
			if w.retry.Get(i).(int) == idx {
				return
			}
		}
		w.retry.Add(idx)
	}
}

// drainRetry re-attempts rx_refill for every port queued by a prior pool
// exhaustion, in FIFO order, each retried exactly once per cycle so a
// permanently starved port cannot monopolize the loop.
func (w *Instance) drainRetry() {
	pending := w.retry.Length()
	for i := 0; i < pending; i++ {
		idx := w.retry.Remove().(int)
		port := w.ports[idx]
		before := port.Engine.Rx.Unused()
		refilled := port.Engine.RxRefill()
		if refilled < int(before) {
			w.retry.Add(idx)
		}
	}
}
