// File: cmd/ixmap-forward/main.go
// ixmap-forward opens one or more ixgbe ports through the UIO shim, spawns
// one CPU-pinned worker per negotiated queue, and forwards packets between
// them until interrupted.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/momentics/ixmap-go/api"
	"github.com/momentics/ixmap-go/bufpool"
	"github.com/momentics/ixmap-go/control"
	"github.com/momentics/ixmap-go/descring"
	"github.com/momentics/ixmap-go/forwarder"
	"github.com/momentics/ixmap-go/irq"
	"github.com/momentics/ixmap-go/nic"
	"github.com/momentics/ixmap-go/ring"
	"github.com/momentics/ixmap-go/worker"
)

const (
	defaultNumRxDesc = 512
	defaultNumTxDesc = 512
	defaultBufSize   = 2048
	defaultBufCount  = 8192
)

func main() {
	var (
		ifaceList   = flag.String("ifaces", "", "comma-separated UIO interface names, e.g. ixgbe0,ixgbe1")
		queues      = flag.Uint("queues", 1, "requested queue count per interface")
		budget      = flag.Uint("budget", 64, "packets pulled per rx_clean/tx_clean cycle")
		intrRate    = flag.Uint("intr-rate", 0, "requested interrupt rate selector, 0 lets the shim choose its default")
		mtu         = flag.Uint("mtu", 1500, "interface MTU")
		promisc     = flag.Bool("promisc", false, "enable promiscuous mode")
		policy      = flag.String("forwarder", "loopback", "forwarding policy: loopback, drop, or flood")
		shutdownFor = flag.Duration("shutdown-timeout", 5*time.Second, "how long to wait for workers to exit on signal")
	)
	flag.Parse()

	ifnames := splitNonEmpty(*ifaceList)
	if len(ifnames) == 0 {
		log.Fatal("ixmap-forward: -ifaces must name at least one interface")
	}

	if err := run(ifnames, runConfig{
		queues:      uint32(*queues),
		budget:      uint32(*budget),
		intrRate:    uint16(*intrRate),
		mtu:         uint32(*mtu),
		promisc:     *promisc,
		policy:      *policy,
		shutdownFor: *shutdownFor,
	}); err != nil {
		log.Fatalf("ixmap-forward: %v", err)
	}
}

type runConfig struct {
	queues      uint32
	budget      uint32
	intrRate    uint16
	mtu         uint32
	promisc     bool
	policy      string
	shutdownFor time.Duration
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// run owns the full lifecycle: open every NIC, allocate shared descriptor
// and buffer storage, spawn one worker per negotiated queue, and block on
// the termination protocol (component I) before tearing everything down in
// reverse order.
func run(ifnames []string, cfg runConfig) error {
	nicConfigs := make([]api.NicConfig, len(ifnames))
	for i, name := range ifnames {
		nicConfigs[i] = api.NicConfig{
			InterfaceName: name,
			RequestQueues: cfg.queues,
			Budget:        cfg.budget,
			IntrRate:      cfg.intrRate,
			MTU:           cfg.mtu,
			Promisc:       cfg.promisc,
		}
	}
	configStore := control.NewNicConfigStore(nicConfigs)
	metrics := control.NewMetricsRegistry()
	debug := control.NewDebugProbes()
	control.RegisterPlatformProbes(debug)

	control.RegisterReloadHook(func() {
		log.Printf("ixmap-forward: config reloaded: %+v", configStore.GetSnapshot())
	})
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)
	go func() {
		for range sighup {
			// SIGHUP re-applies the same static snapshot; this exists so
			// operators can force every reload hook to re-run (e.g. to
			// dump current config to the log) without restarting the
			// process. spec.md groups SIGHUP with the other signals the
			// main thread blocks and waits on; unlike SIGINT/SIGTERM it
			// does not tear anything down here.
			configStore.SetConfig(configStore.GetSnapshot())
		}
	}()

	handles := make([]*nic.Handle, 0, len(ifnames))
	defer func() {
		for _, h := range handles {
			if err := h.Close(); err != nil {
				log.Printf("ixmap-forward: close nic: %v", err)
			}
		}
	}()
	for _, c := range nicConfigs {
		h, err := nic.Open(c)
		if err != nil {
			return fmt.Errorf("open %s: %w", c.InterfaceName, err)
		}
		handles = append(handles, h)
	}

	numQueues := int(handles[0].NumQueues())
	for _, h := range handles {
		if int(h.NumQueues()) < numQueues {
			numQueues = int(h.NumQueues())
		}
	}
	if numQueues == 0 {
		return fmt.Errorf("negotiated zero usable queues across %d interface(s)", len(handles))
	}

	shimFds := make([]int, len(handles))
	for i, h := range handles {
		shimFds[i] = h.Fd
	}

	pool, err := bufpool.Alloc(shimFds, defaultBufCount, defaultBufSize)
	if err != nil {
		return fmt.Errorf("alloc buffer pool: %w", err)
	}
	defer func() {
		if err := pool.ReleaseAll(shimFds); err != nil {
			log.Printf("ixmap-forward: release buffer pool: %v", err)
		}
	}()
	debug.RegisterPoolProbe("shared", pool)

	storages := make([]*descring.Storage, len(handles))
	defer func() {
		for i, s := range storages {
			if s == nil {
				continue
			}
			if err := s.Release(); err != nil {
				log.Printf("ixmap-forward: release descriptor storage %d: %v", i, err)
			}
		}
	}()

	// engines[nicIdx][queueIndex] is that NIC's ring engine for that queue.
	engines := make([][]*ring.Engine, len(handles))
	for nicIdx, h := range handles {
		storage, err := descring.Alloc(h.Fd, numQueues, defaultNumRxDesc, defaultNumTxDesc)
		if err != nil {
			return fmt.Errorf("alloc descriptor storage for %s: %w", h.InterfaceName(), err)
		}
		storages[nicIdx] = storage

		engines[nicIdx] = make([]*ring.Engine, numQueues)
		for q := 0; q < numQueues; q++ {
			rx := storage.Rx(q)
			tx := storage.Tx(q)
			nic.ConfigureRx(h.Window, rx, uint32(q))
			nic.ConfigureTx(h.Window, tx, uint32(q))

			engines[nicIdx][q] = &ring.Engine{
				Window: h.Window,
				Rx:     rx,
				Tx:     tx,
				Pool:   pool,
				NicIdx: nicIdx,
			}
		}
		nic.IrqEnable(h.Window)
	}

	fwd, err := buildForwarder(cfg.policy, len(handles), pool)
	if err != nil {
		return err
	}

	demuxes := make([]*irq.Demux, numQueues)
	defer func() {
		for q, d := range demuxes {
			if d == nil {
				continue
			}
			if err := d.Close(); err != nil {
				log.Printf("ixmap-forward: close demux for queue %d: %v", q, err)
			}
		}
	}()

	instances := make([]*worker.Instance, numQueues)
	for q := 0; q < numQueues; q++ {
		d, err := irq.Prepare(ifnames, q, numQueues)
		if err != nil {
			return fmt.Errorf("prepare irq demux for queue %d: %w", q, err)
		}
		demuxes[q] = d

		ports := make([]*worker.Port, len(handles))
		for nicIdx := range handles {
			ports[nicIdx] = worker.NewPort(engines[nicIdx][q], int(cfg.budget))
		}

		instances[q] = worker.New(worker.Config{
			ID:        q,
			CPUID:     q,
			Ports:     ports,
			Pool:      pool,
			Demux:     d,
			Forwarder: fwd,
			Budget:    int(cfg.budget),
		})
	}

	sup := worker.NewSupervisor(instances)
	if err := sup.Spawn(); err != nil {
		return fmt.Errorf("spawn workers: %w", err)
	}
	for i := range ifnames {
		name, _ := configStore.InterfaceName(i)
		log.Printf("ixmap-forward: port %d (%s) budget=%d", i, name, configStore.Budget(i, cfg.budget))
	}
	log.Printf("ixmap-forward: %d worker(s) running over %v with %q forwarding", numQueues, ifnames, cfg.policy)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	log.Print("ixmap-forward: shutting down")
	shutdownErr := sup.Shutdown(cfg.shutdownFor)
	for q, portEngines := range enginesByQueue(engines, numQueues) {
		for nicIdx, e := range portEngines {
			metrics.RecordEngine(q, nicIdx, e)
		}
	}
	log.Printf("ixmap-forward: final metrics: %+v", metrics.GetSnapshot())
	log.Printf("ixmap-forward: final debug state: %+v", debug.DumpState())

	return shutdownErr
}

// enginesByQueue transposes engines[nicIdx][queueIdx] into
// byQueue[queueIdx][nicIdx], the order metrics are naturally reported in
// (per worker, per port).
func enginesByQueue(engines [][]*ring.Engine, numQueues int) [][]*ring.Engine {
	byQueue := make([][]*ring.Engine, numQueues)
	for q := 0; q < numQueues; q++ {
		byQueue[q] = make([]*ring.Engine, len(engines))
		for nicIdx := range engines {
			byQueue[q][nicIdx] = engines[nicIdx][q]
		}
	}
	return byQueue
}

func buildForwarder(policy string, numPorts int, pool api.BufferPool) (api.Forwarder, error) {
	switch policy {
	case "loopback", "":
		return forwarder.Loopback(), nil
	case "drop":
		return forwarder.Drop(pool), nil
	case "flood":
		return forwarder.Flood(pool, numPorts), nil
	default:
		return nil, fmt.Errorf("unknown forwarder policy %q", policy)
	}
}
