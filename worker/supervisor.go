// File: worker/supervisor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package worker

import (
	"fmt"
	"time"

	"github.com/momentics/ixmap-go/irq"
)

// Supervisor owns a fixed set of worker instances and implements the
// termination protocol (component I): Shutdown signals every worker's OS
// thread with SIGUSR1 via irq.SendTermination and waits for each to exit
// its loop, instead of cancelling a context the blocking epoll_wait could
// not observe.
type Supervisor struct {
	instances []*Instance
}

// NewSupervisor wraps instances for joint lifecycle management. Spawn must
// be called (once) before Shutdown has any effect.
func NewSupervisor(instances []*Instance) *Supervisor {
	return &Supervisor{instances: instances}
}

// Spawn starts every instance's Run loop on its own goroutine and blocks
// until all have reached Ready (OS thread locked, affinity pinned, TID
// recorded) or one reports an error first.
func (s *Supervisor) Spawn() error {
	errCh := make(chan error, len(s.instances))
	for _, inst := range s.instances {
		inst := inst
		go func() {
			errCh <- inst.Run()
		}()
	}

	for _, inst := range s.instances {
		select {
		case <-inst.Ready():
		case err := <-errCh:
			return fmt.Errorf("worker: instance failed before becoming ready: %w", err)
		}
	}
	return nil
}

// Shutdown sends SIGUSR1 to every instance's worker thread and blocks,
// with a bound of timeout, until each has exited its loop. A worker whose
// TID is still 0 (Run never reached Ready) is skipped: it either never
// started or already exited.
func (s *Supervisor) Shutdown(timeout time.Duration) error {
	for _, inst := range s.instances {
		if tid := inst.TID(); tid != 0 {
			if err := irq.SendTermination(tid); err != nil {
				return fmt.Errorf("worker: send termination to instance %d (tid %d): %w", inst.ID(), tid, err)
			}
		}
	}

	deadline := time.After(timeout)
	for _, inst := range s.instances {
		select {
		case <-inst.Done():
		case <-deadline:
			return fmt.Errorf("worker: instance %d did not exit within %s", inst.ID(), timeout)
		}
	}
	return nil
}
