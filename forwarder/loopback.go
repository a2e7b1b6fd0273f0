// File: forwarder/loopback.go
// Package forwarder provides reference api.Forwarder implementations for
// CLI and test use. The FIB/LPM/neighbour-table routing logic the original
// driver's examples/forward directory builds on top of the same ring API
// is explicitly out of scope; what lives here is the minimal policy needed
// to exercise the worker's forward boundary end to end.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package forwarder

import "github.com/momentics/ixmap-go/api"

// Loopback returns every received packet to the port it arrived on,
// unchanged. Useful for link-level testing: whatever a connected peer
// sends, it gets back.
func Loopback() api.Forwarder {
	return api.ForwarderFunc(func(inPort int, received *api.Bulk) ([]api.Outbound, error) {
		if received.Len() == 0 {
			return nil, nil
		}
		out := api.NewBulk(received.Len())
		for i := 0; i < received.Len(); i++ {
			e := received.At(i)
			out.Append(e.Slot, e.Size)
		}
		return []api.Outbound{{Port: inPort, Bulk: out}}, nil
	})
}

// Drop releases every received packet's slot and forwards nothing. Useful
// as a baseline for measuring rx_clean/rx_refill throughput in isolation
// from any transmit path.
func Drop(pool api.BufferPool) api.Forwarder {
	return api.ForwarderFunc(func(inPort int, received *api.Bulk) ([]api.Outbound, error) {
		for i := 0; i < received.Len(); i++ {
			pool.Release(received.At(i).Slot)
		}
		return nil, nil
	})
}

// Flood forwards every received packet out every port other than the one it
// arrived on, a basic switch-like policy for multi-port setups. A given
// packet's SlotID must never appear in more than one outbound Bulk: each
// destination's own tx_clean independently releases its bulk's slots back to
// pool, so a shared slot would be released twice (or reassigned out from
// under an in-flight buffer). The first destination therefore takes over the
// received slot outright; every later destination gets its own freshly
// assigned slot with the payload copied in.
func Flood(pool api.BufferPool, numPorts int) api.Forwarder {
	return api.ForwarderFunc(func(inPort int, received *api.Bulk) ([]api.Outbound, error) {
		if received.Len() == 0 || numPorts < 2 {
			return nil, nil
		}

		out := make([]api.Outbound, 0, numPorts-1)
		first := true
		for p := 0; p < numPorts; p++ {
			if p == inPort {
				continue
			}
			b := api.NewBulk(received.Len())
			for i := 0; i < received.Len(); i++ {
				e := received.At(i)
				if first {
					b.Append(e.Slot, e.Size)
					continue
				}
				slot, ok := pool.Assign()
				if !ok {
					continue
				}
				copy(pool.VirtAddr(slot), pool.VirtAddr(e.Slot)[:e.Size])
				b.Append(slot, e.Size)
			}
			out = append(out, api.Outbound{Port: p, Bulk: b})
			first = false
		}
		return out, nil
	})
}
