//go:build !(linux && amd64)

// File: mmio/barrier_generic.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mmio

import "sync/atomic"

// Wmb and Rmb fall back to a sequentially-consistent atomic fence on
// platforms without a cheap SFENCE/LFENCE pair. The NIC driver itself is
// Linux/amd64-only (no UIO shim exists elsewhere); this variant exists
// purely so the package still builds for cross-platform tooling and tests.
var fence int32

func Wmb() { atomic.AddInt32(&fence, 1) }
func Rmb() { atomic.LoadInt32(&fence) }
