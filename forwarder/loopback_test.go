// File: forwarder/loopback_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package forwarder

import (
	"testing"

	"github.com/momentics/ixmap-go/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePool is a minimal api.BufferPool double. Assign hands out fresh slot
// ids starting at 100 so Flood's copy path has somewhere to write; denyAssign
// simulates pool exhaustion.
type fakePool struct {
	released   []api.SlotID
	bufs       map[api.SlotID][]byte
	next       api.SlotID
	denyAssign bool
}

func (p *fakePool) Assign() (api.SlotID, bool) {
	if p.denyAssign {
		return 0, false
	}
	if p.bufs == nil {
		p.bufs = make(map[api.SlotID][]byte)
		p.next = 100
	}
	slot := p.next
	p.next++
	p.bufs[slot] = make([]byte, 2048)
	return slot, true
}

func (p *fakePool) Release(slot api.SlotID) { p.released = append(p.released, slot) }
func (p *fakePool) BusAddr(api.SlotID, int) uint64 { return 0 }

func (p *fakePool) VirtAddr(slot api.SlotID) []byte {
	if p.bufs == nil {
		p.bufs = make(map[api.SlotID][]byte)
	}
	b, ok := p.bufs[slot]
	if !ok {
		b = make([]byte, 2048)
		p.bufs[slot] = b
	}
	return b
}

func (p *fakePool) Stats() api.BufferPoolStats { return api.BufferPoolStats{} }

func makeBulk(slots ...api.SlotID) *api.Bulk {
	b := api.NewBulk(len(slots))
	for _, s := range slots {
		b.Append(s, 64)
	}
	return b
}

func TestLoopbackReturnsSamePort(t *testing.T) {
	fw := Loopback()
	in := makeBulk(1, 2, 3)

	out, err := fw.Forward(5, in)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 5, out[0].Port)
	assert.Equal(t, 3, out[0].Bulk.Len())
}

func TestLoopbackEmptyBulkForwardsNothing(t *testing.T) {
	fw := Loopback()
	in := makeBulk()

	out, err := fw.Forward(0, in)

	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDropReleasesEverySlot(t *testing.T) {
	pool := &fakePool{}
	fw := Drop(pool)
	in := makeBulk(10, 11, 12)

	out, err := fw.Forward(0, in)

	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, []api.SlotID{10, 11, 12}, pool.released)
}

func TestFloodSkipsInPort(t *testing.T) {
	pool := &fakePool{}
	fw := Flood(pool, 3)
	in := makeBulk(1, 2)

	out, err := fw.Forward(1, in)

	require.NoError(t, err)
	require.Len(t, out, 2)
	ports := map[int]bool{out[0].Port: true, out[1].Port: true}
	assert.False(t, ports[1])
	assert.True(t, ports[0])
	assert.True(t, ports[2])
	for _, o := range out {
		assert.Equal(t, 2, o.Bulk.Len())
	}
}

// TestFloodNeverRepeatsASlotAcrossOutbounds guards the slot-conservation
// invariant: each destination's tx_clean independently releases its bulk's
// slots, so the same SlotID reaching two outbounds would be released twice.
func TestFloodNeverRepeatsASlotAcrossOutbounds(t *testing.T) {
	pool := &fakePool{}
	fw := Flood(pool, 4)
	in := makeBulk(1, 2)

	out, err := fw.Forward(0, in)

	require.NoError(t, err)
	require.Len(t, out, 3)

	seen := make(map[api.SlotID]int)
	for _, o := range out {
		for i := 0; i < o.Bulk.Len(); i++ {
			seen[o.Bulk.At(i).Slot]++
		}
	}
	for slot, count := range seen {
		assert.Equalf(t, 1, count, "slot %d referenced by %d outbounds, want 1", slot, count)
	}
	// The original received slots must still appear exactly once, in the
	// first destination's bulk.
	assert.Contains(t, seen, api.SlotID(1))
	assert.Contains(t, seen, api.SlotID(2))
}

func TestFloodGivesEmptyBulkOnPoolExhaustion(t *testing.T) {
	pool := &fakePool{denyAssign: true}
	fw := Flood(pool, 2)
	in := makeBulk(1)

	// Port 0 is the in-port; the only other destination is port 1, which
	// takes over slot 1 directly (no Assign needed) since it is first.
	out, err := fw.Forward(0, in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Bulk.Len())

	// With three ports, the second destination needs a fresh Assign, which
	// fails: its bulk must come back empty rather than sharing the slot.
	pool2 := &fakePool{denyAssign: true}
	fw2 := Flood(pool2, 3)
	out2, err := fw2.Forward(0, in)
	require.NoError(t, err)
	require.Len(t, out2, 2)
	assert.Equal(t, 1, out2[0].Bulk.Len())
	assert.Equal(t, 0, out2[1].Bulk.Len())
}

func TestFloodSinglePortForwardsNothing(t *testing.T) {
	pool := &fakePool{}
	fw := Flood(pool, 1)
	in := makeBulk(1)

	out, err := fw.Forward(0, in)

	require.NoError(t, err)
	assert.Nil(t, out)
}
