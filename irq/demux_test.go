// File: irq/demux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package irq

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/ixmap-go/api"
)

// TestArmTermSignalMustRunOnReceivingThread guards the fix for the
// termination race: pthread_sigmask only blocks a signal on the calling OS
// thread, so ArmTermSignal must be called on the same thread
// SendTermination later targets. This test locks the goroutine to its OS
// thread first (as worker.Instance.Run does), arms the signal there, sends
// SIGUSR1 to that same thread, and confirms Wait reports it as a
// KindTermSignal event rather than the process being killed by the
// signal's default disposition.
func TestArmTermSignalMustRunOnReceivingThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	epfd, err := unix.EpollCreate1(0)
	require.NoError(t, err)
	defer unix.Close(epfd)

	d := &Demux{epfd: epfd, sigFd: -1, descFor: make(map[int32]api.EpollDesc)}
	require.NoError(t, d.ArmTermSignal())
	defer d.Close()

	tid := unix.Gettid()
	require.NoError(t, SendTermination(tid))

	events, err := d.Wait()
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, api.KindTermSignal, events[0].Kind)
}

// TestPrepareLeavesTermSignalUnarmed documents that Prepare alone never
// registers a signalfd: ArmTermSignal is a required second step, not an
// optional one, so a Demux that skipped it must not silently report
// KindTermSignal events that never happened.
func TestPrepareLeavesTermSignalUnarmed(t *testing.T) {
	d, err := Prepare(nil, 0, 1)
	require.NoError(t, err)
	defer d.Close()

	require.Equal(t, -1, d.sigFd)
	_, hasSig := d.descFor[int32(d.sigFd)]
	require.False(t, hasSig)
}
