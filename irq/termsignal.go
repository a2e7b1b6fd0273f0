// File: irq/termsignal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package irq

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// newTermSignalFd blocks SIGUSR1 from the default handler and returns a
// signalfd that becomes readable when it arrives, matching the original
// driver's signalfd_create: each worker is told to stop via SIGUSR1 sent to
// its OS thread.
func newTermSignalFd() (int, error) {
	var set unix.Sigset_t
	addSignal(&set, unix.SIGUSR1)

	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return -1, fmt.Errorf("irq: pthread_sigmask: %w", err)
	}

	fd, err := unix.Signalfd(-1, &set, 0)
	if err != nil {
		return -1, fmt.Errorf("irq: signalfd: %w", err)
	}
	return fd, nil
}

// addSignal sets the bit for signal sig in a Sigset_t, mirroring glibc's
// sigaddset for the Linux kernel_sigset_t layout (an array of unsigned long
// words, signal 1 is bit 0).
func addSignal(set *unix.Sigset_t, sig int) {
	word := (sig - 1) / 64
	bit := uint((sig - 1) % 64)
	set.Val[word] |= 1 << bit
}

// drainSignalFd reads and discards one pending signalfd_siginfo record so a
// repeat epoll_wait doesn't immediately re-fire on the same notification.
func drainSignalFd(fd int) {
	var buf [128]byte // >= sizeof(struct signalfd_siginfo)
	unix.Read(fd, buf[:])
}

// SendTermination signals OS thread tid with SIGUSR1, the supervisor's
// half of the termination protocol (component I).
func SendTermination(tid int) error {
	return unix.Tgkill(unix.Getpid(), tid, unix.SIGUSR1)
}
