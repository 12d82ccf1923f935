//go:build linux

package localex

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// pinThread pins the calling OS thread to the given CPU id.
// Call with the thread already locked to the goroutine.
func pinThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// threadAffinity returns the calling OS thread's CPU set.
func threadAffinity() (unix.CPUSet, error) {
	var set unix.CPUSet
	err := unix.SchedGetaffinity(0, &set)
	return set, err
}

// setThreadName names the calling OS thread. The kernel caps names at
// 15 bytes plus the terminating zero.
func setThreadName(name string) error {
	buf := make([]byte, 16)
	copy(buf[:15], name)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}
