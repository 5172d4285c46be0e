//go:build !windows

package state

import "syscall"

// lockFile blocks until an exclusive advisory lock on fd is held.
func lockFile(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX)
}

func unlockFile(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
