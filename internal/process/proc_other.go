//go:build !unix

package process

import (
	"os"
	"syscall"
)

// SysProcAttr returns nil: process groups are a unix concept.
func SysProcAttr() *syscall.SysProcAttr {
	return nil
}

func killGroup(proc *os.Process) error {
	return proc.Kill()
}

func signalGroup(proc *os.Process, sig os.Signal) error {
	if sig == os.Kill {
		return proc.Kill()
	}
	return proc.Signal(sig)
}
