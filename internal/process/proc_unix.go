//go:build unix

package process

import (
	"os"
	"syscall"
)

// SysProcAttr puts the child in its own process group so that the
// whole tree can be signalled at once.
func SysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(proc *os.Process) error {
	return signalGroup(proc, syscall.SIGKILL)
}

func signalGroup(proc *os.Process, sig os.Signal) error {
	ssig, ok := sig.(syscall.Signal)
	if !ok {
		return proc.Signal(sig)
	}
	pgid, err := syscall.Getpgid(proc.Pid)
	if err != nil {
		return proc.Signal(sig)
	}
	return syscall.Kill(-pgid, ssig)
}
