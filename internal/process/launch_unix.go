//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// startNative execs path directly. Unix hosts have no shell security prompt,
// so the shell-association path used on Windows has no counterpart here.
func startNative(path, dir string) (*Handle, waitFunc, error) {
	// #nosec G204
	cmd := exec.Command(path)
	cmd.Dir = dir
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	h := NewHandle(cmd.Process.Pid)
	return h, func() ExitCode {
		_ = cmd.Wait()
		return exitCodeOf(cmd.ProcessState)
	}, nil
}

// exitCodeOf follows the shell convention of 128+signal for signaled processes.
func exitCodeOf(ps *os.ProcessState) ExitCode {
	if ps == nil {
		return unknownExitCode
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitCode(128 + int(ws.Signal()))
	}
	return ExitCode(uint32(ps.ExitCode()))
}
