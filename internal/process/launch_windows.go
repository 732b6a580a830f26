//go:build windows

package process

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	shell32             = windows.NewLazySystemDLL("shell32.dll")
	procShellExecuteExW = shell32.NewProc("ShellExecuteExW")
)

const (
	seeMaskNoCloseProcess = 0x00000040
	swShowNormal          = 1
)

// shellExecuteInfo mirrors SHELLEXECUTEINFOW.
type shellExecuteInfo struct {
	cbSize         uint32
	fMask          uint32
	hwnd           uintptr
	lpVerb         *uint16
	lpFile         *uint16
	lpParameters   *uint16
	lpDirectory    *uint16
	nShow          int32
	hInstApp       uintptr
	lpIDList       uintptr
	lpClass        *uint16
	hkeyClass      uintptr
	dwHotKey       uint32
	hIconOrMonitor uintptr
	hProcess       windows.Handle
}

// startNative goes through ShellExecuteExW rather than CreateProcess: only the
// shell path raises the "Open File - Security Warning" style prompts, which the
// dialog dismisser then answers. The call blocks while such a prompt is open.
func startNative(path, dir string) (*Handle, waitFunc, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := windows.CoInitializeEx(0, windows.COINIT_APARTMENTTHREADED|windows.COINIT_DISABLE_OLE1DDE); err == nil {
		defer windows.CoUninitialize()
	}

	verb, err := windows.UTF16PtrFromString("open")
	if err != nil {
		return nil, nil, err
	}
	file, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, nil, err
	}
	wd, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return nil, nil, err
	}
	info := shellExecuteInfo{
		fMask:       seeMaskNoCloseProcess,
		lpVerb:      verb,
		lpFile:      file,
		lpDirectory: wd,
		nShow:       swShowNormal,
	}
	info.cbSize = uint32(unsafe.Sizeof(info))
	r, _, callErr := procShellExecuteExW.Call(uintptr(unsafe.Pointer(&info)))
	if r == 0 {
		return nil, nil, callErr
	}
	proc := info.hProcess
	if proc == 0 {
		return nil, nil, ErrNoProcessHandle
	}
	pid, err := windows.GetProcessId(proc)
	if err != nil {
		_ = windows.CloseHandle(proc)
		return nil, nil, err
	}
	h := NewHandle(int(pid))
	return h, func() ExitCode {
		defer func() { _ = windows.CloseHandle(proc) }()
		if _, err := windows.WaitForSingleObject(proc, windows.INFINITE); err != nil {
			return unknownExitCode
		}
		var code uint32
		if err := windows.GetExitCodeProcess(proc, &code); err != nil {
			return unknownExitCode
		}
		return ExitCode(code)
	}, nil
}
