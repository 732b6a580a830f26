//go:build windows

package dialog

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procFindWindowW         = user32.NewProc("FindWindowW")
	procFindWindowExW       = user32.NewProc("FindWindowExW")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procSendMessageTimeoutW = user32.NewProc("SendMessageTimeoutW")
)

const (
	bmClick          = 0x00F5
	smtoAbortIfHung  = 0x0002
	clickTimeoutMS   = 1000
	maxCaptionLength = 256
	maxChildren      = 512
)

type user32API struct{}

func nativeAPI() windowAPI { return user32API{} }

func (user32API) findTopLevel(title string) (uintptr, bool) {
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0, false
	}
	hwnd, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(t)))
	return hwnd, hwnd != 0
}

// children walks the immediate child windows of parent.
func (user32API) children(parent uintptr) []control {
	var out []control
	var after uintptr
	for i := 0; i < maxChildren; i++ {
		child, _, _ := procFindWindowExW.Call(parent, after, 0, 0)
		if child == 0 {
			break
		}
		out = append(out, control{hwnd: child, text: windowText(child)})
		after = child
	}
	return out
}

func (user32API) click(hwnd uintptr) error {
	var result uintptr
	r, _, err := procSendMessageTimeoutW.Call(hwnd, bmClick, 0, 0, smtoAbortIfHung, clickTimeoutMS, uintptr(unsafe.Pointer(&result)))
	if r == 0 {
		return err
	}
	return nil
}

func windowText(hwnd uintptr) string {
	buf := make([]uint16, maxCaptionLength)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}
